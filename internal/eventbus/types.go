package eventbus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	MapID     string                 `json:"map_id"`
	MatchID   *string                `json:"match_id,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}

func NewEvent(eventType, source, mapID string, payload map[string]interface{}) Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		MapID:     mapID,
		Payload:   payload,
	}
}

// HasPrefix проверяет семейство типа события ("combat.", "analysis.").
func (e Event) HasPrefix(prefix string) bool {
	return strings.HasPrefix(e.EventType, prefix)
}

// DecodePayload раскладывает Payload в структуру через JSON.
func (e Event) DecodePayload(dst interface{}) error {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode payload of %s: %w", e.EventType, err)
	}
	return nil
}

// ToPayload превращает структуру в map для Payload.
func ToPayload(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
