package hotspotmonitor

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"hotspot-core/internal/cluster"
	"hotspot-core/internal/eventbus"
	"hotspot-core/internal/spatial"
)

// EliminationPayload — полезная нагрузка combat.elimination (Kafka и HTTP).
type EliminationPayload struct {
	EventID        string       `json:"event_id,omitempty"`
	VictimID       string       `json:"victim_id"`
	KillerID       string       `json:"killer_id,omitempty"`
	Weapon         string       `json:"weapon,omitempty"`
	TeamID         int          `json:"team_id,omitempty"`
	Timestamp      *time.Time   `json:"timestamp,omitempty"`
	Position       spatial.Vec3 `json:"position"`
	KillerPosition spatial.Vec3 `json:"killer_position"`
}

// ingestPayload передаёт событие в координатор. Без метки времени событие
// регистрируется «сейчас»; с меткой — как есть (повтор, доставка из очереди).
func (s *Service) ingestPayload(p EliminationPayload) cluster.EliminationEvent {
	if p.Timestamp == nil {
		return s.co.RegisterEvent(p.VictimID, p.KillerID, p.Position, p.KillerPosition, p.Weapon, p.TeamID)
	}
	ev := cluster.NewEliminationEvent(p.VictimID, p.KillerID, p.Position, p.KillerPosition, p.Weapon, p.TeamID, *p.Timestamp)
	if p.EventID != "" {
		ev.ID = p.EventID
	}
	s.co.Ingest(ev)
	return ev
}

// decodeElimination проверяет сырой JSON по схеме и разбирает его.
func (s *Service) decodeElimination(raw []byte) (EliminationPayload, error) {
	var p EliminationPayload
	if err := s.validator.ValidateBytes(raw); err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode elimination: %w", err)
	}
	return p, nil
}

// handleEvent — обработчик топика combat_events.
func (s *Service) handleEvent(event eventbus.Event) {
	if event.EventType != eventbus.TypeElimination {
		return
	}
	if s.cfg.MapID != "" && event.MapID != s.cfg.MapID {
		return
	}
	if err := s.validator.Validate(event.Payload); err != nil {
		log.Printf("Rejected elimination %s: %v", event.EventID, err)
		return
	}
	var p EliminationPayload
	if err := event.DecodePayload(&p); err != nil {
		log.Printf("Rejected elimination %s: %v", event.EventID, err)
		return
	}
	if p.EventID == "" {
		p.EventID = event.EventID
	}
	if p.Timestamp == nil && !event.Timestamp.IsZero() {
		ts := event.Timestamp
		p.Timestamp = &ts
	}
	s.ingestPayload(p)
}

// ingestLine — обработчик строки kill-лога игрового сервера.
func (s *Service) ingestLine(line string) {
	p, err := s.decodeElimination([]byte(line))
	if err != nil {
		log.Printf("Rejected kill log line: %v", err)
		return
	}
	s.ingestPayload(p)
}
