// Package cluster groups elimination events into bounded spatial activity clusters.
package cluster

import (
	"time"

	"hotspot-core/internal/spatial"

	"github.com/google/uuid"
)

// EliminationEvent is a single kill. Immutable once created.
type EliminationEvent struct {
	ID             string       `json:"event_id" msgpack:"id"`
	Position       spatial.Vec3 `json:"position" msgpack:"pos"`
	KillerPosition spatial.Vec3 `json:"killer_position,omitempty" msgpack:"kpos"`
	Timestamp      time.Time    `json:"timestamp" msgpack:"ts"`
	KillerID       string       `json:"killer_id,omitempty" msgpack:"kid"` // empty for environmental/AI deaths
	VictimID       string       `json:"victim_id" msgpack:"vid"`
	Weapon         string       `json:"weapon,omitempty" msgpack:"w"`
	KillDistance   float64      `json:"kill_distance" msgpack:"kd"`
	TeamID         int          `json:"team_id" msgpack:"team"`
}

// NewEliminationEvent builds an event. KillDistance is only computed when the
// killer position is known (non-zero).
func NewEliminationEvent(victimID, killerID string, pos, killerPos spatial.Vec3, weapon string, teamID int, at time.Time) EliminationEvent {
	ev := EliminationEvent{
		ID:             uuid.NewString(),
		Position:       pos,
		KillerPosition: killerPos,
		Timestamp:      at.UTC(),
		KillerID:       killerID,
		VictimID:       victimID,
		Weapon:         weapon,
		TeamID:         teamID,
	}
	if !killerPos.IsZero() {
		ev.KillDistance = spatial.DistanceBetween(pos, killerPos)
	}
	return ev
}

// IsEnvironmental reports whether nobody is credited with the kill.
func (e EliminationEvent) IsEnvironmental() bool {
	return e.KillerID == ""
}
