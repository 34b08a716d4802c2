package analysis

import (
	"context"

	"hotspot-core/internal/cluster"
)

// EventSink receives every ingested event. Implementations must not block
// and handle their own failures.
type EventSink interface {
	SaveEvent(ev cluster.EliminationEvent)
}

// EventSource provides events to seed a fresh coordinator.
type EventSource interface {
	LoadRecentEvents(ctx context.Context, n int) ([]cluster.EliminationEvent, error)
}

// Reporter consumes analysis results. Formatting, storage and notification
// are the reporter's business; Report should return quickly.
type Reporter interface {
	Report(r Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Report)

// Report implements Reporter.
func (f ReporterFunc) Report(r Report) { f(r) }
