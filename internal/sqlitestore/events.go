package sqlitestore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"hotspot-core/internal/cluster"
	"hotspot-core/internal/spatial"
)

const (
	queueSize     = 1024
	flushBatch    = 50
	flushInterval = 5 * time.Second
)

// EventStore persists eliminations with batched background writes.
type EventStore struct {
	db      *DB
	events  chan cluster.EliminationEvent
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.Mutex
	dropped int
}

// NewEventStore creates and starts the background writer
func NewEventStore(db *DB) *EventStore {
	s := &EventStore{
		db:     db,
		events: make(chan cluster.EliminationEvent, queueSize),
		stop:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

// SaveEvent enqueues an event for async persistence (non-blocking)
func (s *EventStore) SaveEvent(ev cluster.EliminationEvent) {
	select {
	case s.events <- ev:
	default:
		// Channel full: drop rather than stall ingestion
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Dropped returns the number of events lost to a full queue.
func (s *EventStore) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Stop drains the queue and waits for the last flush.
func (s *EventStore) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *EventStore) writer() {
	defer s.wg.Done()

	batch := make([]cluster.EliminationEvent, 0, 64)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) >= flushBatch {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-s.stop:
		drain:
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

func (s *EventStore) flush(events []cluster.EliminationEvent) {
	tx, err := s.db.conn.Begin()
	if err != nil {
		log.Printf("sqlitestore: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO eliminations
		(event_id, ts_unix_nano, victim_id, killer_id, weapon, team_id,
		 pos_x, pos_y, pos_z, killer_x, killer_y, killer_z, kill_distance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("sqlitestore: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.Exec(ev.ID, ev.Timestamp.UnixNano(), ev.VictimID, ev.KillerID, ev.Weapon, ev.TeamID,
			ev.Position.X, ev.Position.Y, ev.Position.Z,
			ev.KillerPosition.X, ev.KillerPosition.Y, ev.KillerPosition.Z, ev.KillDistance)
		if err != nil {
			log.Printf("sqlitestore: insert %s error: %v", ev.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("sqlitestore: commit error: %v", err)
	}
}

// LoadRecentEvents returns up to n of the newest events, oldest first.
func (s *EventStore) LoadRecentEvents(ctx context.Context, n int) ([]cluster.EliminationEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT event_id, ts_unix_nano, victim_id, killer_id, weapon, team_id,
		       pos_x, pos_y, pos_z, killer_x, killer_y, killer_z, kill_distance
		FROM (
			SELECT * FROM eliminations ORDER BY ts_unix_nano DESC, event_id DESC LIMIT ?
		) ORDER BY ts_unix_nano ASC, event_id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("query eliminations: %w", err)
	}
	defer rows.Close()

	var out []cluster.EliminationEvent
	for rows.Next() {
		var (
			ev      cluster.EliminationEvent
			ts      int64
			pos, kp spatial.Vec3
		)
		if err := rows.Scan(&ev.ID, &ts, &ev.VictimID, &ev.KillerID, &ev.Weapon, &ev.TeamID,
			&pos.X, &pos.Y, &pos.Z, &kp.X, &kp.Y, &kp.Z, &ev.KillDistance); err != nil {
			return nil, fmt.Errorf("scan elimination: %w", err)
		}
		ev.Timestamp = time.Unix(0, ts).UTC()
		ev.Position = pos
		ev.KillerPosition = kp
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count returns the number of stored eliminations.
func (s *EventStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM eliminations`).Scan(&n)
	return n, err
}
