package sqlitestore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"hotspot-core/internal/analysis"
	"hotspot-core/internal/spatial"
)

// CampingRecord is one camping spot seen by one analysis run.
type CampingRecord struct {
	RunAt       time.Time    `json:"run_at"`
	ClusterID   uint64       `json:"cluster_id"`
	KillerID    string       `json:"killer_id"`
	Kills       int          `json:"kills"`
	Spread      float64      `json:"spread"`
	Center      spatial.Vec3 `json:"center"`
	WindowStart time.Time    `json:"window_start"`
	WindowEnd   time.Time    `json:"window_end"`
}

// CampingHistory records camping spots from every analysis report.
type CampingHistory struct {
	db      *DB
	reports chan analysis.Report
	wg      sync.WaitGroup
	once    sync.Once
}

// NewCampingHistory starts the history writer.
func NewCampingHistory(db *DB) *CampingHistory {
	h := &CampingHistory{
		db:      db,
		reports: make(chan analysis.Report, 16),
	}
	h.wg.Add(1)
	go h.writer()
	return h
}

// Report implements analysis.Reporter. Reports without camping spots are ignored.
func (h *CampingHistory) Report(r analysis.Report) {
	if len(r.CampingSpots) == 0 {
		return
	}
	select {
	case h.reports <- r:
	default:
		log.Printf("sqlitestore: camping history queue full, skipping run %s", r.RunAt.Format(time.RFC3339))
	}
}

// Stop flushes pending reports.
func (h *CampingHistory) Stop() {
	h.once.Do(func() { close(h.reports) })
	h.wg.Wait()
}

func (h *CampingHistory) writer() {
	defer h.wg.Done()
	for r := range h.reports {
		if err := h.write(r); err != nil {
			log.Printf("sqlitestore: camping history: %v", err)
		}
	}
}

func (h *CampingHistory) write(r analysis.Report) error {
	tx, err := h.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO camping_history
		(run_at, cluster_id, killer_id, kills, spread, center_x, center_y, center_z, window_start, window_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, spot := range r.CampingSpots {
		if spot.Camper == nil {
			continue
		}
		c := spot.Camper
		if _, err := stmt.Exec(r.RunAt.UnixNano(), int64(spot.ClusterID), c.KillerID, c.Kills, c.Spread,
			spot.Center.X, spot.Center.Y, spot.Center.Z, c.Start.UnixNano(), c.End.UnixNano()); err != nil {
			return fmt.Errorf("insert cluster %d: %w", spot.ClusterID, err)
		}
	}
	return tx.Commit()
}

// ForKiller returns the newest camping records of one player, newest first.
func (h *CampingHistory) ForKiller(ctx context.Context, killerID string, limit int) ([]CampingRecord, error) {
	return h.query(ctx, `WHERE killer_id = ?`, killerID, limit)
}

// Recent returns the newest camping records of any player, newest first.
func (h *CampingHistory) Recent(ctx context.Context, limit int) ([]CampingRecord, error) {
	return h.query(ctx, ``, nil, limit)
}

func (h *CampingHistory) query(ctx context.Context, where string, arg interface{}, limit int) ([]CampingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT run_at, cluster_id, killer_id, kills, spread, center_x, center_y, center_z, window_start, window_end
		FROM camping_history ` + where + ` ORDER BY run_at DESC, id DESC LIMIT ?`
	args := []interface{}{limit}
	if arg != nil {
		args = []interface{}{arg, limit}
	}
	rows, err := h.db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query camping history: %w", err)
	}
	defer rows.Close()

	var out []CampingRecord
	for rows.Next() {
		var (
			rec               CampingRecord
			runAt, start, end int64
			clusterID         int64
		)
		if err := rows.Scan(&runAt, &clusterID, &rec.KillerID, &rec.Kills, &rec.Spread,
			&rec.Center.X, &rec.Center.Y, &rec.Center.Z, &start, &end); err != nil {
			return nil, fmt.Errorf("scan camping record: %w", err)
		}
		rec.RunAt = time.Unix(0, runAt).UTC()
		rec.ClusterID = uint64(clusterID)
		rec.WindowStart = time.Unix(0, start).UTC()
		rec.WindowEnd = time.Unix(0, end).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
