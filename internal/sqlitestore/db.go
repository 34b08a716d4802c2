// Package sqlitestore keeps elimination events and camping history in a local
// SQLite file for single-node deployments.
package sqlitestore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// WAL lets readers run alongside the batch writer
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS eliminations (
			event_id      TEXT PRIMARY KEY,
			ts_unix_nano  INTEGER NOT NULL,
			victim_id     TEXT NOT NULL,
			killer_id     TEXT NOT NULL DEFAULT '',
			weapon        TEXT NOT NULL DEFAULT '',
			team_id       INTEGER NOT NULL DEFAULT 0,
			pos_x         REAL NOT NULL,
			pos_y         REAL NOT NULL,
			pos_z         REAL NOT NULL,
			killer_x      REAL NOT NULL DEFAULT 0,
			killer_y      REAL NOT NULL DEFAULT 0,
			killer_z      REAL NOT NULL DEFAULT 0,
			kill_distance REAL NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_eliminations_ts ON eliminations(ts_unix_nano);

		CREATE TABLE IF NOT EXISTS camping_history (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_at        INTEGER NOT NULL,
			cluster_id    INTEGER NOT NULL,
			killer_id     TEXT NOT NULL,
			kills         INTEGER NOT NULL,
			spread        REAL NOT NULL,
			center_x      REAL NOT NULL,
			center_y      REAL NOT NULL,
			center_z      REAL NOT NULL,
			window_start  INTEGER NOT NULL,
			window_end    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_camping_killer ON camping_history(killer_id);
	`)
	return err
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
