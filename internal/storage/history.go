// Package storage records dataset loads in a SQLite database so the server
// can report what was loaded, when, and what the cleaning pipeline did.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS load_history (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	fingerprint   TEXT NOT NULL,
	row_count     INTEGER NOT NULL,
	column_count  INTEGER NOT NULL,
	log_entries   INTEGER NOT NULL,
	warnings      INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	loaded_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS load_history_loaded_at ON load_history (loaded_at);
`

// fixed width so that text ordering is chronological
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// LoadRecord is one row of the load history
type LoadRecord struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Fingerprint uint64    `json:"fingerprint,string"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	LogEntries  int       `json:"log_entries"`
	Warnings    int       `json:"warnings"`
	Duration    int64     `json:"duration_ms"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// History is a SQLite backed load history
type History struct {
	db *sql.DB
}

// OpenHistory opens the database at dsn and applies the schema
func OpenHistory(ctx context.Context, dsn string) (*History, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent loads
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &History{db: db}, nil
}

// Record inserts a load
func (h *History) Record(ctx context.Context, rec LoadRecord) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO load_history (id, source, fingerprint, row_count, column_count, log_entries, warnings, duration_ms, loaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, strconv.FormatUint(rec.Fingerprint, 16),
		rec.Rows, rec.Columns, rec.LogEntries, rec.Warnings, rec.Duration,
		rec.LoadedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("sqlite: record load: %w", err)
	}
	return nil
}

// Recent returns up to limit loads, newest first
func (h *History) Recent(ctx context.Context, limit int) ([]LoadRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, source, fingerprint, row_count, column_count, log_entries, warnings, duration_ms, loaded_at
		 FROM load_history ORDER BY loaded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query history: %w", err)
	}
	defer rows.Close()

	var out []LoadRecord
	for rows.Next() {
		var (
			rec      LoadRecord
			fp, when string
		)
		if err := rows.Scan(&rec.ID, &rec.Source, &fp, &rec.Rows, &rec.Columns,
			&rec.LogEntries, &rec.Warnings, &rec.Duration, &when); err != nil {
			return nil, fmt.Errorf("sqlite: scan history: %w", err)
		}
		if rec.Fingerprint, err = strconv.ParseUint(fp, 16, 64); err != nil {
			return nil, fmt.Errorf("sqlite: fingerprint %q: %w", fp, err)
		}
		if rec.LoadedAt, err = time.Parse(timestampLayout, when); err != nil {
			return nil, fmt.Errorf("sqlite: loaded_at %q: %w", when, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database
func (h *History) Close() error {
	return h.db.Close()
}
