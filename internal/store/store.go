// Package store is the data store shared by every connection.
//
// It is opened once by the composition root and handed to the plugin manager,
// which exposes it read-mostly to request handlers. database/sql provides the
// concurrency safety.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const MemoryPath = ":memory:"

var (
	ErrMissingAppKey   = errors.New("store: missing app_key")
	ErrMissingDeviceID = errors.New("store: missing device_id")
)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	app_key     TEXT    NOT NULL,
	device_id   TEXT    NOT NULL,
	path        TEXT    NOT NULL,
	params      TEXT    NOT NULL,
	conn_id     TEXT    NOT NULL DEFAULT '',
	received_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS requests_app_key ON requests(app_key, id);
`

// Record is one ingested request.
type Record struct {
	ID         int64
	AppKey     string
	DeviceID   string
	Path       string
	Params     string
	ConnID     string
	ReceivedAt time.Time
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = MemoryPath
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	if path == MemoryPath {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordRequest persists one ingested request and returns its row id.
func (s *Store) RecordRequest(ctx context.Context, rec Record) (int64, error) {
	if strings.TrimSpace(rec.AppKey) == "" {
		return 0, ErrMissingAppKey
	}
	if strings.TrimSpace(rec.DeviceID) == "" {
		return 0, ErrMissingDeviceID
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (app_key, device_id, path, params, conn_id, received_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.AppKey, rec.DeviceID, rec.Path, rec.Params, rec.ConnID, rec.ReceivedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: record request: %w", err)
	}
	return res.LastInsertId()
}

// RecentRequests returns up to limit records for appKey, newest first.
func (s *Store) RecentRequests(ctx context.Context, appKey string, limit int) ([]Record, error) {
	if strings.TrimSpace(appKey) == "" {
		return nil, ErrMissingAppKey
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, app_key, device_id, path, params, conn_id, received_ms
		 FROM requests WHERE app_key = ? ORDER BY id DESC LIMIT ?`,
		appKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query requests: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		var receivedMS int64
		if err := rows.Scan(&rec.ID, &rec.AppKey, &rec.DeviceID, &rec.Path, &rec.Params, &rec.ConnID, &receivedMS); err != nil {
			return nil, fmt.Errorf("store: scan request: %w", err)
		}
		rec.ReceivedAt = time.UnixMilli(receivedMS)
		out = append(out, rec)
	}
	return out, rows.Err()
}
