package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattjoyce/trackhook/internal/tracking"
	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = time.RFC3339Nano

// SQLiteStore is a tracking.Store backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		if err := checkLocalFilesystem(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tracking_records (
  order_key            TEXT PRIMARY KEY,
  display_order_number TEXT NOT NULL,
  tracking_url         TEXT,
  created_at           TEXT NOT NULL,
  updated_at           TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS tracking_history (
  seq            INTEGER PRIMARY KEY AUTOINCREMENT,
  id             TEXT NOT NULL,
  order_key      TEXT NOT NULL,
  tracking_url   TEXT NOT NULL,
  source_event   TEXT NOT NULL,
  shop_domain    TEXT,
  payload_digest TEXT,
  recorded_at    TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS tracking_history_order_key_idx ON tracking_history(order_key, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, orderKey string) (*tracking.Record, error) {
	var (
		rec                  tracking.Record
		trackingURL          sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT order_key, display_order_number, tracking_url, created_at, updated_at
FROM tracking_records WHERE order_key = ?;`, orderKey).
		Scan(&rec.OrderKey, &rec.DisplayOrderNumber, &trackingURL, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tracking.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read tracking record: %w", err)
	}
	if trackingURL.Valid {
		rec.TrackingURL = &trackingURL.String
	}
	if rec.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) UpsertMerge(ctx context.Context, orderKey string, patch tracking.Patch) error {
	ts := patch.UpdatedAt.UTC().Format(sqliteTimeLayout)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tracking_records(order_key, display_order_number, tracking_url, created_at, updated_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(order_key) DO UPDATE SET
  display_order_number = excluded.display_order_number,
  tracking_url = excluded.tracking_url,
  updated_at = excluded.updated_at;
`, orderKey, patch.DisplayOrderNumber, patch.TrackingURL, ts, ts)
	if err != nil {
		return fmt.Errorf("upsert tracking record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, orderKey string, entry tracking.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tracking_history(id, order_key, tracking_url, source_event, shop_domain, payload_digest, recorded_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, entry.ID, orderKey, entry.TrackingURL, entry.SourceEvent, entry.ShopDomain, entry.PayloadDigest,
		entry.RecordedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("append tracking history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, orderKey string) ([]tracking.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, tracking_url, source_event, COALESCE(shop_domain, ''), COALESCE(payload_digest, ''), recorded_at
FROM tracking_history WHERE order_key = ? ORDER BY seq ASC;`, orderKey)
	if err != nil {
		return nil, fmt.Errorf("query tracking history: %w", err)
	}
	defer rows.Close()

	entries := []tracking.HistoryEntry{}
	for rows.Next() {
		var (
			e          tracking.HistoryEntry
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.TrackingURL, &e.SourceEvent, &e.ShopDomain, &e.PayloadDigest, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan tracking history: %w", err)
		}
		if e.RecordedAt, err = time.Parse(sqliteTimeLayout, recordedAt); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking history: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
