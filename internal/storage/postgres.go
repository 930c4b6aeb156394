package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/mattjoyce/trackhook/internal/tracking"
)

const postgresBootstrapTimeout = 5 * time.Second

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStore is a tracking.Store backed by PostgreSQL. The connection and
// schema are set up lazily on first use.
type PostgresStore struct {
	dsn    string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewPostgresStore returns a store for dsn without connecting.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	return &PostgresStore{dsn: dsn, openDB: sql.Open}, nil
}

func (s *PostgresStore) ensureReady() error {
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = fmt.Errorf("open postgres: %w", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresBootstrapTimeout)
		defer cancel()

		stmts := []string{
			`CREATE TABLE IF NOT EXISTS tracking_records (
				order_key TEXT PRIMARY KEY,
				display_order_number TEXT NOT NULL,
				tracking_url TEXT,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS tracking_history (
				seq BIGSERIAL PRIMARY KEY,
				id TEXT NOT NULL,
				order_key TEXT NOT NULL,
				tracking_url TEXT NOT NULL,
				source_event TEXT NOT NULL,
				shop_domain TEXT NOT NULL DEFAULT '',
				payload_digest TEXT NOT NULL DEFAULT '',
				recorded_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS tracking_history_order_key_idx ON tracking_history(order_key, seq)`,
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				s.initErr = fmt.Errorf("bootstrap postgres: %w", err)
				return
			}
		}
		s.db = db
	})
	return s.initErr
}

func (s *PostgresStore) Get(ctx context.Context, orderKey string) (*tracking.Record, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var (
		rec         tracking.Record
		trackingURL sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT order_key, display_order_number, tracking_url, created_at, updated_at
		FROM tracking_records WHERE order_key = $1`, orderKey).
		Scan(&rec.OrderKey, &rec.DisplayOrderNumber, &trackingURL, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tracking.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read tracking record: %w", err)
	}
	if trackingURL.Valid {
		rec.TrackingURL = &trackingURL.String
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func (s *PostgresStore) UpsertMerge(ctx context.Context, orderKey string, patch tracking.Patch) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracking_records (order_key, display_order_number, tracking_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (order_key)
		DO UPDATE SET display_order_number = EXCLUDED.display_order_number,
			tracking_url = EXCLUDED.tracking_url,
			updated_at = EXCLUDED.updated_at`,
		orderKey, patch.DisplayOrderNumber, patch.TrackingURL, patch.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert tracking record: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, orderKey string, entry tracking.HistoryEntry) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracking_history (id, order_key, tracking_url, source_event, shop_domain, payload_digest, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, orderKey, entry.TrackingURL, entry.SourceEvent, entry.ShopDomain, entry.PayloadDigest, entry.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("append tracking history: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, orderKey string) ([]tracking.HistoryEntry, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tracking_url, source_event, shop_domain, payload_digest, recorded_at
		FROM tracking_history WHERE order_key = $1 ORDER BY seq ASC`, orderKey)
	if err != nil {
		return nil, fmt.Errorf("query tracking history: %w", err)
	}
	defer rows.Close()

	entries := []tracking.HistoryEntry{}
	for rows.Next() {
		var e tracking.HistoryEntry
		if err := rows.Scan(&e.ID, &e.TrackingURL, &e.SourceEvent, &e.ShopDomain, &e.PayloadDigest, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan tracking history: %w", err)
		}
		e.RecordedAt = e.RecordedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking history: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
