package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mattjoyce/trackhook/internal/tracking"
)

const (
	defaultRedisPrefix = "trackhook"
	redisTimeLayout    = time.RFC3339Nano
)

// Hash fields of a tracking record.
const (
	redisFieldOrderKey      = "order_key"
	redisFieldDisplayNumber = "display_order_number"
	redisFieldTrackingURL   = "tracking_url"
	redisFieldCreatedAt     = "created_at"
	redisFieldUpdatedAt     = "updated_at"
)

// RedisStore is a tracking.Store backed by Redis. Each record is a hash at
// <prefix>:order:<key>; its history is a list at <prefix>:order:<key>:history.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// OpenRedis connects to the Redis server described by url
// (redis://[:password@]host:port/db) and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(ctx, redis.NewClient(opts), defaultRedisPrefix)
}

// NewRedisStore wraps an existing client. The client is closed by Close.
func NewRedisStore(ctx context.Context, rdb *redis.Client, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) recordKey(orderKey string) string {
	return fmt.Sprintf("%s:order:%s", s.prefix, orderKey)
}

func (s *RedisStore) historyKey(orderKey string) string {
	return s.recordKey(orderKey) + ":history"
}

func (s *RedisStore) Get(ctx context.Context, orderKey string) (*tracking.Record, error) {
	fields, err := s.rdb.HGetAll(ctx, s.recordKey(orderKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("read tracking record: %w", err)
	}
	if len(fields) == 0 {
		return nil, tracking.ErrNotFound
	}

	rec := &tracking.Record{
		OrderKey:           fields[redisFieldOrderKey],
		DisplayOrderNumber: fields[redisFieldDisplayNumber],
	}
	if rec.OrderKey == "" {
		rec.OrderKey = orderKey
	}
	if url, ok := fields[redisFieldTrackingURL]; ok {
		rec.TrackingURL = &url
	}
	if rec.CreatedAt, err = parseRedisTime(fields[redisFieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseRedisTime(fields[redisFieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return rec, nil
}

// UpsertMerge writes the patch fields with HSET and sets created_at with
// HSETNX inside one MULTI/EXEC, so other hash fields are left alone.
func (s *RedisStore) UpsertMerge(ctx context.Context, orderKey string, patch tracking.Patch) error {
	key := s.recordKey(orderKey)
	ts := patch.UpdatedAt.UTC().Format(redisTimeLayout)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			redisFieldOrderKey, orderKey,
			redisFieldDisplayNumber, patch.DisplayOrderNumber,
			redisFieldTrackingURL, patch.TrackingURL,
			redisFieldUpdatedAt, ts,
		)
		pipe.HSetNX(ctx, key, redisFieldCreatedAt, ts)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert tracking record: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendHistory(ctx context.Context, orderKey string, entry tracking.HistoryEntry) error {
	entry.RecordedAt = entry.RecordedAt.UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.historyKey(orderKey), data).Err(); err != nil {
		return fmt.Errorf("append tracking history: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, orderKey string) ([]tracking.HistoryEntry, error) {
	items, err := s.rdb.LRange(ctx, s.historyKey(orderKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read tracking history: %w", err)
	}
	entries := make([]tracking.HistoryEntry, 0, len(items))
	for _, item := range items {
		var e tracking.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func parseRedisTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(redisTimeLayout, v)
}
