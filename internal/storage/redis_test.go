package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mattjoyce/trackhook/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) tracking.Store {
		s, _ := setupTestRedis(t)
		return s
	})
}

func TestRedisStoreUpsertPreservesOtherFields(t *testing.T) {
	ctx := context.Background()
	s, mr := setupTestRedis(t)

	mr.HSet("trackhook:order:1001", "note", "gift wrap")
	require.NoError(t, s.UpsertMerge(ctx, "1001", tracking.Patch{
		DisplayOrderNumber: "#1001",
		TrackingURL:        "https://t.example/a",
		UpdatedAt:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}))

	assert.Equal(t, "gift wrap", mr.HGet("trackhook:order:1001", "note"))
	assert.Equal(t, "https://t.example/a", mr.HGet("trackhook:order:1001", "tracking_url"))
	assert.Equal(t, "2026-01-02T03:04:05Z", mr.HGet("trackhook:order:1001", "created_at"))
}

func TestRedisStoreHistoryKeyLayout(t *testing.T) {
	ctx := context.Background()
	s, mr := setupTestRedis(t)

	require.NoError(t, s.AppendHistory(ctx, "1001", tracking.HistoryEntry{ID: "d-1", TrackingURL: "https://t.example/a", SourceEvent: tracking.TopicFulfillmentCreate}))

	items, err := mr.List("trackhook:order:1001:history")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], `"sourceEvent":"fulfillments/create"`)
}

func TestRedisStoreGetBadTimestamp(t *testing.T) {
	s, mr := setupTestRedis(t)
	mr.HSet("trackhook:order:1001", "tracking_url", "https://t.example/a")
	mr.HSet("trackhook:order:1001", "updated_at", "yesterday")

	_, err := s.Get(context.Background(), "1001")
	assert.Error(t, err)
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = OpenRedis(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}

func TestOpenRedisBadURL(t *testing.T) {
	_, err := OpenRedis(context.Background(), "redis://host:port:bad")
	assert.Error(t, err)
}
