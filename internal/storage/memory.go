package storage

import (
	"context"
	"sync"

	"github.com/mattjoyce/trackhook/internal/tracking"
)

// MemoryStore is a non-durable tracking.Store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]tracking.Record
	history map[string][]tracking.HistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]tracking.Record),
		history: make(map[string][]tracking.HistoryEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, orderKey string) (*tracking.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[orderKey]
	if !ok {
		return nil, tracking.ErrNotFound
	}
	if rec.TrackingURL != nil {
		url := *rec.TrackingURL
		rec.TrackingURL = &url
	}
	return &rec, nil
}

func (s *MemoryStore) UpsertMerge(_ context.Context, orderKey string, patch tracking.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderKey]
	if !ok {
		rec = tracking.Record{OrderKey: orderKey, CreatedAt: patch.UpdatedAt}
	}
	url := patch.TrackingURL
	rec.DisplayOrderNumber = patch.DisplayOrderNumber
	rec.TrackingURL = &url
	rec.UpdatedAt = patch.UpdatedAt
	s.records[orderKey] = rec
	return nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, orderKey string, entry tracking.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[orderKey] = append(s.history[orderKey], entry)
	return nil
}

func (s *MemoryStore) History(_ context.Context, orderKey string) ([]tracking.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tracking.HistoryEntry, len(s.history[orderKey]))
	copy(out, s.history[orderKey])
	return out, nil
}

// Len returns the number of records held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
