package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattjoyce/trackhook/internal/order"
)

// Lookup resolves customer-supplied order numbers to tracking records using
// the same normalization as the Reconciler.
type Lookup struct {
	store Store
}

// NewLookup creates a Lookup reading from store.
func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

// Key returns the order key for a raw query, or ErrEmptyQuery.
// Surrounding whitespace typed by a customer is dropped before normalizing.
func Key(rawQuery string) (string, error) {
	trimmed := strings.TrimSpace(rawQuery)
	if trimmed == "" {
		return "", ErrEmptyQuery
	}
	key := order.Normalize(trimmed)
	if key == "" {
		return "", ErrEmptyQuery
	}
	return key, nil
}

// Find returns the record for rawQuery. A record whose tracking URL is not
// yet known is returned as is, not as ErrNotFound.
func (l *Lookup) Find(ctx context.Context, rawQuery string) (*Record, error) {
	key, err := Key(rawQuery)
	if err != nil {
		return nil, err
	}
	rec, err := l.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read tracking record %q: %w", key, err)
	}
	return rec, nil
}

// History returns the record for rawQuery together with its history.
func (l *Lookup) History(ctx context.Context, rawQuery string) (*Record, []HistoryEntry, error) {
	rec, err := l.Find(ctx, rawQuery)
	if err != nil {
		return nil, nil, err
	}
	entries, err := l.store.History(ctx, rec.OrderKey)
	if err != nil {
		return nil, nil, fmt.Errorf("read tracking history %q: %w", rec.OrderKey, err)
	}
	return rec, entries, nil
}
