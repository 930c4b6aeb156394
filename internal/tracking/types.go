// Package tracking reconciles verified fulfillment events into tracking
// records and serves lookups against them.
//
// Records are keyed by the normalized order key (see package order), so a
// webhook carrying "#1001.1" and a storefront query for "1001" resolve to the
// same record. Writes are merge-upserts: the tracking URL is last-write-wins
// and the per-order history is append-only.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Fulfillment event topics handled by the Reconciler.
const (
	TopicFulfillmentCreate = "fulfillments/create"
	TopicFulfillmentUpdate = "fulfillments/update"
)

var (
	// ErrNotFound is returned when no record exists for an order key.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyQuery is returned when a lookup query has no usable order number.
	ErrEmptyQuery = errors.New("order number is required")
)

// Record is the persisted tracking state for one order.
type Record struct {
	OrderKey           string    `json:"orderKey"`
	DisplayOrderNumber string    `json:"displayOrderNumber"`
	TrackingURL        *string   `json:"trackingUrl"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Patch is the partial record written by UpsertMerge.
//
// DisplayOrderNumber, TrackingURL and UpdatedAt overwrite the stored values
// unconditionally. CreatedAt is taken from UpdatedAt only when the record is
// created. History is never touched by a patch.
type Patch struct {
	DisplayOrderNumber string
	TrackingURL        string
	UpdatedAt          time.Time
}

// HistoryEntry is one append-only audit entry for an order.
type HistoryEntry struct {
	ID            string    `json:"id"`
	TrackingURL   string    `json:"trackingUrl"`
	SourceEvent   string    `json:"sourceEvent"`
	ShopDomain    string    `json:"shopDomain,omitempty"`
	PayloadDigest string    `json:"payloadDigest,omitempty"`
	RecordedAt    time.Time `json:"timestamp"`
}

// Payload is a decoded fulfillment object. Values stay raw until extraction
// so that unexpected field types are skipped rather than rejected.
type Payload map[string]json.RawMessage

// Event is a verified fulfillment notification ready for reconciliation.
type Event struct {
	Topic      string
	ShopDomain string
	// DeliveryID identifies the webhook delivery. Used as the history entry id.
	DeliveryID string
	Payload    Payload
	// Fingerprint is a digest of the raw body, recorded with history.
	Fingerprint string
}

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/mattjoyce/trackhook/internal/tracking Store

// Store persists tracking records. Implementations live in internal/storage.
//
// A single UpsertMerge call is atomic. Concurrent calls for the same key may
// apply in either order.
type Store interface {
	// Get returns the record for orderKey or ErrNotFound.
	Get(ctx context.Context, orderKey string) (*Record, error)
	// UpsertMerge creates or updates the record for orderKey with patch.
	UpsertMerge(ctx context.Context, orderKey string, patch Patch) error
	// AppendHistory appends entry to the history of orderKey.
	AppendHistory(ctx context.Context, orderKey string, entry HistoryEntry) error
	// History returns the history of orderKey, oldest first.
	History(ctx context.Context, orderKey string) ([]HistoryEntry, error)
	Ping(ctx context.Context) error
	Close() error
}
