package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mattjoyce/trackhook/internal/order"
)

// Result classifies what Reconcile did with an event.
type Result int

const (
	// ResultApplied means the tracking record was written.
	ResultApplied Result = iota
	// ResultIncomplete means the event lacked an order label or tracking URL.
	ResultIncomplete
	// ResultIgnored means the event topic is not a fulfillment topic.
	ResultIgnored
	// ResultFailed means the store write failed.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultApplied:
		return "applied"
	case ResultIncomplete:
		return "incomplete"
	case ResultIgnored:
		return "ignored"
	case ResultFailed:
		return "failed"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// ReconcilerOptions tunes a Reconciler.
type ReconcilerOptions struct {
	// RecordHistory appends a history entry for every applied event.
	RecordHistory bool
	// Now overrides the clock. Defaults to time.Now in UTC.
	Now func() time.Time
}

// Reconciler upserts tracking records from verified fulfillment events.
type Reconciler struct {
	store   Store
	logger  *slog.Logger
	history bool
	now     func() time.Time
}

// NewReconciler creates a Reconciler writing to store.
func NewReconciler(store Store, logger *slog.Logger, opts ReconcilerOptions) *Reconciler {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Reconciler{
		store:   store,
		logger:  logger,
		history: opts.RecordHistory,
		now:     now,
	}
}

// IsFulfillmentTopic reports whether topic is reconciled.
func IsFulfillmentTopic(topic string) bool {
	return topic == TopicFulfillmentCreate || topic == TopicFulfillmentUpdate
}

// Reconcile applies ev to the store. Create and update topics share the same
// upsert; the topic is only recorded in history.
//
// A non-nil error is only returned together with ResultFailed. History append
// failures are logged and do not fail the reconciliation.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (Result, error) {
	logger := r.logger.With("topic", ev.Topic, "shop", ev.ShopDomain, "delivery_id", ev.DeliveryID)

	if !IsFulfillmentTopic(ev.Topic) {
		logger.Info("ignoring non-fulfillment event")
		return ResultIgnored, nil
	}

	label, hasLabel := ev.Payload.OrderLabel()
	trackingURL, hasURL := ev.Payload.TrackingURL()
	if !hasLabel || !hasURL {
		logger.Info("fulfillment event incomplete, skipping",
			"has_order_label", hasLabel,
			"has_tracking_url", hasURL,
		)
		return ResultIncomplete, nil
	}

	key := order.Normalize(label)
	if key == "" {
		logger.Info("fulfillment event has no usable order label, skipping", "order_label", label)
		return ResultIncomplete, nil
	}

	now := r.now()
	patch := Patch{
		DisplayOrderNumber: order.DisplayNumber(key),
		TrackingURL:        trackingURL,
		UpdatedAt:          now,
	}
	if err := r.store.UpsertMerge(ctx, key, patch); err != nil {
		logger.Error("failed to upsert tracking record", "order_key", key, "error", err)
		return ResultFailed, fmt.Errorf("upsert tracking record %q: %w", key, err)
	}

	if r.history {
		entry := HistoryEntry{
			ID:            ev.DeliveryID,
			TrackingURL:   trackingURL,
			SourceEvent:   ev.Topic,
			ShopDomain:    ev.ShopDomain,
			PayloadDigest: ev.Fingerprint,
			RecordedAt:    now,
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if err := r.store.AppendHistory(ctx, key, entry); err != nil {
			logger.Warn("failed to append tracking history", "order_key", key, "error", err)
		}
	}

	logger.Info("tracking record updated", "order_key", key, "display_order_number", patch.DisplayOrderNumber)
	return ResultApplied, nil
}
