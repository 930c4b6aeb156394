package tracking_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/mattjoyce/trackhook/internal/storage"
	"github.com/mattjoyce/trackhook/internal/tracking"
	"github.com/mattjoyce/trackhook/internal/tracking/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func payload(t *testing.T, body string) tracking.Payload {
	t.Helper()
	var p tracking.Payload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return p
}

func newReconciler(store tracking.Store, history bool) (*tracking.Reconciler, *bytes.Buffer) {
	var buf bytes.Buffer
	r := tracking.NewReconciler(store, testLogger(&buf), tracking.ReconcilerOptions{
		RecordHistory: history,
		Now:           func() time.Time { return fixedNow },
	})
	return r, &buf
}

func TestReconcileCreatesRecord(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	r, _ := newReconciler(store, true)

	res, err := r.Reconcile(ctx, tracking.Event{
		Topic:       tracking.TopicFulfillmentCreate,
		ShopDomain:  "shop.example",
		DeliveryID:  "delivery-1",
		Fingerprint: "digest",
		Payload:     payload(t, `{"name":"#1001.1","tracking_url":"https://t.example/x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, tracking.ResultApplied, res)

	rec, err := store.Get(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "#1001", rec.DisplayOrderNumber)
	assert.Equal(t, "https://t.example/x", *rec.TrackingURL)
	assert.Equal(t, fixedNow, rec.UpdatedAt)

	entries, err := store.History(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, tracking.HistoryEntry{
		ID:            "delivery-1",
		TrackingURL:   "https://t.example/x",
		SourceEvent:   tracking.TopicFulfillmentCreate,
		ShopDomain:    "shop.example",
		PayloadDigest: "digest",
		RecordedAt:    fixedNow,
	}, entries[0])
}

func TestReconcileTwiceKeepsOneRecordWithLatestURL(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	r, _ := newReconciler(store, true)

	_, err := r.Reconcile(ctx, tracking.Event{Topic: tracking.TopicFulfillmentCreate, Payload: payload(t, `{"name":"#1001","tracking_url":"https://t.example/first"}`)})
	require.NoError(t, err)
	_, err = r.Reconcile(ctx, tracking.Event{Topic: tracking.TopicFulfillmentUpdate, Payload: payload(t, `{"name":"1001.2","tracking_url":"https://t.example/second"}`)})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
	rec, err := store.Get(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "https://t.example/second", *rec.TrackingURL)

	entries, err := store.History(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, tracking.TopicFulfillmentCreate, entries[0].SourceEvent)
	assert.Equal(t, tracking.TopicFulfillmentUpdate, entries[1].SourceEvent)
	assert.NotEmpty(t, entries[0].ID, "history id generated when delivery id is absent")
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestReconcilePrefersTrackingURLArray(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	r, _ := newReconciler(store, false)

	_, err := r.Reconcile(ctx, tracking.Event{
		Topic:   tracking.TopicFulfillmentCreate,
		Payload: payload(t, `{"name":"#1001","tracking_urls":["https://a"],"tracking_url":"https://b"}`),
	})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "https://a", *rec.TrackingURL)
}

func TestReconcileIncompleteEventsDoNotWrite(t *testing.T) {
	for name, body := range map[string]string{
		"no tracking url": `{"name":"1001"}`,
		"no order label":  `{"tracking_url":"https://t.example/x"}`,
		"label is only #": `{"name":"#","tracking_url":"https://t.example/x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockStore(ctrl)
			r, logs := newReconciler(store, true)

			res, err := r.Reconcile(context.Background(), tracking.Event{Topic: tracking.TopicFulfillmentCreate, Payload: payload(t, body)})
			require.NoError(t, err)
			assert.Equal(t, tracking.ResultIncomplete, res)
			assert.Contains(t, logs.String(), "skipping")
		})
	}
}

func TestReconcileIgnoresOtherTopics(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	r, _ := newReconciler(store, true)

	res, err := r.Reconcile(context.Background(), tracking.Event{
		Topic:   "orders/create",
		Payload: payload(t, `{"name":"1001","tracking_url":"https://t.example/x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, tracking.ResultIgnored, res)
}

func TestReconcileStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	storeErr := errors.New("store unavailable")
	store.EXPECT().UpsertMerge(gomock.Any(), "1001", tracking.Patch{
		DisplayOrderNumber: "#1001",
		TrackingURL:        "https://t.example/x",
		UpdatedAt:          fixedNow,
	}).Return(storeErr)

	r, logs := newReconciler(store, true)
	res, err := r.Reconcile(context.Background(), tracking.Event{
		Topic:   tracking.TopicFulfillmentUpdate,
		Payload: payload(t, `{"name":"#1001.1","tracking_url":"https://t.example/x"}`),
	})
	assert.Equal(t, tracking.ResultFailed, res)
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, logs.String(), "failed to upsert tracking record")
}

func TestReconcileHistoryFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().UpsertMerge(gomock.Any(), "1001", gomock.Any()).Return(nil)
	store.EXPECT().AppendHistory(gomock.Any(), "1001", gomock.Any()).Return(errors.New("history full"))

	r, logs := newReconciler(store, true)
	res, err := r.Reconcile(context.Background(), tracking.Event{
		Topic:   tracking.TopicFulfillmentCreate,
		Payload: payload(t, `{"name":"1001","tracking_url":"https://t.example/x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, tracking.ResultApplied, res)
	assert.Contains(t, logs.String(), "failed to append tracking history")
}

func TestReconcileWithoutHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().UpsertMerge(gomock.Any(), "1001", gomock.Any()).Return(nil)

	r, _ := newReconciler(store, false)
	res, err := r.Reconcile(context.Background(), tracking.Event{
		Topic:   tracking.TopicFulfillmentCreate,
		Payload: payload(t, `{"name":"1001","tracking_url":"https://t.example/x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, tracking.ResultApplied, res)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "applied", tracking.ResultApplied.String())
	assert.Equal(t, "incomplete", tracking.ResultIncomplete.String())
	assert.Equal(t, "ignored", tracking.ResultIgnored.String())
	assert.Equal(t, "failed", tracking.ResultFailed.String())
	assert.Equal(t, "result(9)", tracking.Result(9).String())
}
