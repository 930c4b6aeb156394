package tracking_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/mattjoyce/trackhook/internal/storage"
	"github.com/mattjoyce/trackhook/internal/tracking"
	"github.com/mattjoyce/trackhook/internal/tracking/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupAfterReconcile(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	r, _ := newReconciler(store, true)

	_, err := r.Reconcile(ctx, tracking.Event{
		Topic:   tracking.TopicFulfillmentCreate,
		Payload: payload(t, `{"name":"1001.1","tracking_url":"https://t.example/x"}`),
	})
	require.NoError(t, err)

	lookup := tracking.NewLookup(store)
	for _, query := range []string{"#1001", "1001", "1001.1", " #1001.2 "} {
		rec, err := lookup.Find(ctx, query)
		require.NoError(t, err, "query %q", query)
		require.NotNil(t, rec.TrackingURL)
		assert.Equal(t, "https://t.example/x", *rec.TrackingURL, "query %q", query)
	}
}

func TestLookupNotFound(t *testing.T) {
	lookup := tracking.NewLookup(storage.NewMemoryStore())
	_, err := lookup.Find(context.Background(), "doesnotexist")
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestLookupEmptyQueryNeverTouchesStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	lookup := tracking.NewLookup(store)

	for _, query := range []string{"", "   ", "\t\n", "#", "##"} {
		_, err := lookup.Find(context.Background(), query)
		assert.ErrorIs(t, err, tracking.ErrEmptyQuery, "query %q", query)
	}
}

func TestLookupStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	storeErr := errors.New("connection reset")
	store.EXPECT().Get(gomock.Any(), "1001").Return(nil, storeErr)

	_, err := tracking.NewLookup(store).Find(context.Background(), "#1001")
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, tracking.ErrNotFound)
}

func TestLookupReturnsRecordWithoutURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "1001").Return(&tracking.Record{OrderKey: "1001", DisplayOrderNumber: "#1001"}, nil)

	rec, err := tracking.NewLookup(store).Find(context.Background(), "1001")
	require.NoError(t, err)
	assert.Nil(t, rec.TrackingURL)
}

func TestLookupHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	r, _ := newReconciler(store, true)

	for _, url := range []string{"https://t.example/1", "https://t.example/2"} {
		_, err := r.Reconcile(ctx, tracking.Event{
			Topic:   tracking.TopicFulfillmentUpdate,
			Payload: payload(t, `{"name":"#1001","tracking_url":"`+url+`"}`),
		})
		require.NoError(t, err)
	}

	rec, entries, err := tracking.NewLookup(store).History(ctx, "1001.3")
	require.NoError(t, err)
	assert.Equal(t, "1001", rec.OrderKey)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://t.example/1", entries[0].TrackingURL)
	assert.Equal(t, "https://t.example/2", entries[1].TrackingURL)

	_, _, err = tracking.NewLookup(store).History(ctx, "2002")
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestKey(t *testing.T) {
	key, err := tracking.Key(" #1001.1 ")
	require.NoError(t, err)
	assert.Equal(t, "1001", key)

	_, err = tracking.Key(" ")
	assert.ErrorIs(t, err, tracking.ErrEmptyQuery)
}
