package api

import (
	"time"

	"github.com/mattjoyce/trackhook/internal/tracking"
)

// ErrorResponse is the JSON body of every non-2xx lookup response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TrackingResponse is returned by GET /tracking.
type TrackingResponse struct {
	// TrackingURL is null when a record exists but has no URL yet.
	TrackingURL *string `json:"trackingUrl"`
}

// HistoryResponse is returned by GET /tracking/history.
type HistoryResponse struct {
	OrderNumber string                  `json:"orderNumber"`
	TrackingURL *string                 `json:"trackingUrl"`
	UpdatedAt   time.Time               `json:"updatedAt"`
	History     []tracking.HistoryEntry `json:"history"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Client-facing error messages.
const (
	msgOrderNumberRequired = "Order number is required."
	msgOrderNotFound       = "Order not found."
	msgLookupFailed        = "Failed to retrieve tracking information."
	rootBanner             = "Order tracking webhook service is running."
)
