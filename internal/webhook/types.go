package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mattjoyce/trackhook/internal/tracking"
)

// Header names set by the sender.
const (
	HeaderHMAC       = "X-Shopify-Hmac-Sha256"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
)

var (
	// ErrMissingHeaders means a required header or the body was absent.
	ErrMissingHeaders = errors.New("missing webhook headers")
	// ErrUnauthorized means the digest did not match.
	ErrUnauthorized = errors.New("webhook verification failed")
	// ErrMalformedPayload means the digest matched but the body is not a JSON object.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrPayloadTooLarge means the body exceeded the configured limit.
	ErrPayloadTooLarge = errors.New("webhook payload too large")
)

// Reconciler applies verified events.
type Reconciler interface {
	Reconcile(ctx context.Context, ev tracking.Event) (tracking.Result, error)
}

// Config holds webhook endpoint configuration.
type Config struct {
	// Path is the URL path the webhook is mounted on.
	Path string
	// Secret is the shared HMAC secret.
	Secret string
	// ShopDomain, when set, pins the accepted X-Shopify-Shop-Domain value.
	ShopDomain string
	// MaxBodySize is the maximum accepted body size in bytes.
	MaxBodySize int64
}

// Headers carries the metadata headers the verifier needs.
type Headers struct {
	HMAC       string
	Topic      string
	ShopDomain string
}

// HeadersFrom extracts Headers from an HTTP header set.
func HeadersFrom(h http.Header) Headers {
	return Headers{
		HMAC:       h.Get(HeaderHMAC),
		Topic:      h.Get(HeaderTopic),
		ShopDomain: h.Get(HeaderShopDomain),
	}
}

func (h Headers) complete() bool {
	return h.HMAC != "" && h.Topic != "" && h.ShopDomain != ""
}

// Payload is a verified, decoded webhook body.
type Payload map[string]json.RawMessage

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
	DefaultPath        = "/webhooks/fulfillments"
)
