package webhook

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mattjoyce/trackhook/internal/tracking"
	"github.com/zeebo/blake3"
)

// Handler serves the fulfillment webhook endpoint.
type Handler struct {
	config     Config
	verifier   *Verifier
	reconciler Reconciler
	logger     *slog.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(config Config, reconciler Reconciler, logger *slog.Logger) *Handler {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	return &Handler{
		config:     config,
		verifier:   NewVerifier(config.Secret, config.ShopDomain),
		reconciler: reconciler,
		logger:     logger,
	}
}

// Path returns the URL path the handler expects to be mounted on.
func (h *Handler) Path() string {
	return h.config.Path
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	outcome := h.handle(r)
	status := StatusFor(outcome)
	if status == http.StatusOK {
		w.WriteHeader(status)
		return
	}
	http.Error(w, http.StatusText(status), status)
}

func (h *Handler) handle(r *http.Request) Outcome {
	logger := h.logger.With("request_id", middleware.GetReqID(r.Context()))

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, h.config.MaxBodySize+1))
	if err != nil {
		logger.Warn("failed to read webhook body", "error", err)
		return OutcomeMalformedPayload
	}
	if int64(len(body)) > h.config.MaxBodySize {
		logger.Warn("webhook payload too large", "limit", h.config.MaxBodySize)
		return ClassifyVerification(ErrPayloadTooLarge)
	}

	headers := HeadersFrom(r.Header)
	payload, err := h.verifier.Verify(body, headers)
	if err != nil {
		outcome := ClassifyVerification(err)
		logger.Warn("webhook rejected",
			"outcome", outcome.String(),
			"topic", headers.Topic,
			"shop", headers.ShopDomain,
		)
		return outcome
	}

	deliveryID := r.Header.Get(HeaderWebhookID)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	digest := blake3.Sum256(body)
	ev := tracking.Event{
		Topic:       headers.Topic,
		ShopDomain:  headers.ShopDomain,
		DeliveryID:  deliveryID,
		Payload:     tracking.Payload(payload),
		Fingerprint: hex.EncodeToString(digest[:]),
	}

	// The sender hanging up must not abort a store write for a verified event.
	res, err := h.reconcile(context.WithoutCancel(r.Context()), ev)
	outcome := ClassifyReconcile(res, err)
	if err != nil {
		logger.Error("webhook processing failed, acknowledging anyway",
			"topic", ev.Topic,
			"delivery_id", ev.DeliveryID,
			"error", err,
		)
	}
	return outcome
}

// reconcile shields the acknowledgment policy from panics in reconciliation.
func (h *Handler) reconcile(ctx context.Context, ev tracking.Event) (res tracking.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = tracking.ResultFailed, fmt.Errorf("reconcile panic: %v", p)
		}
	}()
	return h.reconciler.Reconcile(ctx, ev)
}
