package webhook

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mattjoyce/trackhook/internal/tracking"
)

// Outcome classifies how a webhook request ended.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeIncomplete
	OutcomeIgnored
	OutcomeProcessingFailed
	OutcomeMissingHeaders
	OutcomeUnauthorized
	OutcomeMalformedPayload
	OutcomePayloadTooLarge
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeProcessingFailed:
		return "processing_failed"
	case OutcomeMissingHeaders:
		return "missing_headers"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeMalformedPayload:
		return "malformed_payload"
	case OutcomePayloadTooLarge:
		return "payload_too_large"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Verified reports whether the request passed verification.
func (o Outcome) Verified() bool {
	return o <= OutcomeProcessingFailed
}

// StatusFor maps an outcome to the HTTP status returned to the sender.
// Every outcome after verification is acknowledged with 200, including
// processing failures, so the sender never redelivers into an outage.
func StatusFor(o Outcome) int {
	switch o {
	case OutcomeApplied, OutcomeIncomplete, OutcomeIgnored, OutcomeProcessingFailed:
		return http.StatusOK
	case OutcomeMalformedPayload:
		return http.StatusBadRequest
	case OutcomePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusUnauthorized
	}
}

// ClassifyVerification maps a verification error to an outcome.
func ClassifyVerification(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeApplied
	case errors.Is(err, ErrMissingHeaders):
		return OutcomeMissingHeaders
	case errors.Is(err, ErrMalformedPayload):
		return OutcomeMalformedPayload
	case errors.Is(err, ErrPayloadTooLarge):
		return OutcomePayloadTooLarge
	default:
		return OutcomeUnauthorized
	}
}

// ClassifyReconcile maps a reconciliation result to an outcome.
func ClassifyReconcile(res tracking.Result, err error) Outcome {
	if err != nil {
		return OutcomeProcessingFailed
	}
	switch res {
	case tracking.ResultApplied:
		return OutcomeApplied
	case tracking.ResultIncomplete:
		return OutcomeIncomplete
	case tracking.ResultIgnored:
		return OutcomeIgnored
	default:
		return OutcomeProcessingFailed
	}
}
