package httpadapter

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/eatwise/labelscan/internal/core/domain"
)

const maxWebhookBodyBytes = 65536

func (rt *Router) startCheckout(w http.ResponseWriter, r *http.Request) {
	if rt.services.Billing == nil {
		writeError(w, domain.ErrBillingUnavailable)
		return
	}
	session, err := rt.services.Billing.StartCheckout(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// stripeWebhook answers 400 for unverifiable payloads and 500 for anything
// the provider should redeliver.
func (rt *Router) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	if rt.services.Billing == nil {
		writeError(w, domain.ErrBillingUnavailable)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload too large")
			return
		}
		writeErrorMessage(w, http.StatusServiceUnavailable, "read_failed", "failed to read webhook payload")
		return
	}

	err = rt.services.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case domain.IsKind(err, domain.ErrInvalidSignature), domain.IsKind(err, domain.ErrInvalidInput):
		slog.Warn("stripe_webhook_rejected", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeErrorMessage(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	case domain.IsKind(err, domain.ErrBillingUnavailable):
		writeError(w, err)
	default:
		slog.Error("stripe_webhook_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "webhook_failed", "webhook processing failed")
	}
}
