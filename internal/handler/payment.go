package handler

import (
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/payment"
	"github.com/dukerupert/pluginhub/internal/service"
)

const maxWebhookBody = 65536

// WebhookVerifier checks a webhook signature and decodes the event.
// *payment.Client implements it.
type WebhookVerifier interface {
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type PaymentHandler struct {
	payments *service.PaymentService
	verifier WebhookVerifier
	logger   *slog.Logger
}

func NewPaymentHandler(payments *service.PaymentService, verifier WebhookVerifier, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, verifier: verifier, logger: logger}
}

func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccount(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req struct {
		PluginIDs []int64 `json:"plugin_ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	intent, err := h.payments.CreateIntent(r.Context(), accountID, req.PluginIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// HandleStripeWebhook grants purchased plugins once Stripe reports the
// payment as succeeded. Failures that a retry cannot fix are acknowledged so
// Stripe stops redelivering them.
func (h *PaymentHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "read body"})
		return
	}

	event, err := h.verifier.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid signature"})
		return
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		if !h.handleIntentSucceeded(r, event) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
			return
		}
	default:
		h.logger.Debug("webhook event ignored", "type", event.Type, "id", event.ID)
	}

	w.WriteHeader(http.StatusOK)
}

// handleIntentSucceeded reports false when the event should be redelivered.
func (h *PaymentHandler) handleIntentSucceeded(r *http.Request, event stripe.Event) bool {
	purchase, err := payment.PurchaseFromEvent(event)
	if err != nil {
		h.logger.Error("webhook: decode purchase", "event_id", event.ID, "error", err)
		return true
	}
	if _, err := h.payments.Fulfil(r.Context(), purchase); err != nil {
		status, _ := apperr.Public(err)
		h.logger.Error("webhook: fulfil purchase", "intent_id", purchase.IntentID, "account_id", purchase.AccountID, "error", err)
		return status < http.StatusInternalServerError
	}
	return true
}
