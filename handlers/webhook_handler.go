package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-marketplace/services"
)

// SignatureHeader carries the gateway's HMAC over the raw request body.
const SignatureHeader = "X-Gateway-Signature"

const maxWebhookBody = 1 << 20 // 1 MiB

type WebhookHandler struct {
	webhooks *services.WebhookService
}

func NewWebhookHandler(webhooks *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandleWebhook - Receive a payment gateway event
//
// The body is read raw before any parsing: the signature covers the exact
// bytes on the wire, so binding into a struct first would break
// verification.
func (h *WebhookHandler) HandleWebhook(e *core.RequestEvent) error {
	body, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return apis.NewBadRequestError("Failed to read request body", err)
	}

	ev, err := h.webhooks.VerifyAndParse(body, e.Request.Header.Get(SignatureHeader))
	if err != nil {
		slog.Warn("rejected webhook delivery", "error", err, "remote", e.Request.RemoteAddr)
		return apis.NewBadRequestError("Invalid signature", nil)
	}

	// A processing error returns 500 so the gateway redelivers; the
	// idempotency ledger makes the retry safe.
	if err := h.webhooks.Process(e.Request.Context(), ev); err != nil {
		slog.Error("webhook processing failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		return apis.NewApiError(http.StatusInternalServerError, "Event processing failed", nil)
	}

	return e.JSON(http.StatusOK, map[string]string{"received": "true"})
}
