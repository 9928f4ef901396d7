package httpapi

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/billing"
	"github.com/tradefloor/tradefloor/internal/metrics"
	"github.com/tradefloor/tradefloor/internal/web/response"
)

// maxWebhookBody caps webhook payload reads. Provider events are a few
// KB; anything larger is not a legitimate delivery.
const maxWebhookBody = 1 << 20

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

// handleBillingWebhook verifies and applies a billing provider event.
// Signature and parse failures return 400 so the provider retries only
// deliveries we could not even authenticate; applied, replayed, and
// ignored events all acknowledge with 200.
func (a *API) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.RecordWebhookEvent("rejected")
		response.RenderBadRequest(w, "could not read request body")
		return
	}

	outcome, err := a.deps.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature),
			errors.Is(err, billing.ErrStaleTimestamp),
			errors.Is(err, billing.ErrMalformedEvent):
			metrics.RecordWebhookEvent("rejected")
			response.RenderBadRequest(w, err.Error())
		default:
			metrics.RecordWebhookEvent("error")
			a.log.Error("webhook processing failed", zap.Error(err))
			response.RenderInternalError(w, err)
		}
		return
	}

	metrics.RecordWebhookEvent(string(outcome))
	response.RenderJSON(w, http.StatusOK, webhookResponse{Received: true, Outcome: string(outcome)})
}
