package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/service"
)

// ipnSignatureHeader carries the provider's HMAC of the delivery body.
const ipnSignatureHeader = "x-nowpayments-sig"

// WebhookHandler receives payment-provider IPN deliveries. Unauthenticated:
// the HMAC signature is the only credential.
type WebhookHandler struct {
	depositSvc *service.DepositService
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(depositSvc *service.DepositService) *WebhookHandler {
	return &WebhookHandler{depositSvc: depositSvc}
}

// HandlePaymentWebhook godoc
// POST /api/webhooks/payments
// The body must be read raw; the signature covers the exact bytes sent.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_BODY", "could not read request body")
		return
	}

	signature := c.GetHeader(ipnSignatureHeader)
	if err := h.depositSvc.HandleWebhook(c.Request.Context(), rawBody, signature); err != nil {
		if errors.Is(err, domain.ErrBadSignature) {
			respondError(c, http.StatusUnauthorized, "ERR_BAD_SIGNATURE", domain.ErrBadSignature.Error())
			return
		}
		// Processing failures get a 500 so the provider retries the delivery.
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not process webhook")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"received": true})
}
