package handler

import (
	"io"

	"wallet-ledger-service/internal/adapter/http/dto"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/internal/service"
	"wallet-ledger-service/pkg/apperror"
	"wallet-ledger-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives payment processor deliveries.
type WebhookHandler struct {
	verifier   ports.EventVerifier
	dispatcher ports.EventDispatcher
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(verifier ports.EventVerifier, dispatcher ports.EventDispatcher) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		dispatcher: dispatcher,
	}
}

// HandleEvent handles POST /webhooks/payments.
// The signature covers the exact raw bytes, so the body is read before any
// JSON decoding happens.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader(service.SignatureHeader))
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), event)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWebhookAck(result))
}
