package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"artisan/internal/domain"
	"artisan/internal/service"
	"artisan/pkg/pi"

	"github.com/gin-gonic/gin"
)

// SignatureHeader is the header Pi signs webhook deliveries with.
const SignatureHeader = "x-pi-signature"

type PaymentWebhookHandler struct {
	svc      *service.PaymentService
	verifier *pi.SignatureVerifier
}

func NewPaymentWebhookHandler(svc *service.PaymentService, verifier *pi.SignatureVerifier) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{svc: svc, verifier: verifier}
}

type webhookPayload struct {
	Identifier string `json:"identifier"`
	TxID       string `json:"txid"`
	Status     string `json:"status"`
}

// Handle verifies the HMAC over the raw body before anything is parsed,
// then applies the asserted status through the same conditional transition
// the direct calls use. Duplicate deliveries and notifications for payments
// already moved by a direct call are acknowledged without mutation.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !h.verifier.Verify(body, c.GetHeader(SignatureHeader)) {
		log.Printf("[webhook] invalid signature from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if payload.Identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier required"})
		return
	}
	status := domain.PaymentStatus(strings.ToLower(payload.Status))
	err = h.svc.ApplyWebhookUpdate(payload.Identifier, status, payload.TxID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported status"})
	case errors.Is(err, service.ErrPaymentNotFound):
		// Ack deliveries for references we never recorded so the provider
		// stops redelivering; the payload is logged for investigation.
		log.Printf("[webhook] unknown provider reference %s (status=%s)", payload.Identifier, payload.Status)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	default:
		log.Printf("[webhook] update failed: ref=%s err=%v", payload.Identifier, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
	}
}
