package handler

import (
	"errors"
	"log"
	"net/http"

	"artisan/internal/middleware"
	"artisan/internal/service"
	"artisan/pkg/pi"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	svc *service.PaymentService
}

func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type CreatePaymentRequest struct {
	Amount  int64  `json:"amount" binding:"required"`
	VideoID *uint  `json:"video_id"`
	Memo    string `json:"memo"`
}

// Create opens a payment for the authenticated user.
func (h *PaymentHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.Create(c.Request.Context(), userID, req.Amount, req.VideoID, req.Memo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrDuplicatePending),
			errors.Is(err, service.ErrVideoNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case pi.IsRejected(err), errors.Is(err, pi.ErrUnavailable):
			log.Printf("[payment] create rejected by provider: user=%d err=%v", userID, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider error"})
		case errors.Is(err, service.ErrReconciliationRequired):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment creation failed; contact support"})
		default:
			log.Printf("[payment] create failed: user=%d err=%v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment creation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

type ApproveRequest struct {
	ProviderReference string `json:"provider_reference" binding:"required"`
}

// Approve is provider-originated and carries no user auth; the provider
// cannot hold a user token. The remote approve call plus the guarded
// transition keep an unauthenticated caller from moving state anywhere the
// provider hasn't.
func (h *PaymentHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.Approve(c.Request.Context(), req.ProviderReference); err != nil {
		h.writePaymentError(c, "approve", req.ProviderReference, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type CompleteRequest struct {
	ProviderReference string `json:"provider_reference" binding:"required"`
	TxID              string `json:"txid"`
}

func (h *PaymentHandler) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.Complete(c.Request.Context(), req.ProviderReference, req.TxID); err != nil {
		h.writePaymentError(c, "complete", req.ProviderReference, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Status is the polling fallback for clients waiting on a delayed webhook.
func (h *PaymentHandler) Status(c *gin.Context) {
	ref := c.Param("provider_reference")
	p, err := h.svc.StatusByProviderRef(ref)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		log.Printf("[payment] status lookup failed: ref=%s err=%v", ref, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PaymentHandler) MyPayments(c *gin.Context) {
	userID := middleware.GetUserID(c)
	payments, err := h.svc.ListByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *PaymentHandler) writePaymentError(c *gin.Context, op, ref string, err error) {
	switch {
	case errors.Is(err, service.ErrMissingTxID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
	case pi.IsRejected(err), errors.Is(err, pi.ErrUnavailable):
		log.Printf("[payment] %s provider error: ref=%s err=%v", op, ref, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider error"})
	default:
		log.Printf("[payment] %s failed: ref=%s err=%v", op, ref, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
