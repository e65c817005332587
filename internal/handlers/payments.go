package handlers

import (
	"log/slog"
	"net/http"

	"attendly/internal/models"

	"github.com/gin-gonic/gin"
)

// Payments handlers

// CreateOrder - POST /api/payments/order
// Создать платежный ордер для регистрации
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	attendeeID, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.services.Payments.CreateOrder(c.Request.Context(), req.RegistrationID, attendeeID)
	if err != nil {
		slog.Error("Failed to create payment order", "error", err, "registration_id", req.RegistrationID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// VerifyPayment - POST /api/payments/verify
// Синхронное подтверждение оплаты после checkout
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	reg, err := h.services.Payments.Verify(c.Request.Context(), &req)
	if err != nil {
		slog.Error("Failed to verify payment", "error", err, "registration_id", req.RegistrationID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.RegisterResponse{
		ID:            reg.ID,
		EventID:       reg.EventID,
		Status:        reg.Status,
		PaymentStatus: reg.PaymentStatus,
		PaymentAmount: reg.PaymentAmount,
	})
}

// PaymentWebhook - POST /webhooks/payment
// Асинхронное подтверждение от платежного шлюза. The signature covers the
// exact raw bytes, so the body is read before any binding.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing webhook signature"})
		return
	}

	if err := h.services.Payments.HandleWebhook(c.Request.Context(), rawBody, signature); err != nil {
		slog.Error("Failed to process payment webhook", "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CancelPendingPayment - DELETE /api/payments/:registrationId
// Удалить свою незавершенную регистрацию
func (h *Handlers) CancelPendingPayment(c *gin.Context) {
	registrationID := c.Param("registrationId")

	attendeeID, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.services.Payments.CancelPending(c.Request.Context(), registrationID, attendeeID); err != nil {
		slog.Error("Failed to cancel pending payment", "error", err, "registration_id", registrationID)
		respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// PaymentHistory - GET /api/payments/history
// История завершенных платежей пользователя
func (h *Handlers) PaymentHistory(c *gin.Context) {
	attendeeID, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	history, err := h.services.Payments.History(c.Request.Context(), attendeeID)
	if err != nil {
		slog.Error("Failed to load payment history", "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}
