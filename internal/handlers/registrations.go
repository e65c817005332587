package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"attendly/internal/models"

	"github.com/gin-gonic/gin"
)

// Registrations handlers

// Register - POST /api/events/:id/register
// Зарегистрироваться на событие
func (h *Handlers) Register(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	attendeeID, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	reg, err := h.services.Registrations.Register(c.Request.Context(), eventID, attendeeID)
	if err != nil {
		slog.Error("Failed to register for event", "error", err, "event_id", eventID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.RegisterResponse{
		ID:            reg.ID,
		EventID:       reg.EventID,
		Status:        reg.Status,
		PaymentStatus: reg.PaymentStatus,
		PaymentAmount: reg.PaymentAmount,
	})
}

// Unregister - DELETE /api/events/:id/register
// Отменить регистрацию на событие
func (h *Handlers) Unregister(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	attendeeID, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	regs, err := h.services.Registrations.ListMine(c.Request.Context(), attendeeID, models.StatusRegistered)
	if err != nil {
		slog.Error("Failed to resolve registration", "error", err, "event_id", eventID)
		respondError(c, err)
		return
	}

	var registrationID string
	for _, reg := range regs {
		if reg.EventID == eventID {
			registrationID = reg.ID
			break
		}
	}
	if registrationID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "registration not found"})
		return
	}

	if err := h.services.Registrations.Cancel(c.Request.Context(), registrationID, attendeeID); err != nil {
		slog.Error("Failed to cancel registration", "error", err, "registration_id", registrationID)
		respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// MyRegistrations - GET /api/registrations/my
// Получить регистрации пользователя
func (h *Handlers) MyRegistrations(c *gin.Context) {
	attendeeID, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	status := c.DefaultQuery("status", models.StatusRegistered)

	regs, err := h.services.Registrations.ListMine(c.Request.Context(), attendeeID, status)
	if err != nil {
		slog.Error("Failed to list registrations", "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, regs)
}

// EventRegistrations - GET /api/events/:id/registrations
// Получить регистрации события (только организатор)
func (h *Handlers) EventRegistrations(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	requesterID, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	regs, err := h.services.Registrations.ListForEvent(c.Request.Context(), eventID, requesterID, c.Query("status"))
	if err != nil {
		slog.Error("Failed to list event registrations", "error", err, "event_id", eventID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, regs)
}

// AuditEvent - POST /api/events/:id/audit
// Пересчитать счетчик участников события
func (h *Handlers) AuditEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	result, err := h.services.Audit.AuditEvent(c.Request.Context(), eventID)
	if err != nil {
		slog.Error("Failed to audit event", "error", err, "event_id", eventID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
