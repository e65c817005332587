package handlers

import (
	"errors"
	"net/http"

	"attendly/internal/errs"
	"attendly/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		services: services,
	}
}

// respondError maps sentinel errors to a specific status and kind so the
// client can present an actionable message; everything else is a 500
// with a generic body.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrEventNotFound),
		errors.Is(err, errs.ErrRegistrationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrAlreadyRegistered),
		errors.Is(err, errs.ErrEventFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrEventNotAccepting),
		errors.Is(err, errs.ErrRegistrationNotPending),
		errors.Is(err, errs.ErrFreeEvent),
		errors.Is(err, errs.ErrInvalidSignature),
		errors.Is(err, errs.ErrUnknownOrder),
		errors.Is(err, errs.ErrMalformedPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrGatewayUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// userID returns the authenticated attendee id set by the BasicAuth
// middleware.
func userID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
