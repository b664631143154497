package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/servehub/internal/auth"
	"github.com/01moynul/servehub/internal/events"
	"github.com/01moynul/servehub/internal/middleware"
	"github.com/01moynul/servehub/internal/notify"
	"github.com/01moynul/servehub/internal/participation"
	"github.com/01moynul/servehub/internal/storage"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Notifications *notify.Service
	Participation *participation.Service
	Events        *events.Service
	Users         *storage.UserStore
	Tokens        *auth.Issuer
	Logger        *log.Logger
}

// currentUserID reads the id AuthMiddleware derived from the token.
func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

// respondError maps domain errors to HTTP statuses. Anything unrecognised is
// logged and reported as a generic 500 so internals never leak to the client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, notify.ErrNotFound),
		errors.Is(err, participation.ErrNotFound),
		errors.Is(err, participation.ErrEventNotFound),
		errors.Is(err, participation.ErrUserNotFound),
		errors.Is(err, events.ErrNotFound),
		errors.Is(err, events.ErrUserNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, participation.ErrForbidden),
		errors.Is(err, events.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, participation.ErrAlreadyDecided),
		errors.Is(err, participation.ErrDuplicateRequest),
		errors.Is(err, events.ErrInvalidTransition),
		errors.Is(err, storage.ErrEmailTaken):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, participation.ErrReasonTooLong),
		errors.Is(err, participation.ErrEventNotOpen),
		errors.Is(err, events.ErrReasonTooLong),
		errors.Is(err, events.ErrInvalidInput),
		errors.Is(err, notify.ErrInvalidInput),
		errors.Is(err, notify.ErrRecipientRequired):
		status, message = http.StatusBadRequest, err.Error()
	default:
		h.logger().Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}

	c.JSON(status, gin.H{"success": false, "error": message})
}

func (h *Handlers) logger() *log.Logger {
	if h.Logger == nil {
		return log.Default()
	}
	return h.Logger
}
