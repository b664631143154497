package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/servehub/internal/events"
	"github.com/01moynul/servehub/internal/models"
)

//
// --- Organizer: Event Handlers ---
//

// SubmitEventInput is the body of POST /v1/events.
type SubmitEventInput struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description" binding:"max=5000"`
	Points      int64  `json:"points" binding:"min=0,max=1000"`
}

// SubmitEvent is the handler for POST /v1/events
// New events start "pending" and every admin is asked to review them.
func (h *Handlers) SubmitEvent(c *gin.Context) {
	var input SubmitEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	event, err := h.Events.Submit(c.Request.Context(), currentUserID(c), events.SubmitInput{
		Title:       input.Title,
		Description: input.Description,
		Points:      input.Points,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": event})
}

// RequestEventCompletion is the handler for POST /v1/events/:id/completion-request
func (h *Handlers) RequestEventCompletion(c *gin.Context) {
	event, err := h.Events.RequestCompletion(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Completion submitted for review",
		"data":    event,
	})
}

//
// --- Admin: Event Approval Handlers ---
//

// GetPendingEvents is the handler for GET /v1/admin/events/pending
func (h *Handlers) GetPendingEvents(c *gin.Context) {
	list, err := h.Events.ListPending(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

// ApproveEvent is the handler for PATCH /v1/admin/events/:id/approve
// It changes an event's status from "pending" to "approved".
func (h *Handlers) ApproveEvent(c *gin.Context) {
	event, err := h.Events.Approve(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Event approved", "data": event})
}

// RejectEvent is the handler for PATCH /v1/admin/events/:id/reject
func (h *Handlers) RejectEvent(c *gin.Context) {
	var input RejectInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}
	event, err := h.Events.Reject(c.Request.Context(), c.Param("id"), currentUserID(c), input.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Event rejected", "data": event})
}

// ApproveEventCompletion is the handler for PATCH /v1/admin/events/:id/completion/approve
// Accepted volunteers are credited with the event's points.
func (h *Handlers) ApproveEventCompletion(c *gin.Context) {
	event, awards, err := h.Events.ApproveCompletion(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           "Event completion approved",
		"data":              event,
		"volunteersAwarded": len(awards),
	})
}

// RejectEventCompletion is the handler for PATCH /v1/admin/events/:id/completion/reject
func (h *Handlers) RejectEventCompletion(c *gin.Context) {
	var input RejectInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}
	event, err := h.Events.RejectCompletion(c.Request.Context(), c.Param("id"), currentUserID(c), input.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Event completion rejected", "data": event})
}
