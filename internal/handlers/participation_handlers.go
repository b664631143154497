package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/servehub/internal/models"
)

//
// --- Participation Handlers ---
//

// ParticipationRequestInput is the body of POST /v1/events/:id/participation-requests.
type ParticipationRequestInput struct {
	Message string `json:"message" binding:"max=1000"`
}

// RejectInput carries an optional free-text reason.
type RejectInput struct {
	Reason string `json:"reason" binding:"max=500"`
}

// RequestParticipation is the handler for POST /v1/events/:id/participation-requests
func (h *Handlers) RequestParticipation(c *gin.Context) {
	var input ParticipationRequestInput
	// An empty body is fine; only a malformed one is rejected.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	req, err := h.Participation.Request(c.Request.Context(), c.Param("id"), currentUserID(c), input.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": req})
}

// GetParticipationRequests is the handler for GET /v1/events/:id/participation-requests
func (h *Handlers) GetParticipationRequests(c *gin.Context) {
	list, err := h.Participation.ListForEvent(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if list == nil {
		list = []models.ParticipationRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

// AcceptParticipation is the handler for PATCH /v1/participation-requests/:id/accept
// It changes a request's status from "pending" to "accepted".
func (h *Handlers) AcceptParticipation(c *gin.Context) {
	req, err := h.Participation.Accept(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Participation request accepted",
		"data":    req,
	})
}

// RejectParticipation is the handler for PATCH /v1/participation-requests/:id/reject
// It changes a request's status from "pending" to "rejected".
func (h *Handlers) RejectParticipation(c *gin.Context) {
	var input RejectInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	req, err := h.Participation.Reject(c.Request.Context(), c.Param("id"), currentUserID(c), input.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Participation request rejected",
		"data":    req,
	})
}
