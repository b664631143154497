package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/servehub/internal/models"
	"github.com/01moynul/servehub/internal/notify"
)

//
// --- Notification Handlers ---
//

// MarkReadInput is the body of PUT /v1/notifications/mark-read.
type MarkReadInput struct {
	NotificationIDs []string `json:"notificationIds" binding:"required,min=1,dive,required"`
}

// GetMyNotifications is the handler for GET /v1/notifications?limit=N
// It returns the newest notifications of the logged-in user plus the unread total.
func (h *Handlers) GetMyNotifications(c *gin.Context) {
	// 1. --- Get User ID and limit ---
	userID := currentUserID(c)
	limit := notify.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a number"})
			return
		}
		limit = parsed
	}

	// 2. --- Load page and count ---
	notifications, err := h.Notifications.List(c.Request.Context(), userID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	unread, err := h.Notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	// 3. --- Send Success Response ---
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        notifications,
		"unreadCount": unread,
	})
}

// GetUnreadCount is the handler for GET /v1/notifications/unread-count
// This is the cheap endpoint the badge polls.
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	count, err := h.Notifications.UnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

// MarkNotificationsAsRead is the handler for PUT /v1/notifications/mark-read
// Every id must belong to the caller; otherwise nothing changes and 404 is returned.
func (h *Handlers) MarkNotificationsAsRead(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input MarkReadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// 2. --- Execute Update ---
	updated, err := h.Notifications.MarkRead(c.Request.Context(), currentUserID(c), input.NotificationIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 3. --- Send Success Response ---
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Notifications marked as read",
		"updated": updated,
	})
}

// MarkAllNotificationsAsRead is the handler for PUT /v1/notifications/mark-all-read
func (h *Handlers) MarkAllNotificationsAsRead(c *gin.Context) {
	updated, err := h.Notifications.MarkAllRead(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "All notifications marked as read",
		"updated": updated,
	})
}

// DeleteNotification is the handler for DELETE /v1/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	if err := h.Notifications.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification deleted"})
}
