package handlers

import (
	"errors"
	"net/http"

	"notetracker/internal/auth"
	"notetracker/internal/repository"
	"notetracker/internal/utils"

	"github.com/gin-gonic/gin"
)

// ListNotifications returns the caller's in-app inbox, optionally unread only
func (h *Handler) ListNotifications(c *gin.Context) {
	userID := auth.UserIDFromContext(c)
	unreadOnly := c.Query("unread") == "true"
	limit := utils.QueryLimit(c, repository.DefaultHistoryLimit, maxHistoryLimit)

	notifications, err := h.notifications.List(c.Request.Context(), userID, unreadOnly, limit)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to list notifications", err)
		return
	}
	unread, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to count notifications", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// MarkNotificationRead marks one notification as read
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "notification_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), auth.UserIDFromContext(c), id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		handleError(c, http.StatusInternalServerError, "Failed to update notification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllNotificationsRead clears the caller's unread inbox
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), auth.UserIDFromContext(c))
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to update notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
