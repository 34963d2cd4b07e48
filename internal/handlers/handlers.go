package handlers

import (
	"log"
	"net/http"

	"notetracker/internal/repository"
	"notetracker/internal/services"

	"github.com/gin-gonic/gin"
)

// EngineStatus reports whether the scheduler loop is running
type EngineStatus interface {
	Running() bool
}

// Handler serves the reminder and notification endpoints
type Handler struct {
	reminders     *repository.ReminderRepository
	tasks         *repository.TaskStore
	notifications *repository.NotificationStore
	delivery      *services.DeliveryService
	engine        EngineStatus
}

func New(reminders *repository.ReminderRepository, tasks *repository.TaskStore, notifications *repository.NotificationStore,
	delivery *services.DeliveryService, engine EngineStatus) *Handler {
	return &Handler{
		reminders:     reminders,
		tasks:         tasks,
		notifications: notifications,
		delivery:      delivery,
		engine:        engine,
	}
}

// RegisterRoutes mounts the protected routes on the given group
func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.POST("/tasks/:task_id/reminders", h.CreateReminder)

	protected.GET("/reminders/pending", h.ListPendingReminders)
	protected.GET("/reminders/history", h.ListReminderHistory)
	protected.GET("/reminders/stats", h.GetReminderStats)
	protected.GET("/reminders/:reminder_id", h.GetReminder)
	protected.POST("/reminders/:reminder_id/resend", h.ResendReminder)
	protected.DELETE("/reminders/:reminder_id", h.DeleteReminder)

	protected.GET("/notifications", h.ListNotifications)
	protected.POST("/notifications/read-all", h.MarkAllNotificationsRead)
	protected.POST("/notifications/:notification_id/read", h.MarkNotificationRead)
}

// handleError provides a consistent way to handle and log errors
func handleError(c *gin.Context, status int, message string, err error) {
	log.Printf("Error: %v", err)
	c.JSON(status, gin.H{"error": message})
}

// HomeHandler handles requests to the root path "/"
func HomeHandler(c *gin.Context) {
	c.String(http.StatusOK, "NoteTracker reminder service")
}

// HealthHandler is a simple health check endpoint
func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
