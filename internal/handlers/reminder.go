package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"notetracker/internal/auth"
	"notetracker/internal/models"
	"notetracker/internal/repository"
	"notetracker/internal/services"
	"notetracker/internal/utils"

	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 500

// CreateReminder attaches a reminder to one of the caller's tasks
func (h *Handler) CreateReminder(c *gin.Context) {
	userID := auth.UserIDFromContext(c)
	taskID, err := utils.ParseIDParam(c, "task_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var request models.CreateReminderRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		log.Printf("Error: Invalid input: %s", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid input: %s", err.Error())})
		return
	}
	rule := request.Rule()
	if err := services.ValidateRule(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), taskID)
	if errors.Is(err, repository.ErrTaskNotFound) || (err == nil && task.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to load task", err)
		return
	}

	reminder := models.Reminder{
		TaskID:      task.ID,
		TriggerKind: rule.Kind,
		DaysBefore:  rule.DaysBefore,
		RemindAt:    rule.RemindAt,
	}
	if err := h.reminders.Create(c.Request.Context(), &reminder); err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to create reminder", err)
		return
	}

	// A due-date rule on a task without a usable due date never fires
	due, err := task.DueAt()
	inert := rule.DependsOnDueDate() && (err != nil || due == nil)
	if inert {
		log.Printf("Warning: Reminder %d on task %d has no due date to fire against", reminder.ID, task.ID)
	}

	c.JSON(http.StatusCreated, gin.H{
		"reminder": reminder,
		"inert":    inert,
	})
}

// pendingReminder is a pending reminder with its next evaluation time.
// TriggerAt is nil while the reminder is inert.
type pendingReminder struct {
	models.Reminder
	TriggerAt *time.Time `json:"trigger_at"`
}

// ListPendingReminders returns the caller's unsent reminders
func (h *Handler) ListPendingReminders(c *gin.Context) {
	reminders, err := h.reminders.ListPending(c.Request.Context(), auth.UserIDFromContext(c))
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to list pending reminders", err)
		return
	}

	views := make([]pendingReminder, 0, len(reminders))
	for _, r := range reminders {
		view := pendingReminder{Reminder: r}
		due, err := r.Task.DueAt()
		if err == nil {
			if at, err := services.TriggerAt(due, r.Rule()); err == nil {
				view.TriggerAt = &at
			}
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, views)
}

// ListReminderHistory returns the caller's sent reminders with their channel results
func (h *Handler) ListReminderHistory(c *gin.Context) {
	limit := utils.QueryLimit(c, repository.DefaultHistoryLimit, maxHistoryLimit)
	reminders, err := h.reminders.ListHistory(c.Request.Context(), auth.UserIDFromContext(c), limit)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to list reminder history", err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}

// GetReminderStats returns pending/sent counts and whether the engine is running
func (h *Handler) GetReminderStats(c *gin.Context) {
	stats, err := h.reminders.Stats(c.Request.Context(), auth.UserIDFromContext(c))
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to load reminder stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending":        stats.Pending,
		"sent":           stats.Sent,
		"engine_running": h.engine != nil && h.engine.Running(),
	})
}

// GetReminder returns one reminder with its full attempt history
func (h *Handler) GetReminder(c *gin.Context) {
	id, ok := h.ownedReminder(c)
	if !ok {
		return
	}
	reminder, err := h.reminders.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to load reminder", err)
		return
	}
	c.JSON(http.StatusOK, reminder)
}

// ResendReminder clears the sent flag and runs a delivery cycle immediately
func (h *Handler) ResendReminder(c *gin.Context) {
	id, ok := h.ownedReminder(c)
	if !ok {
		return
	}

	result, err := h.delivery.Resend(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrReminderBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Reminder is already being delivered"})
		return
	case errors.Is(err, repository.ErrReminderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Reminder not found"})
		return
	case err != nil:
		handleError(c, http.StatusInternalServerError, "Failed to resend reminder", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteReminder removes one of the caller's reminders and its history
func (h *Handler) DeleteReminder(c *gin.Context) {
	id, ok := h.ownedReminder(c)
	if !ok {
		return
	}
	if err := h.reminders.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrReminderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Reminder not found"})
			return
		}
		handleError(c, http.StatusInternalServerError, "Failed to delete reminder", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder deleted"})
}

// ownedReminder parses :reminder_id and checks the caller owns it.
// Reminders of other users are reported as not found.
func (h *Handler) ownedReminder(c *gin.Context) (uint, bool) {
	id, err := utils.ParseIDParam(c, "reminder_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}

	owner, err := h.reminders.OwnerOf(c.Request.Context(), id)
	if errors.Is(err, repository.ErrReminderNotFound) || (err == nil && owner != auth.UserIDFromContext(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reminder not found"})
		return 0, false
	}
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to load reminder", err)
		return 0, false
	}
	return id, true
}
