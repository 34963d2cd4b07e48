package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notetracker/internal/models"

	"gorm.io/gorm"
)

var (
	ErrReminderNotFound = errors.New("reminder not found")
	ErrTaskNotFound     = errors.New("task not found")
)

// DefaultHistoryLimit caps the sent-reminder history view
const DefaultHistoryLimit = 100

// Candidate is an unsent reminder joined with the task fields the engine needs
type Candidate struct {
	Reminder  models.Reminder
	UserID    uint
	TaskTitle string
	TaskDue   *time.Time
}

// ReminderStats summarises a user's reminders
type ReminderStats struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
}

// ReminderRepository owns persisted reminders and their attempt history
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// candidateRow is the flat result of the reminder/task join
type candidateRow struct {
	ID            uint
	TaskID        uint
	TriggerKind   models.TriggerKind
	DaysBefore    int
	RemindAt      *time.Time
	Sent          bool
	SentAt        *time.Time
	LastAttemptAt *time.Time
	CreatedAt     time.Time
	UserID        uint
	TaskTitle     string
	DueDate       *time.Time
	DueTime       string
}

func (r *ReminderRepository) candidateQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("reminder").
		Select("reminder.id, reminder.task_id, reminder.trigger_kind, reminder.days_before, reminder.remind_at, " +
			"reminder.sent, reminder.sent_at, reminder.last_attempt_at, reminder.created_at, " +
			"task.user_id AS user_id, task.title AS task_title, task.due_date AS due_date, task.due_time AS due_time").
		Joins("JOIN task ON task.id = reminder.task_id")
}

func (row candidateRow) toCandidate() (Candidate, error) {
	due, err := models.CombineDue(row.DueDate, row.DueTime)
	c := Candidate{
		Reminder: models.Reminder{
			ID:            row.ID,
			TaskID:        row.TaskID,
			TriggerKind:   row.TriggerKind,
			DaysBefore:    row.DaysBefore,
			RemindAt:      row.RemindAt,
			Sent:          row.Sent,
			SentAt:        row.SentAt,
			LastAttemptAt: row.LastAttemptAt,
			CreatedAt:     row.CreatedAt,
		},
		UserID:    row.UserID,
		TaskTitle: row.TaskTitle,
		TaskDue:   due,
	}
	return c, err
}

// ListUnsentCandidates returns every unsent reminder created at or before asOf
// on a non-archived task. Rules are not evaluated here.
func (r *ReminderRepository) ListUnsentCandidates(ctx context.Context, asOf time.Time) ([]Candidate, error) {
	var rows []candidateRow
	err := r.candidateQuery(ctx).
		Where("reminder.sent = ? AND task.archived = ? AND reminder.created_at <= ?", false, false, asOf.UTC()).
		Order("reminder.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unsent reminders: %w", err)
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		c, err := row.toCandidate()
		if err != nil {
			// A malformed due time leaves the task without a usable due instant
			c.TaskDue = nil
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// GetCandidate loads one reminder with its task fields regardless of sent state
func (r *ReminderRepository) GetCandidate(ctx context.Context, id uint) (*Candidate, error) {
	var rows []candidateRow
	if err := r.candidateQuery(ctx).Where("reminder.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load reminder %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrReminderNotFound
	}
	c, err := rows[0].toCandidate()
	if err != nil {
		c.TaskDue = nil
	}
	return &c, nil
}

// Get loads a reminder with its full attempt history
func (r *ReminderRepository) Get(ctx context.Context, id uint) (*models.Reminder, error) {
	var reminder models.Reminder
	err := r.db.WithContext(ctx).Preload("Attempts", orderAttempts).First(&reminder, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder %d: %w", id, err)
	}
	return &reminder, nil
}

// OwnerOf returns the user owning the reminder's task
func (r *ReminderRepository) OwnerOf(ctx context.Context, id uint) (uint, error) {
	c, err := r.GetCandidate(ctx, id)
	if err != nil {
		return 0, err
	}
	return c.UserID, nil
}

// IsSent reads the current sent flag from the store
func (r *ReminderRepository) IsSent(ctx context.Context, id uint) (bool, error) {
	var reminder models.Reminder
	err := r.db.WithContext(ctx).Select("id", "sent").First(&reminder, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrReminderNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to read reminder %d: %w", id, err)
	}
	return reminder.Sent, nil
}

// RecordAttempt appends one history entry and stamps last_attempt_at.
// A Delivered outcome on an unsent reminder also marks it sent; the
// returned flag reports whether this call made that transition.
func (r *ReminderRepository) RecordAttempt(ctx context.Context, id uint, cycleID, channel string, outcome models.Outcome, at time.Time) (bool, error) {
	markedSent := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Reminder{}).Where("id = ?", id).Update("last_attempt_at", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReminderNotFound
		}

		attempt := models.ReminderAttempt{
			ReminderID:  id,
			CycleID:     cycleID,
			Channel:     channel,
			Outcome:     outcome.Status,
			Reason:      outcome.Reason,
			AttemptedAt: at,
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}

		if outcome.Status != models.OutcomeDelivered {
			return nil
		}
		res = tx.Model(&models.Reminder{}).
			Where("id = ? AND sent = ?", id, false).
			Updates(map[string]interface{}{"sent": true, "sent_at": at})
		if res.Error != nil {
			return res.Error
		}
		markedSent = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to record %s attempt for reminder %d: %w", channel, id, err)
	}
	return markedSent, nil
}

// MarkForResend clears the sent flag so the reminder is picked up again.
// History is left untouched.
func (r *ReminderRepository) MarkForResend(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Reminder{}).Where("id = ?", id).Update("sent", false)
	if res.Error != nil {
		return fmt.Errorf("failed to mark reminder %d for resend: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// Create stores a new reminder for a task
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	if err := reminder.Rule().Validate(); err != nil {
		return err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", reminder.TaskID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check task %d: %w", reminder.TaskID, err)
	}
	if count == 0 {
		return ErrTaskNotFound
	}
	if err := r.db.WithContext(ctx).Omit("Task", "Attempts").Create(reminder).Error; err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

// Delete removes a reminder and its history
func (r *ReminderRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reminder_id = ?", id).Delete(&models.ReminderAttempt{}).Error; err != nil {
			return fmt.Errorf("failed to delete history of reminder %d: %w", id, err)
		}
		res := tx.Delete(&models.Reminder{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete reminder %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrReminderNotFound
		}
		return nil
	})
}

// DeleteForTask cascades a task deletion to its reminders
func (r *ReminderRepository) DeleteForTask(ctx context.Context, taskID uint) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&models.Reminder{}).Select("id").Where("task_id = ?", taskID)
		if err := tx.Where("reminder_id IN (?)", ids).Delete(&models.ReminderAttempt{}).Error; err != nil {
			return err
		}
		res := tx.Where("task_id = ?", taskID).Delete(&models.Reminder{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete reminders of task %d: %w", taskID, err)
	}
	return deleted, nil
}

// ListPending returns a user's unsent reminders, soonest task first
func (r *ReminderRepository) ListPending(ctx context.Context, userID uint) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := r.userReminders(ctx, userID).
		Where("reminder.sent = ?", false).
		Order("task.due_date ASC").
		Order("reminder.id ASC").
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	return reminders, nil
}

// ListHistory returns a user's sent reminders, most recently sent first
func (r *ReminderRepository) ListHistory(ctx context.Context, userID uint, limit int) ([]models.Reminder, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var reminders []models.Reminder
	err := r.userReminders(ctx, userID).
		Where("reminder.sent = ?", true).
		Order("reminder.sent_at DESC").
		Limit(limit).
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder history: %w", err)
	}
	return reminders, nil
}

// Stats counts a user's pending and sent reminders
func (r *ReminderRepository) Stats(ctx context.Context, userID uint) (ReminderStats, error) {
	var stats ReminderStats
	if err := r.countForUser(ctx, userID).Where("reminder.sent = ?", false).Count(&stats.Pending).Error; err != nil {
		return stats, fmt.Errorf("failed to count pending reminders: %w", err)
	}
	if err := r.countForUser(ctx, userID).Where("reminder.sent = ?", true).Count(&stats.Sent).Error; err != nil {
		return stats, fmt.Errorf("failed to count sent reminders: %w", err)
	}
	return stats, nil
}

func (r *ReminderRepository) userReminders(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Task").
		Preload("Attempts", orderAttempts).
		Joins("JOIN task ON task.id = reminder.task_id AND task.user_id = ?", userID)
}

func (r *ReminderRepository) countForUser(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Reminder{}).
		Joins("JOIN task ON task.id = reminder.task_id AND task.user_id = ?", userID)
}

func orderAttempts(db *gorm.DB) *gorm.DB {
	return db.Order("reminder_attempt.id ASC")
}
