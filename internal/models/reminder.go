package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrTriggerRuleImmutable is returned when an update touches a reminder's trigger columns.
	// Rescheduling is done by deleting and recreating the reminder.
	ErrTriggerRuleImmutable = errors.New("reminder trigger rule cannot be changed")
	// ErrAttemptImmutable is returned when an update targets a recorded attempt
	ErrAttemptImmutable = errors.New("reminder attempts are append-only")
	// ErrInvalidTriggerRule means the rule cannot be evaluated
	ErrInvalidTriggerRule = errors.New("invalid trigger rule")
)

// TriggerKind identifies one of the three reminder trigger rules
type TriggerKind string

const (
	TriggerOnDueDate  TriggerKind = "on_due_date"
	TriggerDaysBefore TriggerKind = "days_before"
	TriggerAtTime     TriggerKind = "at_time"
)

// TriggerRule is the condition deciding when a reminder becomes due
type TriggerRule struct {
	Kind       TriggerKind `json:"kind"`
	DaysBefore int         `json:"days_before,omitempty"`
	RemindAt   *time.Time  `json:"remind_at,omitempty"`
}

// OnDueDate builds a rule firing once the task due date/time is reached
func OnDueDate() TriggerRule {
	return TriggerRule{Kind: TriggerOnDueDate}
}

// DaysBefore builds a rule firing n days before the task due date
func DaysBefore(n int) TriggerRule {
	return TriggerRule{Kind: TriggerDaysBefore, DaysBefore: n}
}

// AtAbsoluteTime builds a rule firing at t regardless of the task due date
func AtAbsoluteTime(t time.Time) TriggerRule {
	return TriggerRule{Kind: TriggerAtTime, RemindAt: &t}
}

// Validate checks that the rule can be evaluated
func (r TriggerRule) Validate() error {
	switch r.Kind {
	case TriggerOnDueDate:
		return nil
	case TriggerDaysBefore:
		if r.DaysBefore < 0 {
			return fmt.Errorf("%w: days before must not be negative, got %d", ErrInvalidTriggerRule, r.DaysBefore)
		}
		return nil
	case TriggerAtTime:
		if r.RemindAt == nil || r.RemindAt.IsZero() {
			return fmt.Errorf("%w: absolute reminder needs remind_at", ErrInvalidTriggerRule)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTriggerRule, r.Kind)
	}
}

// DependsOnDueDate reports whether the rule needs the task due date to fire
func (r TriggerRule) DependsOnDueDate() bool {
	return r.Kind == TriggerOnDueDate || r.Kind == TriggerDaysBefore
}

// Reminder is a scheduled notification intent attached to a task
type Reminder struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	TaskID        uint              `gorm:"not null;index" json:"task_id"`
	TriggerKind   TriggerKind       `gorm:"<-:create;size:20;not null" json:"trigger_kind"`
	DaysBefore    int               `gorm:"<-:create;not null;default:0" json:"days_before"`
	RemindAt      *time.Time        `gorm:"<-:create" json:"remind_at,omitempty"`
	Sent          bool              `gorm:"not null;default:false;index" json:"sent"`
	SentAt        *time.Time        `json:"sent_at,omitempty"`
	LastAttemptAt *time.Time        `json:"last_attempt_at,omitempty"`
	CreatedAt     time.Time         `gorm:"not null" json:"created_at"`
	Attempts      []ReminderAttempt `gorm:"foreignKey:ReminderID;constraint:OnDelete:CASCADE" json:"channel_results"`

	Task Task `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
}

// Rule returns the reminder's trigger rule
func (r *Reminder) Rule() TriggerRule {
	return TriggerRule{Kind: r.TriggerKind, DaysBefore: r.DaysBefore, RemindAt: r.RemindAt}
}

// BeforeCreate hook is called before creating a new reminder
func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate keeps the trigger rule fixed after creation. The columns are
// also create-only, so a Save of the whole row leaves them untouched.
func (r *Reminder) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("TriggerKind", "DaysBefore", "RemindAt") {
		return ErrTriggerRuleImmutable
	}
	return nil
}

// TableName specifies the table name for the Reminder model
func (Reminder) TableName() string {
	return "reminder"
}

// OutcomeStatus is the result class of one channel delivery attempt
type OutcomeStatus string

const (
	OutcomeDelivered OutcomeStatus = "delivered"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the per-channel result of one delivery attempt
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

func Delivered() Outcome {
	return Outcome{Status: OutcomeDelivered}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: OutcomeSkipped, Reason: reason}
}

func Failed(reason string) Outcome {
	return Outcome{Status: OutcomeFailed, Reason: reason}
}

// ReminderAttempt is one entry of a reminder's channel_results history
type ReminderAttempt struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	ReminderID  uint          `gorm:"not null;index" json:"reminder_id"`
	CycleID     string        `gorm:"size:36;not null;index" json:"cycle_id"`
	Channel     string        `gorm:"size:20;not null" json:"channel_name"`
	Outcome     OutcomeStatus `gorm:"size:10;not null" json:"outcome"`
	Reason      string        `gorm:"type:text" json:"reason,omitempty"`
	AttemptedAt time.Time     `gorm:"not null" json:"attempted_at"`
}

// BeforeUpdate rejects every update, attempts are written once
func (a *ReminderAttempt) BeforeUpdate(tx *gorm.DB) error {
	return ErrAttemptImmutable
}

// TableName specifies the table name for the ReminderAttempt model
func (ReminderAttempt) TableName() string {
	return "reminder_attempt"
}

// CreateReminderRequest represents the data needed to attach a reminder to a task
type CreateReminderRequest struct {
	TriggerKind TriggerKind `json:"trigger_kind" binding:"required,oneof=on_due_date days_before at_time"`
	DaysBefore  int         `json:"days_before" binding:"min=0"`
	RemindAt    *time.Time  `json:"remind_at"`
}

// Rule converts the request into a trigger rule
func (r CreateReminderRequest) Rule() TriggerRule {
	return TriggerRule{Kind: r.TriggerKind, DaysBefore: r.DaysBefore, RemindAt: r.RemindAt}
}
