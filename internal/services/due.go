package services

import (
	"errors"
	"time"

	"notetracker/internal/models"
)

var (
	// ErrNoDueDate means the rule depends on a task due date the task does not have.
	// Such reminders are inert: never due, never an error for the cycle.
	ErrNoDueDate          = errors.New("task has no due date")
	ErrInvalidTriggerRule = models.ErrInvalidTriggerRule
)

// ValidateRule checks a rule before it is stored or evaluated
func ValidateRule(rule models.TriggerRule) error {
	return rule.Validate()
}

// TriggerAt returns the instant from which the reminder is due.
// Date arithmetic is time-zone naive: days are calendar days in the
// location the task due date was stored in.
func TriggerAt(taskDue *time.Time, rule models.TriggerRule) (time.Time, error) {
	if err := ValidateRule(rule); err != nil {
		return time.Time{}, err
	}

	if rule.Kind == models.TriggerAtTime {
		return *rule.RemindAt, nil
	}
	if taskDue == nil {
		return time.Time{}, ErrNoDueDate
	}

	if rule.Kind == models.TriggerOnDueDate {
		return *taskDue, nil
	}

	// Day granularity: the whole trigger day counts, whatever the due time
	y, m, d := taskDue.Date()
	return time.Date(y, m, d-rule.DaysBefore, 0, 0, 0, 0, taskDue.Location()), nil
}

// IsDue reports whether a reminder with rule is due at now.
// Once due it stays due for a fixed task due date.
func IsDue(now time.Time, taskDue *time.Time, rule models.TriggerRule) (bool, error) {
	at, err := TriggerAt(taskDue, rule)
	if err != nil {
		return false, err
	}
	return !now.Before(at), nil
}
