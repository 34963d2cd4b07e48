package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notetracker/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

// Channel is one delivery medium. Implementations share no state with each
// other and must honour ctx cancellation where the transport allows it.
type Channel interface {
	// Name returns the channel name used in history entries (e.g. "email").
	Name() string
	// Deliver attempts delivery of msg to recipient.
	Deliver(ctx context.Context, recipient models.Recipient, msg RenderedMessage) models.Outcome
}

// RenderedMessage is the channel-independent reminder content
type RenderedMessage struct {
	ReminderID uint
	TaskID     uint
	CycleID    string
	Subject    string
	Text       string
	HTML       string
	// SafeTitle is the task title with markup stripped and entities escaped
	SafeTitle string
	DueLabel  string
}

// Delivery failure classes. Both failure classes are retried on the next
// tick because the reminder stays unsent; they differ only in what is logged.
var (
	ErrConfigurationSkip        = errors.New("channel not configured")
	ErrTransientDeliveryFailure = errors.New("transient delivery failure")
	ErrPermanentDeliveryFailure = errors.New("permanent delivery failure")
)

// OutcomeFromError maps the failure taxonomy onto a channel outcome
func OutcomeFromError(err error) models.Outcome {
	switch {
	case err == nil:
		return models.Delivered()
	case errors.Is(err, ErrConfigurationSkip):
		return models.Skipped(err.Error())
	default:
		return models.Failed(err.Error())
	}
}

var textPolicy = bluemonday.StrictPolicy()

const dueLabelLayout = "Mon Jan 2, 2006"

// RenderReminder builds the message for one reminder cycle
func RenderReminder(c Candidate, cycleID string) RenderedMessage {
	title := textPolicy.Sanitize(c.TaskTitle)
	due := "no due date"
	if c.TaskDue != nil {
		due = c.TaskDue.Format(dueLabelLayout)
		if c.TaskDue.Hour() != 0 || c.TaskDue.Minute() != 0 {
			due = c.TaskDue.Format(dueLabelLayout + ", 15:04")
		}
	}

	return RenderedMessage{
		ReminderID: c.Reminder.ID,
		TaskID:     c.Reminder.TaskID,
		CycleID:    cycleID,
		Subject:    "Task Reminder",
		Text:       fmt.Sprintf("Task Reminder: %s (due %s)", c.TaskTitle, due),
		HTML: fmt.Sprintf("<h2>Task Reminder</h2><p><strong>Task:</strong> %s</p><p><strong>Due:</strong> %s</p>"+
			"<p>Please log in to NoteTracker to manage this task.</p>", title, due),
		SafeTitle: title,
		DueLabel:  due,
	}
}

// deliverBounded runs one channel call with a deadline and panic isolation.
// A channel that ignores ctx is abandoned at the deadline and reported as a timeout.
func deliverBounded(ctx context.Context, ch Channel, timeout time.Duration, recipient models.Recipient, msg RenderedMessage) models.Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan models.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- models.Failed(fmt.Sprintf("panic: %v", r))
			}
		}()
		result <- ch.Deliver(ctx, recipient, msg)
	}()

	select {
	case outcome := <-result:
		if outcome.Status == models.OutcomeFailed && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Failed("timeout")
		}
		return outcome
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return models.Failed("cancelled")
		}
		return models.Failed("timeout")
	}
}
