package models_test

import (
	"testing"
	"time"

	"notetracker/internal/models"
	"notetracker/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerRuleConstructors(t *testing.T) {
	assert.True(t, models.OnDueDate().DependsOnDueDate())
	assert.True(t, models.DaysBefore(2).DependsOnDueDate())

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rule := models.AtAbsoluteTime(at)
	assert.False(t, rule.DependsOnDueDate())
	require.NotNil(t, rule.RemindAt)
	assert.Equal(t, at, *rule.RemindAt)
}

func TestReminderTriggerRuleIsImmutable(t *testing.T) {
	db := testutil.NewDB(t)
	account := testutil.CreateAccount(t, db, "alex", "", "")
	task := testutil.CreateTask(t, db, account.ID, "File taxes", testutil.Date(2026, 4, 15), "")
	reminder := testutil.CreateReminder(t, db, task.ID, models.DaysBefore(1))

	err := db.Model(&reminder).Update("days_before", 3).Error
	assert.ErrorIs(t, err, models.ErrTriggerRuleImmutable)

	err = db.Model(&reminder).Update("trigger_kind", models.TriggerOnDueDate).Error
	assert.ErrorIs(t, err, models.ErrTriggerRuleImmutable)

	// State columns stay writable
	require.NoError(t, db.Model(&reminder).Update("sent", true).Error)

	var stored models.Reminder
	require.NoError(t, db.First(&stored, reminder.ID).Error)
	assert.Equal(t, 1, stored.DaysBefore)
	assert.Equal(t, models.TriggerDaysBefore, stored.TriggerKind)
	assert.True(t, stored.Sent)
}

func TestReminderSaveKeepsTriggerRule(t *testing.T) {
	db := testutil.NewDB(t)
	account := testutil.CreateAccount(t, db, "alex", "", "")
	task := testutil.CreateTask(t, db, account.ID, "File taxes", testutil.Date(2026, 4, 15), "")
	created := testutil.CreateReminder(t, db, task.ID, models.OnDueDate())

	var loaded models.Reminder
	require.NoError(t, db.First(&loaded, created.ID).Error)
	loaded.TriggerKind = models.TriggerDaysBefore
	loaded.DaysBefore = 7
	loaded.Sent = true
	require.NoError(t, db.Omit("Task", "Attempts").Save(&loaded).Error)

	var stored models.Reminder
	require.NoError(t, db.First(&stored, created.ID).Error)
	assert.Equal(t, models.TriggerOnDueDate, stored.TriggerKind)
	assert.Equal(t, 0, stored.DaysBefore)
	assert.True(t, stored.Sent)
}

func TestReminderAttemptIsAppendOnly(t *testing.T) {
	db := testutil.NewDB(t)
	account := testutil.CreateAccount(t, db, "alex", "", "")
	task := testutil.CreateTask(t, db, account.ID, "File taxes", testutil.Date(2026, 4, 15), "")
	reminder := testutil.CreateReminder(t, db, task.ID, models.OnDueDate())

	attempt := models.ReminderAttempt{
		ReminderID:  reminder.ID,
		CycleID:     "cycle-1",
		Channel:     models.ChannelEmail,
		Outcome:     models.OutcomeFailed,
		Reason:      "timeout",
		AttemptedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&attempt).Error)

	err := db.Model(&attempt).Update("outcome", models.OutcomeDelivered).Error
	assert.ErrorIs(t, err, models.ErrAttemptImmutable)

	var stored models.ReminderAttempt
	require.NoError(t, db.First(&stored, attempt.ID).Error)
	assert.Equal(t, models.OutcomeFailed, stored.Outcome)
}
