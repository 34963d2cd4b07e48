package services

import (
	"context"
	"testing"
	"time"

	"notetracker/internal/models"
	"notetracker/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) worker(interval time.Duration, channels ...Channel) *ReminderWorker {
	return NewReminderWorker(f.reminders, f.delivery(time.Second, channels...), interval).WithClock(f.clock)
}

func TestTickDeliversOnlyDueReminders(t *testing.T) {
	f := newFixture(t)
	account := testutil.CreateAccount(t, f.db, "dana", "", "")

	dueTask := testutil.CreateTask(t, f.db, account.ID, "Due today", testutil.Date(2026, 3, 10), "08:00")
	due := testutil.CreateReminder(t, f.db, dueTask.ID, models.OnDueDate())

	laterTask := testutil.CreateTask(t, f.db, account.ID, "Due next month", testutil.Date(2026, 4, 20), "")
	testutil.CreateReminder(t, f.db, laterTask.ID, models.DaysBefore(3))

	undatedTask := testutil.CreateTask(t, f.db, account.ID, "Someday", nil, "")
	testutil.CreateReminder(t, f.db, undatedTask.ID, models.OnDueDate())

	sent := testutil.CreateReminder(t, f.db, dueTask.ID, models.DaysBefore(1))
	require.NoError(t, f.db.Model(&sent).Update("sent", true).Error)

	archivedTask := testutil.CreateTask(t, f.db, account.ID, "Archived", testutil.Date(2026, 3, 1), "")
	require.NoError(t, f.db.Model(&archivedTask).Update("archived", true).Error)
	testutil.CreateReminder(t, f.db, archivedTask.ID, models.OnDueDate())

	future := models.Reminder{TaskID: dueTask.ID, TriggerKind: models.TriggerOnDueDate, CreatedAt: f.now.Add(time.Hour)}
	require.NoError(t, f.db.Omit("Task", "Attempts").Create(&future).Error)

	inApp := newFakeChannel(models.ChannelInApp)
	summary, err := f.worker(time.Minute, inApp).Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TickSummary{Candidates: 3, Due: 1, Processed: 1, Sent: 1}, summary)
	assert.Equal(t, 1, inApp.Calls())

	stored, err := f.reminders.Get(context.Background(), due.ID)
	require.NoError(t, err)
	assert.True(t, stored.Sent)
}

func TestTickRetriesFailedReminderOnNextTick(t *testing.T) {
	f := newFixture(t)
	c := f.dueReminder(t, "", "")

	inApp := newFakeChannel(models.ChannelInApp, models.Failed("db busy"), models.Delivered())
	w := f.worker(time.Minute, inApp)

	summary, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickSummary{Candidates: 1, Due: 1, Processed: 1, Failed: 1}, summary)

	summary, err = w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickSummary{Candidates: 1, Due: 1, Processed: 1, Sent: 1}, summary)

	summary, err = w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickSummary{}, summary)

	stored, err := f.reminders.Get(context.Background(), c.Reminder.ID)
	require.NoError(t, err)
	require.Len(t, stored.Attempts, 2)
	assert.Equal(t, models.OutcomeFailed, stored.Attempts[0].Outcome)
	assert.Equal(t, models.OutcomeDelivered, stored.Attempts[1].Outcome)
}

func TestTickSkipsUnreadableRule(t *testing.T) {
	f := newFixture(t)
	good := f.dueReminder(t, "", "")

	bad := models.Reminder{TaskID: good.Reminder.TaskID, TriggerKind: "weekly", CreatedAt: testutil.Seeded}
	require.NoError(t, f.db.Omit("Task", "Attempts").Create(&bad).Error)

	summary, err := f.worker(time.Minute, newFakeChannel(models.ChannelInApp)).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 1, summary.Sent)

	sent, err := f.reminders.IsSent(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestWorkerStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	w := f.worker(time.Hour, newFakeChannel(models.ChannelInApp))

	assert.False(t, w.Running())
	assert.True(t, w.Start(context.Background()))
	assert.False(t, w.Start(context.Background()))
	assert.True(t, w.Running())

	w.Stop()
	assert.False(t, w.Running())
	w.Stop()

	assert.True(t, w.Start(context.Background()))
	w.Stop()
}

func TestWorkerStopWaitsForInFlightCycle(t *testing.T) {
	f := newFixture(t)
	c := f.dueReminder(t, "", "")

	entered := make(chan struct{})
	gate := make(chan struct{})
	inApp := newFakeChannel(models.ChannelInApp)
	inApp.deliver = func(ctx context.Context) models.Outcome {
		close(entered)
		<-gate
		return models.Delivered()
	}

	w := f.worker(10*time.Millisecond, inApp)
	require.True(t, w.Start(context.Background()))
	<-entered

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}

	stored, err := f.reminders.Get(context.Background(), c.Reminder.ID)
	require.NoError(t, err)
	assert.True(t, stored.Sent)
	require.Len(t, stored.Attempts, 1)
	assert.Equal(t, models.OutcomeDelivered, stored.Attempts[0].Outcome)
	assert.Equal(t, 1, inApp.Calls())
}

func TestWorkerStopsWhenContextIsCancelled(t *testing.T) {
	f := newFixture(t)
	w := f.worker(time.Hour, newFakeChannel(models.ChannelInApp))

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, w.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !w.Running() }, 2*time.Second, 10*time.Millisecond)
	w.Stop()
}
