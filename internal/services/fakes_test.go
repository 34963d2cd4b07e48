package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"notetracker/internal/models"
	"notetracker/internal/repository"
	"notetracker/internal/testutil"

	"gorm.io/gorm"
)

// fakeChannel returns scripted outcomes; the last one repeats
type fakeChannel struct {
	name     string
	outcomes []models.Outcome
	deliver  func(ctx context.Context) models.Outcome

	mu         sync.Mutex
	calls      int
	recipients []models.Recipient
}

func newFakeChannel(name string, outcomes ...models.Outcome) *fakeChannel {
	if len(outcomes) == 0 {
		outcomes = []models.Outcome{models.Delivered()}
	}
	return &fakeChannel{name: name, outcomes: outcomes}
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Deliver(ctx context.Context, recipient models.Recipient, msg RenderedMessage) models.Outcome {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.recipients = append(f.recipients, recipient)
	f.mu.Unlock()

	if f.deliver != nil {
		return f.deliver(ctx)
	}
	if i >= len(f.outcomes) {
		i = len(f.outcomes) - 1
	}
	return f.outcomes[i]
}

func (f *fakeChannel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	db        *gorm.DB
	reminders *repository.ReminderRepository
	accounts  *repository.AccountStore
	now       time.Time
	users     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	return &fixture{
		db:        db,
		reminders: repository.NewReminderRepository(db),
		accounts:  repository.NewAccountStore(db),
		now:       time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) delivery(timeout time.Duration, channels ...Channel) *DeliveryService {
	return NewDeliveryService(f.reminders, f.accounts, timeout, channels...).WithClock(f.clock)
}

// dueReminder seeds an account with the given channels and a reminder due at f.now
func (f *fixture) dueReminder(t *testing.T, email, telegramID string) Candidate {
	t.Helper()
	f.users++
	account := testutil.CreateAccount(t, f.db, fmt.Sprintf("user%d", f.users), email, telegramID)
	task := testutil.CreateTask(t, f.db, account.ID, "Pay rent", testutil.Date(2026, 3, 10), "")
	reminder := testutil.CreateReminder(t, f.db, task.ID, models.OnDueDate())

	c, err := f.reminders.GetCandidate(context.Background(), reminder.ID)
	if err != nil {
		t.Fatalf("load candidate: %v", err)
	}
	return *c
}

func outcomes(results []ChannelResult) []models.OutcomeStatus {
	out := make([]models.OutcomeStatus, 0, len(results))
	for _, r := range results {
		out = append(out, r.Outcome.Status)
	}
	return out
}
