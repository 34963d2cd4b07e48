package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"notetracker/internal/models"
	"notetracker/internal/repository"

	"github.com/google/uuid"
)

// Candidate is an unsent reminder with the task fields needed to deliver it
type Candidate = repository.Candidate

// ErrReminderBusy is returned when the reminder is already being processed
var ErrReminderBusy = errors.New("reminder is already being processed")

// ReminderStore is the persistence the orchestrator and worker depend on
type ReminderStore interface {
	ListUnsentCandidates(ctx context.Context, asOf time.Time) ([]Candidate, error)
	GetCandidate(ctx context.Context, id uint) (*Candidate, error)
	IsSent(ctx context.Context, id uint) (bool, error)
	RecordAttempt(ctx context.Context, id uint, cycleID, channel string, outcome models.Outcome, at time.Time) (bool, error)
	MarkForResend(ctx context.Context, id uint) error
}

// ChannelConfigStore resolves which channels a user has configured
type ChannelConfigStore interface {
	GetConfiguredChannels(ctx context.Context, userID uint) (models.ChannelSet, error)
}

// CycleState summarises a reminder's result after one cycle
type CycleState string

const (
	CycleSent        CycleState = "sent"
	CyclePartial     CycleState = "partial"
	CycleFailed      CycleState = "failed"
	CycleSkipped     CycleState = "skipped"
	CycleAlreadySent CycleState = "already_sent"
)

// ChannelResult is one channel's outcome within a cycle
type ChannelResult struct {
	Channel     string         `json:"channel_name"`
	Outcome     models.Outcome `json:"outcome"`
	AttemptedAt time.Time      `json:"attempted_at"`
}

// CycleResult is the result of processing one reminder once
type CycleResult struct {
	ReminderID uint            `json:"reminder_id"`
	CycleID    string          `json:"cycle_id,omitempty"`
	Results    []ChannelResult `json:"results"`
	Sent       bool            `json:"sent"`
	State      CycleState      `json:"state"`
}

// DeliveryService fans a due reminder out to the user's channels and
// records every outcome. At least one delivered channel marks the
// reminder sent; otherwise it stays pending for the next tick.
type DeliveryService struct {
	store    ReminderStore
	accounts ChannelConfigStore
	channels []Channel
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[uint]struct{}
}

func NewDeliveryService(store ReminderStore, accounts ChannelConfigStore, timeout time.Duration, channels ...Channel) *DeliveryService {
	return &DeliveryService{
		store:    store,
		accounts: accounts,
		channels: channels,
		timeout:  timeout,
		now:      time.Now,
		inFlight: make(map[uint]struct{}),
	}
}

// WithClock replaces the time source, used by tests
func (s *DeliveryService) WithClock(now func() time.Time) *DeliveryService {
	s.now = now
	return s
}

func (s *DeliveryService) acquire(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *DeliveryService) release(id uint) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// Process runs one delivery cycle for a reminder. An already-sent
// reminder is left alone and gets no new history entries.
func (s *DeliveryService) Process(ctx context.Context, c Candidate) (*CycleResult, error) {
	if !s.acquire(c.Reminder.ID) {
		return nil, ErrReminderBusy
	}
	defer s.release(c.Reminder.ID)
	return s.process(ctx, c)
}

func (s *DeliveryService) process(ctx context.Context, c Candidate) (*CycleResult, error) {
	id := c.Reminder.ID
	sent, err := s.store.IsSent(ctx, id)
	if err != nil {
		return nil, err
	}
	if sent {
		return &CycleResult{ReminderID: id, Sent: true, State: CycleAlreadySent}, nil
	}

	set, err := s.accounts.GetConfiguredChannels(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set = models.ChannelSet{}
	}
	if !set.Has(models.ChannelInApp) {
		set[models.ChannelInApp] = models.Recipient{UserID: c.UserID}
	}

	cycleID := uuid.NewString()
	msg := RenderReminder(c, cycleID)
	result := &CycleResult{ReminderID: id, CycleID: cycleID}

	registered := make(map[string]bool, len(s.channels))
	for _, ch := range s.channels {
		recipient, ok := set[ch.Name()]
		if !ok {
			continue
		}
		registered[ch.Name()] = true
		outcome := deliverBounded(ctx, ch, s.timeout, recipient, msg)
		s.record(ctx, result, ch.Name(), outcome)
	}

	// Configured on the account but not deployed here
	for _, name := range []string{models.ChannelInApp, models.ChannelEmail, models.ChannelTelegram} {
		if set.Has(name) && !registered[name] {
			s.record(ctx, result, name, models.Skipped("no adapter"))
		}
	}

	result.State = cycleState(result.Results)
	return result, nil
}

// record appends one outcome to the store and the cycle result. A failed
// store write is logged and does not stop the remaining channels.
func (s *DeliveryService) record(ctx context.Context, result *CycleResult, channel string, outcome models.Outcome) {
	at := s.now().UTC()
	result.Results = append(result.Results, ChannelResult{Channel: channel, Outcome: outcome, AttemptedAt: at})

	markedSent, err := s.store.RecordAttempt(ctx, result.ReminderID, result.CycleID, channel, outcome, at)
	if err != nil {
		log.Printf("Error: Failed to record %s outcome for reminder %d: %v", channel, result.ReminderID, err)
		return
	}
	if markedSent || outcome.Status == models.OutcomeDelivered {
		result.Sent = true
	}

	switch outcome.Status {
	case models.OutcomeFailed:
		log.Printf("Warning: Reminder %d %s delivery failed: %s", result.ReminderID, channel, outcome.Reason)
	case models.OutcomeSkipped:
		log.Printf("Reminder %d %s skipped: %s", result.ReminderID, channel, outcome.Reason)
	}
}

func cycleState(results []ChannelResult) CycleState {
	var delivered, failed int
	for _, r := range results {
		switch r.Outcome.Status {
		case models.OutcomeDelivered:
			delivered++
		case models.OutcomeFailed:
			failed++
		}
	}
	switch {
	case delivered > 0 && failed == 0:
		return CycleSent
	case delivered > 0:
		return CyclePartial
	case failed > 0:
		return CycleFailed
	default:
		return CycleSkipped
	}
}

// Resend clears the sent flag and immediately runs the regular delivery
// cycle, appending to the existing history. Once started the cycle runs to
// completion even if the caller goes away; channel timeouts still bound it.
func (s *DeliveryService) Resend(ctx context.Context, id uint) (*CycleResult, error) {
	if !s.acquire(id) {
		return nil, ErrReminderBusy
	}
	defer s.release(id)
	ctx = context.WithoutCancel(ctx)

	if err := s.store.MarkForResend(ctx, id); err != nil {
		return nil, err
	}
	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder %d for resend: %w", id, err)
	}
	result, err := s.process(ctx, *c)
	if err != nil {
		return nil, err
	}
	log.Printf("Resent reminder %d: state=%s", id, result.State)
	return result, nil
}
