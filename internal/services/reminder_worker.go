package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// TickSummary counts what one scheduler pass did
type TickSummary struct {
	Candidates int `json:"candidates"`
	Due        int `json:"due"`
	Processed  int `json:"processed"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// ReminderWorker periodically picks up due reminders and hands them to the
// delivery service, one reminder at a time.
type ReminderWorker struct {
	store    ReminderStore
	delivery *DeliveryService
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewReminderWorker(store ReminderStore, delivery *DeliveryService, interval time.Duration) *ReminderWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderWorker{
		store:    store,
		delivery: delivery,
		interval: interval,
		now:      time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (w *ReminderWorker) WithClock(now func() time.Time) *ReminderWorker {
	w.now = now
	return w
}

// Start launches the loop. It returns false if the worker is already running.
func (w *ReminderWorker) Start(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	go w.run(ctx, w.stop, w.done)
	log.Printf("Reminder worker started, checking every %s", w.interval)
	return true
}

// Stop ends the loop and waits for an in-flight tick to finish
func (w *ReminderWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stop, done := w.stop, w.done
	w.running = false
	w.mu.Unlock()

	close(stop)
	<-done
	log.Println("Reminder worker stopped")
}

// Running reports whether the loop is active
func (w *ReminderWorker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ReminderWorker) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// A tick that has started runs to completion even if ctx is cancelled
	tickCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			w.mu.Lock()
			if w.stop == stop {
				w.running = false
			}
			w.mu.Unlock()
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			if _, err := w.Tick(tickCtx); err != nil {
				log.Printf("Error: Reminder tick failed: %v", err)
			}
		}
	}
}

// Tick evaluates every unsent reminder once and processes the due ones
func (w *ReminderWorker) Tick(ctx context.Context) (TickSummary, error) {
	var summary TickSummary
	now := w.now()

	candidates, err := w.store.ListUnsentCandidates(ctx, now)
	if err != nil {
		return summary, err
	}
	summary.Candidates = len(candidates)

	for _, c := range candidates {
		due, err := IsDue(now, c.TaskDue, c.Reminder.Rule())
		if err != nil {
			if !errors.Is(err, ErrNoDueDate) {
				log.Printf("Warning: Skipping reminder %d: %v", c.Reminder.ID, err)
			}
			continue
		}
		if !due {
			continue
		}
		summary.Due++

		result, err := w.delivery.Process(ctx, c)
		if err != nil {
			if !errors.Is(err, ErrReminderBusy) {
				log.Printf("Error: Failed to process reminder %d: %v", c.Reminder.ID, err)
			}
			continue
		}
		summary.Processed++
		switch {
		case result.State == CycleAlreadySent:
		case result.Sent:
			summary.Sent++
		default:
			summary.Failed++
		}
	}

	if summary.Due > 0 {
		log.Printf("Reminder tick: %d candidates, %d due, %d sent, %d not sent",
			summary.Candidates, summary.Due, summary.Sent, summary.Failed)
	}
	return summary, nil
}
