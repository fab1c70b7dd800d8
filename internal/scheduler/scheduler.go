package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/domain"
	"github.com/medieye/med-reminder/internal/engine"
)

// Callback is invoked with the slot label each time a trigger fires.
type Callback func(ctx context.Context, label string)

type state int

const (
	stateInitial state = iota
	stateRunning
	stateStopped
)

var ErrAlreadyStarted = errors.New("scheduler already started")

type trigger struct {
	slot     domain.Slot
	spec     string
	schedule cron.Schedule
}

// Entry describes one trigger for display.
type Entry struct {
	Slot    string    `json:"slot"`
	Time    string    `json:"time"`
	Spec    string    `json:"cron"`
	NextRun time.Time `json:"next_run"`
}

// Scheduler fires the callback once per slot per day at the slot's time of day.
// There is no catch-up: a time that passes while the process is down is skipped.
type Scheduler struct {
	triggers []trigger
	callback Callback
	clock    clockwork.Clock
	location *time.Location
	guard    engine.FireGuard
	logger   *zap.Logger

	mu     sync.Mutex
	state  state
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithLocation(loc *time.Location) Option { return func(s *Scheduler) { s.location = loc } }

func WithFireGuard(g engine.FireGuard) Option { return func(s *Scheduler) { s.guard = g } }

// New registers one trigger per slot. Nothing runs until Start.
func New(table []domain.Slot, cb Callback, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if len(table) == 0 {
		return nil, errors.New("schedule table is empty")
	}
	if cb == nil {
		return nil, errors.New("scheduler callback is nil")
	}

	s := &Scheduler{
		callback: cb,
		clock:    clockwork.NewRealClock(),
		location: time.Local,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, slot := range table {
		spec := fmt.Sprintf("%d %d * * *", slot.Minute, slot.Hour)
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("slot %s: parsing %q: %w", slot.Label, spec, err)
		}
		s.triggers = append(s.triggers, trigger{slot: slot, spec: spec, schedule: sched})
	}

	return s, nil
}

// Start launches one goroutine per trigger. It fails if called twice.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateInitial {
		return ErrAlreadyStarted
	}
	s.state = stateRunning

	ctx, s.cancel = context.WithCancel(ctx)
	for _, t := range s.triggers {
		s.wg.Add(1)
		go s.run(ctx, t)
	}

	s.logger.Info("scheduler started", zap.Int("triggers", len(s.triggers)), zap.String("timezone", s.location.String()))
	return nil
}

// Stop deregisters all triggers and waits for running callbacks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != stateRunning {
		s.state = stateStopped
		s.mu.Unlock()
		return
	}
	s.state = stateStopped
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Entries lists the triggers with their next fire time.
func (s *Scheduler) Entries() []Entry {
	now := s.clock.Now().In(s.location)
	out := make([]Entry, 0, len(s.triggers))
	for _, t := range s.triggers {
		out = append(out, Entry{
			Slot:    t.slot.Label,
			Time:    t.slot.Clock(),
			Spec:    t.spec,
			NextRun: t.schedule.Next(now),
		})
	}
	return out
}

// Has reports whether label is a configured slot.
func (s *Scheduler) Has(label string) bool {
	for _, t := range s.triggers {
		if t.slot.Label == label {
			return true
		}
	}
	return false
}

func (s *Scheduler) run(ctx context.Context, t trigger) {
	defer s.wg.Done()

	for {
		now := s.clock.Now().In(s.location)
		next := t.schedule.Next(now)
		timer := s.clock.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		s.fire(ctx, t, next)
	}
}

func (s *Scheduler) fire(ctx context.Context, t trigger, at time.Time) {
	log := s.logger.With(zap.String("slot", t.slot.Label), zap.Time("scheduled_at", at))

	if s.guard != nil {
		ok, err := s.guard.Claim(ctx, t.slot.Label, at)
		if err != nil {
			log.Warn("fire guard unavailable, firing anyway", zap.Error(err))
		} else if !ok {
			log.Info("slot already fired today, skipping")
			return
		}
	}

	log.Info("slot triggered")
	s.callback(ctx, t.slot.Label)
}
