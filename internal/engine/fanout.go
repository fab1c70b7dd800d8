package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/domain"
	"github.com/medieye/med-reminder/internal/registry"
	"github.com/medieye/med-reminder/internal/websocket"
)

// DeliveryJob is one subscriber's share of a slot run. Every job produces
// exactly one attempt per configured channel.
type DeliveryJob struct {
	RunID        string
	Slot         string
	Subscription domain.Subscription
	Message      domain.Message
}

// Dispatcher executes a batch of jobs and returns once every attempt has finished.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobs []DeliveryJob) Summary
}

// RunJournal persists slot runs. A nil journal disables recording.
type RunJournal interface {
	RecordSlotRun(ctx context.Context, run domain.SlotRun) error
	FinishSlotRun(ctx context.Context, run domain.SlotRun) error
}

// Broadcaster pushes live events to dashboard clients.
type Broadcaster interface {
	Broadcast(event websocket.DeliveryEvent)
}

type ChannelCount struct {
	Attempts  int `json:"attempts"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type Summary struct {
	RunID         string       `json:"run_id"`
	Slot          string       `json:"slot"`
	Subscriptions int          `json:"subscriptions"`
	Push          ChannelCount `json:"push"`
	Email         ChannelCount `json:"email"`
}

// Record counts one outcome.
func (s *Summary) Record(o domain.Outcome) {
	c := &s.Email
	if o.Channel == domain.ChannelPush {
		c = &s.Push
	}
	c.Attempts++
	if o.Delivered() {
		c.Delivered++
	} else {
		c.Failed++
	}
}

// Merge adds other's counts into s.
func (s *Summary) Merge(other Summary) {
	s.Push.Attempts += other.Push.Attempts
	s.Push.Delivered += other.Push.Delivered
	s.Push.Failed += other.Push.Failed
	s.Email.Attempts += other.Email.Attempts
	s.Email.Delivered += other.Email.Delivered
	s.Email.Failed += other.Email.Failed
}

func (s Summary) Delivered() int { return s.Push.Delivered + s.Email.Delivered }
func (s Summary) Failed() int { return s.Push.Failed + s.Email.Failed }

// FanOutEngine turns a slot firing into one delivery job per registered subscription.
type FanOutEngine struct {
	registry    registry.Registry
	dispatcher  Dispatcher
	journal     RunJournal
	broadcaster Broadcaster
	clock       clockwork.Clock
	logger      *zap.Logger
}

type Option func(*FanOutEngine)

func WithJournal(j RunJournal) Option { return func(f *FanOutEngine) { f.journal = j } }
func WithBroadcaster(b Broadcaster) Option { return func(f *FanOutEngine) { f.broadcaster = b } }
func WithClock(c clockwork.Clock) Option { return func(f *FanOutEngine) { f.clock = c } }

func NewFanOutEngine(reg registry.Registry, d Dispatcher, logger *zap.Logger, opts ...Option) *FanOutEngine {
	f := &FanOutEngine{
		registry:   reg,
		dispatcher: d,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NotifySlot is the scheduler callback.
func (f *FanOutEngine) NotifySlot(ctx context.Context, label string) Summary {
	return f.Run(ctx, label, domain.TriggerSchedule)
}

// Run snapshots the registry and delivers the reminder for label to every
// subscription on every channel. Failures are counted, never returned.
func (f *FanOutEngine) Run(ctx context.Context, label, trigger string) Summary {
	subs := f.registry.All(ctx)
	msg := domain.ReminderMessage(label)

	run := domain.SlotRun{
		ID:            uuid.NewString(),
		Slot:          label,
		Trigger:       trigger,
		Subscriptions: len(subs),
		StartedAt:     f.clock.Now().UTC(),
	}
	log := f.logger.With(zap.String("run_id", run.ID), zap.String("slot", label))

	if f.journal != nil {
		if err := f.journal.RecordSlotRun(ctx, run); err != nil {
			log.Error("failed to record slot run", zap.Error(err))
		}
	}
	f.broadcast(websocket.DeliveryEvent{Type: websocket.EventSlotStarted, RunID: run.ID, Slot: label})

	log.Info("notifying slot", zap.String("trigger", trigger), zap.Int("subscriptions", len(subs)))

	jobs := make([]DeliveryJob, 0, len(subs))
	for _, sub := range subs {
		jobs = append(jobs, DeliveryJob{RunID: run.ID, Slot: label, Subscription: sub, Message: msg})
	}

	summary := Summary{RunID: run.ID, Slot: label, Subscriptions: len(subs)}
	if len(jobs) > 0 {
		summary.Merge(f.dispatcher.Dispatch(ctx, jobs))
	}

	finished := f.clock.Now().UTC()
	run.FinishedAt = &finished
	run.Delivered = summary.Delivered()
	run.Failed = summary.Failed()
	if f.journal != nil {
		if err := f.journal.FinishSlotRun(ctx, run); err != nil {
			log.Error("failed to finish slot run", zap.Error(err))
		}
	}
	f.broadcast(websocket.DeliveryEvent{Type: websocket.EventSlotFinished, RunID: run.ID, Slot: label})

	log.Info("slot notified",
		zap.Int("push_attempts", summary.Push.Attempts),
		zap.Int("push_failed", summary.Push.Failed),
		zap.Int("email_attempts", summary.Email.Attempts),
		zap.Int("email_failed", summary.Email.Failed),
		zap.Duration("elapsed", finished.Sub(run.StartedAt)),
	)
	return summary
}

func (f *FanOutEngine) broadcast(ev websocket.DeliveryEvent) {
	if f.broadcaster == nil {
		return
	}
	ev.Timestamp = f.clock.Now().UTC().Format(time.RFC3339)
	f.broadcaster.Broadcast(ev)
}
