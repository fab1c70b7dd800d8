package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/domain"
	"github.com/medieye/med-reminder/internal/engine"
	"github.com/medieye/med-reminder/internal/notify"
	"github.com/medieye/med-reminder/internal/store"
	ws "github.com/medieye/med-reminder/internal/websocket"
)

// Recorder persists delivery attempts. *store.PostgresStore implements it.
type Recorder interface {
	RecordDeliveryAttempt(ctx context.Context, rec store.DeliveryAttemptRecord) error
}

// Deliverer sends one job through every configured channel.
type Deliverer struct {
	senders     []notify.Sender
	sendTimeout time.Duration
	recorder    Recorder
	hub         engine.Broadcaster
	logger      *zap.Logger
}

// NewDeliverer builds a deliverer. recorder and hub may be nil.
func NewDeliverer(senders []notify.Sender, sendTimeout time.Duration, recorder Recorder, hub engine.Broadcaster, logger *zap.Logger) *Deliverer {
	return &Deliverer{
		senders:     senders,
		sendTimeout: sendTimeout,
		recorder:    recorder,
		hub:         hub,
		logger:      logger,
	}
}

// Deliver makes exactly one attempt per sender, in order, and returns every
// outcome. A failing or panicking sender does not affect the others.
func (d *Deliverer) Deliver(ctx context.Context, job engine.DeliveryJob) []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(d.senders))
	for _, s := range d.senders {
		start := time.Now()
		out := d.attempt(ctx, s, job)
		d.record(ctx, job, out, time.Since(start))
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// attempt waits for pacing on the job context, then sends under the per-send
// timeout.
func (d *Deliverer) attempt(ctx context.Context, s notify.Sender, job engine.DeliveryJob) (out domain.Outcome) {
	ch := s.Channel()
	defer func() {
		if r := recover(); r != nil {
			out = domain.Failed(ch, notify.Destination(ch, job.Subscription), fmt.Errorf("sender panic: %v", r))
		}
	}()

	if p, ok := s.(notify.Pacer); ok {
		if err := p.Pace(ctx); err != nil {
			return domain.Failed(ch, notify.Destination(ch, job.Subscription), fmt.Errorf("waiting for send slot: %w", err))
		}
		s = p.Unpaced()
	}

	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	return s.Send(ctx, job.Subscription, job.Message)
}

func (d *Deliverer) record(ctx context.Context, job engine.DeliveryJob, out domain.Outcome, elapsed time.Duration) {
	dest := notify.Destination(out.Channel, job.Subscription)
	fields := []zap.Field{
		zap.String("run_id", job.RunID),
		zap.String("slot", job.Slot),
		zap.String("subscription_id", job.Subscription.ID),
		zap.String("channel", string(out.Channel)),
		zap.Int64("response_time_ms", elapsed.Milliseconds()),
	}

	eventType := ws.EventDelivered
	if out.Delivered() {
		d.logger.Info("reminder delivered", fields...)
	} else {
		eventType = ws.EventDeliveryFailed
		d.logger.Warn("reminder delivery failed", append(fields, zap.Error(out.Err))...)
	}

	if d.recorder != nil {
		// The send context may already be done; the journal write must still happen.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		err := d.recorder.RecordDeliveryAttempt(rctx, store.DeliveryAttemptRecord{
			RunID:          job.RunID,
			SubscriptionID: job.Subscription.ID,
			Slot:           job.Slot,
			Channel:        out.Channel,
			Destination:    dest,
			Status:         out.Status(),
			ResponseTimeMs: int(elapsed.Milliseconds()),
			ErrorMessage:   out.Reason(),
		})
		cancel()
		if err != nil {
			d.logger.Error("failed to record delivery attempt", append(fields, zap.Error(err))...)
		}
	}

	if d.hub != nil {
		d.hub.Broadcast(ws.DeliveryEvent{
			Type:           eventType,
			RunID:          job.RunID,
			Slot:           job.Slot,
			SubscriptionID: job.Subscription.ID,
			Channel:        string(out.Channel),
			Error:          out.Reason(),
			ResponseMs:     elapsed.Milliseconds(),
		})
	}
}
