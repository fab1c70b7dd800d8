package engine

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/domain"
	"github.com/medieye/med-reminder/internal/registry"
	"github.com/medieye/med-reminder/internal/websocket"
)

// fakeDispatcher records jobs and reports one push and one email attempt per
// job, failing push for the subscriptions listed in failPush.
type fakeDispatcher struct {
	mu       sync.Mutex
	batches  [][]DeliveryJob
	failPush map[string]bool
}

func (d *fakeDispatcher) Dispatch(_ context.Context, jobs []DeliveryJob) Summary {
	d.mu.Lock()
	d.batches = append(d.batches, jobs)
	d.mu.Unlock()

	var s Summary
	for _, job := range jobs {
		if d.failPush[job.Subscription.Email] {
			s.Record(domain.Failed(domain.ChannelPush, "https://x", context.DeadlineExceeded))
		} else {
			s.Record(domain.Delivered(domain.ChannelPush))
		}
		s.Record(domain.Delivered(domain.ChannelEmail))
	}
	return s
}

type fakeJournal struct {
	started  []domain.SlotRun
	finished []domain.SlotRun
}

func (j *fakeJournal) RecordSlotRun(_ context.Context, run domain.SlotRun) error {
	j.started = append(j.started, run)
	return nil
}

func (j *fakeJournal) FinishSlotRun(_ context.Context, run domain.SlotRun) error {
	j.finished = append(j.finished, run)
	return nil
}

type fakeBroadcaster struct {
	events []websocket.DeliveryEvent
}

func (b *fakeBroadcaster) Broadcast(ev websocket.DeliveryEvent) { b.events = append(b.events, ev) }

var push = domain.PushDescriptor(`{"endpoint":"https://push.example.com/1"}`)

func TestRun_OneJobPerSubscription(t *testing.T) {
	reg := registry.NewMemoryRegistry(nil)
	ctx := context.Background()
	for _, email := range []string{"a@b.com", "c@d.com", "a@b.com"} {
		if _, err := reg.Add(ctx, push, email); err != nil {
			t.Fatal(err)
		}
	}

	d := &fakeDispatcher{failPush: map[string]bool{"c@d.com": true}}
	f := NewFanOutEngine(reg, d, zap.NewNop())

	summary := f.NotifySlot(ctx, "Morning")

	if len(d.batches) != 1 || len(d.batches[0]) != 3 {
		t.Fatalf("expected one batch of 3 jobs, got %v", d.batches)
	}
	for i, job := range d.batches[0] {
		if job.Slot != "Morning" || job.RunID != summary.RunID {
			t.Errorf("job %d has slot %q run %q", i, job.Slot, job.RunID)
		}
		if job.Message != domain.ReminderMessage("Morning") {
			t.Errorf("job %d has unexpected message %+v", i, job.Message)
		}
	}
	if summary.Subscriptions != 3 || summary.Push.Attempts != 3 || summary.Email.Attempts != 3 {
		t.Errorf("expected 3 attempts per channel, got %+v", summary)
	}
	if summary.Push.Failed != 1 || summary.Delivered() != 5 || summary.Failed() != 1 {
		t.Errorf("unexpected counts: %+v", summary)
	}
}

func TestRun_SnapshotTakenAtInvocation(t *testing.T) {
	reg := registry.NewMemoryRegistry(nil)
	ctx := context.Background()
	reg.Add(ctx, push, "a@b.com")

	d := &fakeDispatcher{}
	f := NewFanOutEngine(reg, d, zap.NewNop())
	f.NotifySlot(ctx, "Night")

	reg.Add(ctx, push, "late@b.com")
	if got := len(d.batches[0]); got != 1 {
		t.Errorf("batch should hold the snapshot taken at invocation, got %d jobs", got)
	}
}

func TestRun_EmptyRegistrySkipsDispatch(t *testing.T) {
	d := &fakeDispatcher{}
	f := NewFanOutEngine(registry.NewMemoryRegistry(nil), d, zap.NewNop())

	summary := f.NotifySlot(context.Background(), "Evening")
	if len(d.batches) != 0 {
		t.Error("dispatcher should not be called without subscriptions")
	}
	if summary.Push.Attempts != 0 || summary.Email.Attempts != 0 {
		t.Errorf("expected no attempts, got %+v", summary)
	}
}

func TestRun_JournalsAndBroadcasts(t *testing.T) {
	reg := registry.NewMemoryRegistry(nil)
	ctx := context.Background()
	reg.Add(ctx, push, "a@b.com")

	j := &fakeJournal{}
	b := &fakeBroadcaster{}
	f := NewFanOutEngine(reg, &fakeDispatcher{}, zap.NewNop(), WithJournal(j), WithBroadcaster(b))

	summary := f.Run(ctx, "Afternoon", domain.TriggerManual)

	if len(j.started) != 1 || len(j.finished) != 1 {
		t.Fatalf("expected one started and one finished run, got %d/%d", len(j.started), len(j.finished))
	}
	run := j.finished[0]
	if run.ID != summary.RunID || run.Trigger != domain.TriggerManual || run.Delivered != 2 || run.FinishedAt == nil {
		t.Errorf("unexpected finished run: %+v", run)
	}

	if len(b.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(b.events))
	}
	if b.events[0].Type != websocket.EventSlotStarted || b.events[1].Type != websocket.EventSlotFinished {
		t.Errorf("unexpected event order: %s, %s", b.events[0].Type, b.events[1].Type)
	}
	if b.events[0].Timestamp == "" {
		t.Error("events should be timestamped")
	}
}
