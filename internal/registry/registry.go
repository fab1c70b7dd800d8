package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/medieye/med-reminder/internal/domain"
)

// Registry holds every subscription accepted since startup.
type Registry interface {
	Add(ctx context.Context, push domain.PushDescriptor, email string) (domain.Subscription, error)
	All(ctx context.Context) []domain.Subscription
	Len() int
}

// MemoryRegistry is an append-only, insertion-ordered list guarded by one lock.
// Nothing is persisted; the list is lost when the process exits.
type MemoryRegistry struct {
	mu    sync.RWMutex
	subs  []domain.Subscription
	clock clockwork.Clock
}

func NewMemoryRegistry(clock clockwork.Clock) *MemoryRegistry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryRegistry{clock: clock}
}

// Add validates and appends a subscription. Duplicates are accepted.
func (r *MemoryRegistry) Add(_ context.Context, push domain.PushDescriptor, email string) (domain.Subscription, error) {
	sub, err := domain.NewSubscription(push, email)
	if err != nil {
		return domain.Subscription{}, err
	}
	sub.ID = uuid.NewString()
	sub.CreatedAt = r.clock.Now().UTC()

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	return sub, nil
}

// All returns a snapshot copy in insertion order.
func (r *MemoryRegistry) All(_ context.Context) []domain.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Subscription, len(r.subs))
	copy(out, r.subs)
	return out
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
