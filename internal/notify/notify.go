package notify

import (
	"context"

	"github.com/medieye/med-reminder/internal/domain"
)

// Sender performs exactly one delivery attempt per call and reports the
// outcome. Implementations must not retry.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, sub domain.Subscription, msg domain.Message) domain.Outcome
}

// Limiter blocks until an attempt for key may proceed.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Pacer is a Sender that admits attempts through a limiter. Callers that put
// a deadline on each attempt call Pace first and then send through Unpaced,
// so the deadline covers the send alone.
type Pacer interface {
	Sender
	Pace(ctx context.Context) error
	Unpaced() Sender
}

// Paced delays each send until the limiter admits it.
type Paced struct {
	Sender
	limiter Limiter
}

func NewPaced(s Sender, l Limiter) *Paced {
	return &Paced{Sender: s, limiter: l}
}

func (p *Paced) Pace(ctx context.Context) error {
	return p.limiter.Wait(ctx, string(p.Channel()))
}

func (p *Paced) Unpaced() Sender { return p.Sender }

func (p *Paced) Send(ctx context.Context, sub domain.Subscription, msg domain.Message) domain.Outcome {
	if err := p.Pace(ctx); err != nil {
		return domain.Failed(p.Channel(), Destination(p.Channel(), sub), err)
	}
	return p.Sender.Send(ctx, sub, msg)
}

// Destination is the address an attempt on ch goes to: the email or the push endpoint.
func Destination(ch domain.Channel, sub domain.Subscription) string {
	if ch == domain.ChannelEmail {
		return sub.Email
	}
	return PushEndpoint(sub.Push)
}
