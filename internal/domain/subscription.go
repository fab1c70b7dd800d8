package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// PushDescriptor is the browser's push subscription (endpoint URL plus
// encryption keys). It is kept as raw JSON and only decoded by the push sender.
type PushDescriptor json.RawMessage

// MarshalJSON emits the descriptor verbatim.
func (p PushDescriptor) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores a copy of the raw value.
func (p *PushDescriptor) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// IsEmpty reports whether the descriptor carries nothing a push service could use.
func (p PushDescriptor) IsEmpty() bool {
	v := bytes.TrimSpace(p)
	switch string(v) {
	case "", "null", "{}", "[]", `""`, "false":
		return true
	}
	return false
}

type Subscription struct {
	ID        string         `json:"id"`
	Push      PushDescriptor `json:"subscription"`
	Email     string         `json:"email"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewSubscription validates the two client-supplied fields. The email is
// stored exactly as submitted.
func NewSubscription(push PushDescriptor, email string) (Subscription, error) {
	if push.IsEmpty() || email == "" {
		return Subscription{}, &ValidationError{Message: "Missing subscription or email"}
	}
	cp := make(PushDescriptor, len(push))
	copy(cp, push)
	return Subscription{Push: cp, Email: email}, nil
}

type SubscribeRequest struct {
	Subscription PushDescriptor `json:"subscription"`
	Email        string         `json:"email"`
}

type SubscribeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SubscriptionSummary is the listing view; push keys are never exposed.
type SubscriptionSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (s Subscription) Summary() SubscriptionSummary {
	return SubscriptionSummary{ID: s.ID, Email: s.Email, CreatedAt: s.CreatedAt}
}
