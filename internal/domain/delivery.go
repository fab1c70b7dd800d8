package domain

import (
	"time"
)

type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Outcome is the result of a single send attempt. A nil Err means delivered.
type Outcome struct {
	Channel Channel
	Err     error
}

func Delivered(ch Channel) Outcome { return Outcome{Channel: ch} }

// Failed wraps cause in a DeliveryError for the given destination.
func Failed(ch Channel, destination string, cause error) Outcome {
	return Outcome{Channel: ch, Err: &DeliveryError{Channel: ch, Destination: destination, Err: cause}}
}

func (o Outcome) Delivered() bool { return o.Err == nil }

func (o Outcome) Status() string {
	if o.Err == nil {
		return StatusDelivered
	}
	return StatusFailed
}

// Reason is the failure description, empty when delivered.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

type DeliveryAttempt struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	SubscriptionID string    `json:"subscription_id"`
	Slot           string    `json:"slot"`
	Channel        Channel   `json:"channel"`
	Destination    string    `json:"destination"`
	Status         string    `json:"status"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
