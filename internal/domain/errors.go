package domain

import "fmt"

// ValidationError is returned for malformed or missing subscribe input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// DeliveryError describes one failed send attempt.
type DeliveryError struct {
	Channel     Channel
	Destination string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery to %s failed: %v", e.Channel, e.Destination, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
