package domain

import (
	"fmt"
	"time"
)

// Slot is a named recurring time of day.
type Slot struct {
	Label  string `json:"label"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
}

func (s Slot) Clock() string { return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute) }

// Message is what every channel delivers for one reminder.
type Message struct {
	Subject string
	Body    string
}

func ReminderMessage(label string) Message {
	return Message{
		Subject: "Medication Reminder: " + label,
		Body:    fmt.Sprintf("💊 It's time to take your %s medicine!", label),
	}
}

type SlotRun struct {
	ID            string     `json:"id"`
	Slot          string     `json:"slot"`
	Trigger       string     `json:"trigger"`
	Subscriptions int        `json:"subscriptions"`
	Delivered     int        `json:"delivered"`
	Failed        int        `json:"failed"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)
