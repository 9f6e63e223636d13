package notification

import (
	"time"

	"github.com/google/uuid"
)

type ReminderKind string

const (
	KindTask  ReminderKind = "task"
	KindHabit ReminderKind = "habit"
)

// Reminder is the logical notification the scheduler hands to the dispatch
// adapter: what to say plus metadata identifying the record it is about.
type Reminder struct {
	Kind  ReminderKind
	ID    uuid.UUID
	Title string
	Body  string
}

func (r Reminder) Metadata() map[string]string {
	return map[string]string{
		"type": string(r.Kind),
		"id":   r.ID.String(),
	}
}

// DeliveryResult classifies a dispatch attempt. InvalidToken is terminal for
// that token and never retried; OtherError covers transient transport
// failures, also not retried within the tick.
type DeliveryResult int

const (
	Delivered DeliveryResult = iota
	InvalidToken
	OtherError
)

type DeviceToken struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	Platform  string    `json:"platform" db:"platform"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
