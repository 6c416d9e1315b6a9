package storage

import (
	"fmt"
	"time"
)

type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
)

// Reminder is one row of the persisted due-queue, derived from an event's
// reminder offsets. At most one reminder exists per (EventID, OffsetMinutes).
type Reminder struct {
	ID            string         `json:"id" db:"id"`
	OwnerID       string         `json:"ownerId" db:"owner_id"`
	EventID       string         `json:"eventId" db:"event_id"`
	EventTitle    string         `json:"eventTitle" db:"event_title"`
	FireAt        time.Time      `json:"fireAt" db:"fire_at"`
	OffsetMinutes int32          `json:"offsetMinutes" db:"offset_minutes"`
	Status        ReminderStatus `json:"status" db:"status"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	SentAt        *time.Time     `json:"sentAt,omitempty" db:"sent_at"`
}

// DedupeKey identifies the reminder across re-derivations and queue redeliveries.
func (r Reminder) DedupeKey() string {
	return fmt.Sprintf("%s:%d", r.EventID, r.OffsetMinutes)
}
