package storage

import (
	"time"
)

type Event struct {
	ID              string    `json:"id" db:"id"`
	OwnerID         string    `json:"ownerId" db:"owner_id"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	Attendees       string    `json:"attendees" db:"attendees"`
	StartTime       time.Time `json:"startTime" db:"start_timestamp"`
	EndTime         time.Time `json:"endTime" db:"end_timestamp"`
	ReminderOffsets []int32   `json:"reminderOffsets" db:"-"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}
