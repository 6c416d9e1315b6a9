package storage

import (
	"time"
)

// Notification is an entry of the in-app feed. The dispatcher inserts one
// per reminder dedupe key, only after winning the pending->sent transition.
type Notification struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"ownerId" db:"owner_id"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	DedupeKey string    `json:"dedupeKey" db:"dedupe_key"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
