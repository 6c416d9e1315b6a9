package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateID        = errors.New("record with same ID exists")
	ErrDuplicateEmail     = errors.New("user with same email exists")
	ErrNotFound           = errors.New("record not found")
	ErrPermissionDenied   = errors.New("record belongs to another owner")
	ErrIncorrectEventTime = errors.New("incorrect event time")
	ErrIncorrectStartDate = errors.New("date should be a first day of requested period")
	ErrZoneNotEmpty       = errors.New("zone still has unarchived properties")
)

type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	AddUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	SetUserVerified(ctx context.Context, id string) error
	SetUserPassword(ctx context.Context, id string, passwordHash string) error

	AddZone(ctx context.Context, z *Zone) error
	GetZones(ctx context.Context, ownerID string) ([]Zone, error)
	GetZone(ctx context.Context, ownerID string, id string) (Zone, error)
	RenameZone(ctx context.Context, ownerID string, id string, name string) error
	RemoveZone(ctx context.Context, ownerID string, id string) error

	AddProperty(ctx context.Context, p *Property) error
	GetProperties(ctx context.Context, ownerID string, zoneID string) ([]Property, error)
	GetAllProperties(ctx context.Context, ownerID string) ([]Property, error)
	GetProperty(ctx context.Context, ownerID string, zoneID string, id string) (Property, error)
	UpdateProperty(ctx context.Context, ownerID string, zoneID string, id string, p Property) error
	SetPropertyStatus(ctx context.Context, ownerID string, zoneID string, id string, status PropertyStatus) error
	ArchiveProperty(ctx context.Context, ownerID string, zoneID string, id string) error

	AddEvent(ctx context.Context, e *Event) error
	GetEvent(ctx context.Context, ownerID string, id string) (Event, error)
	UpdateEvent(ctx context.Context, ownerID string, id string, e Event) error
	RemoveEvent(ctx context.Context, ownerID string, id string) error
	GetEventsByRange(ctx context.Context, ownerID string, from time.Time, to time.Time) ([]Event, error)
	GetEventsAfter(ctx context.Context, after time.Time) ([]Event, error)
	RemoveEventsBefore(ctx context.Context, t time.Time) error

	UpsertReminder(ctx context.Context, r *Reminder) error
	GetEventReminders(ctx context.Context, eventID string) ([]Reminder, error)
	PendingReminders(ctx context.Context, ownerID string) ([]Reminder, error)
	DueReminders(ctx context.Context, now time.Time) ([]Reminder, error)
	MarkReminderSent(ctx context.Context, id string, sentAt time.Time) (bool, error)
	RemoveEventReminders(ctx context.Context, eventID string) error
	RemoveStaleReminders(ctx context.Context, eventID string, keepOffsets []int32) error

	AddNotification(ctx context.Context, n *Notification) error
	GetNotifications(ctx context.Context, ownerID string) ([]Notification, error)
}
