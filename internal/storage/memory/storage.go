package memorystorage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elitestate/estate-server/internal/storage"
	"github.com/google/uuid"
)

type Storage struct {
	mu                sync.RWMutex
	users             map[string]storage.User
	userIDByEmail     map[string]string
	zones             map[string]storage.Zone
	properties        map[string]storage.Property
	events            map[string]storage.Event
	reminders         map[string]storage.Reminder
	reminderByKey     map[string]string
	notifications     map[string]storage.Notification
	notificationByKey map[string]struct{}
}

func New() *Storage {
	return &Storage{
		users:             make(map[string]storage.User),
		userIDByEmail:     make(map[string]string),
		zones:             make(map[string]storage.Zone),
		properties:        make(map[string]storage.Property),
		events:            make(map[string]storage.Event),
		reminders:         make(map[string]storage.Reminder),
		reminderByKey:     make(map[string]string),
		notifications:     make(map[string]storage.Notification),
		notificationByKey: make(map[string]struct{}),
	}
}

func (s *Storage) Connect(_ context.Context) error {
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}

func (s *Storage) AddUser(_ context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := s.userIDByEmail[email]; ok {
		return fmt.Errorf("email %q already registered: %w", u.Email, storage.ErrDuplicateEmail)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", u.ID, storage.ErrDuplicateID)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = *u
	s.userIDByEmail[email] = u.ID
	return nil
}

func (s *Storage) GetUser(_ context.Context, id string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, fmt.Errorf("user %q: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userIDByEmail[strings.ToLower(email)]
	if !ok {
		return storage.User{}, fmt.Errorf("user %q: %w", email, storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Storage) SetUserVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %q: %w", id, storage.ErrNotFound)
	}
	u.EmailVerified = true
	s.users[id] = u
	return nil
}

func (s *Storage) SetUserPassword(_ context.Context, id string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %q: %w", id, storage.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	s.users[id] = u
	return nil
}

func (s *Storage) AddZone(_ context.Context, z *storage.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z.ID == "" {
		z.ID = uuid.NewString()
	} else if _, ok := s.zones[z.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", z.ID, storage.ErrDuplicateID)
	}
	if z.CreatedAt.IsZero() {
		z.CreatedAt = time.Now()
	}
	s.zones[z.ID] = *z
	return nil
}

func (s *Storage) GetZones(_ context.Context, ownerID string) ([]storage.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zones := make([]storage.Zone, 0)
	for _, z := range s.zones {
		if z.OwnerID == ownerID {
			zones = append(zones, z)
		}
	}
	return zones, nil
}

func (s *Storage) GetZone(_ context.Context, ownerID string, id string) (storage.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getZone(ownerID, id)
}

// getZone expects the caller to hold the lock.
func (s *Storage) getZone(ownerID string, id string) (storage.Zone, error) {
	z, ok := s.zones[id]
	if !ok {
		return storage.Zone{}, fmt.Errorf("zone %q: %w", id, storage.ErrNotFound)
	}
	if z.OwnerID != ownerID {
		return storage.Zone{}, fmt.Errorf("zone %q: %w", id, storage.ErrPermissionDenied)
	}
	return z, nil
}

func (s *Storage) RenameZone(_ context.Context, ownerID string, id string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, err := s.getZone(ownerID, id)
	if err != nil {
		return err
	}
	z.Name = name
	s.zones[id] = z
	return nil
}

// RemoveZone deletes the zone record only; properties are not cascaded.
func (s *Storage) RemoveZone(_ context.Context, ownerID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getZone(ownerID, id); err != nil {
		return err
	}
	delete(s.zones, id)
	return nil
}

func (s *Storage) AddProperty(_ context.Context, p *storage.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getZone(p.OwnerID, p.ZoneID); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, ok := s.properties[p.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", p.ID, storage.ErrDuplicateID)
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.properties[p.ID] = *p
	return nil
}

func (s *Storage) GetProperties(_ context.Context, ownerID string, zoneID string) ([]storage.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.getZone(ownerID, zoneID); err != nil {
		return nil, err
	}
	props := make([]storage.Property, 0)
	for _, p := range s.properties {
		if p.ZoneID == zoneID {
			props = append(props, p)
		}
	}
	return props, nil
}

func (s *Storage) GetAllProperties(_ context.Context, ownerID string) ([]storage.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props := make([]storage.Property, 0)
	for _, p := range s.properties {
		if p.OwnerID == ownerID {
			if _, ok := s.zones[p.ZoneID]; !ok {
				continue
			}
			props = append(props, p)
		}
	}
	return props, nil
}

func (s *Storage) GetProperty(_ context.Context, ownerID string, zoneID string, id string) (storage.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProperty(ownerID, zoneID, id)
}

func (s *Storage) getProperty(ownerID string, zoneID string, id string) (storage.Property, error) {
	if _, err := s.getZone(ownerID, zoneID); err != nil {
		return storage.Property{}, err
	}
	p, ok := s.properties[id]
	if !ok || p.ZoneID != zoneID {
		return storage.Property{}, fmt.Errorf("property %q: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Storage) UpdateProperty(_ context.Context, ownerID string, zoneID string, id string, p storage.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, err := s.getProperty(ownerID, zoneID, id)
	if err != nil {
		return err
	}
	p.ID = id
	p.ZoneID = zoneID
	p.OwnerID = ownerID
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now()
	s.properties[id] = p
	return nil
}

func (s *Storage) SetPropertyStatus(_ context.Context, ownerID string, zoneID string, id string, status storage.PropertyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.getProperty(ownerID, zoneID, id)
	if err != nil {
		return err
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	s.properties[id] = p
	return nil
}

func (s *Storage) ArchiveProperty(_ context.Context, ownerID string, zoneID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.getProperty(ownerID, zoneID, id)
	if err != nil {
		return err
	}
	p.Archived = true
	p.UpdatedAt = time.Now()
	s.properties[id] = p
	return nil
}

func (s *Storage) AddEvent(_ context.Context, e *storage.Event) error {
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("event end time should be after start time: %w", storage.ErrIncorrectEventTime)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	} else if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateID)
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.events[e.ID] = *e
	return nil
}

func (s *Storage) GetEvent(_ context.Context, ownerID string, id string) (storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEvent(ownerID, id)
}

func (s *Storage) getEvent(ownerID string, id string) (storage.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return storage.Event{}, fmt.Errorf("event %q: %w", id, storage.ErrNotFound)
	}
	if e.OwnerID != ownerID {
		return storage.Event{}, fmt.Errorf("event %q: %w", id, storage.ErrPermissionDenied)
	}
	return e, nil
}

func (s *Storage) UpdateEvent(_ context.Context, ownerID string, id string, e storage.Event) error {
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("event end time should be after start time: %w", storage.ErrIncorrectEventTime)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, err := s.getEvent(ownerID, id)
	if err != nil {
		return err
	}
	e.ID = id
	e.OwnerID = ownerID
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = time.Now()
	s.events[id] = e
	return nil
}

func (s *Storage) RemoveEvent(_ context.Context, ownerID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getEvent(ownerID, id); err != nil {
		return err
	}
	delete(s.events, id)
	return nil
}

// Select in range [from:to).
func (s *Storage) GetEventsByRange(_ context.Context, ownerID string, from time.Time, to time.Time) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]storage.Event, 0)
	for _, e := range s.events {
		if e.OwnerID != ownerID {
			continue
		}
		if !e.StartTime.Before(from) && e.StartTime.Before(to) {
			events = append(events, e)
		}
	}
	return events, nil
}

func (s *Storage) GetEventsAfter(_ context.Context, after time.Time) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]storage.Event, 0)
	for _, e := range s.events {
		if e.StartTime.After(after) {
			events = append(events, e)
		}
	}
	return events, nil
}

func (s *Storage) RemoveEventsBefore(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.events {
		if e.EndTime.Before(t) {
			delete(s.events, id)
			s.removeEventReminders(id)
		}
	}
	return nil
}

func (s *Storage) UpsertReminder(_ context.Context, r *storage.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.DedupeKey()
	if id, ok := s.reminderByKey[key]; ok {
		existing := s.reminders[id]
		if existing.Status == storage.ReminderSent {
			*r = existing
			return nil
		}
		existing.FireAt = r.FireAt
		existing.EventTitle = r.EventTitle
		s.reminders[id] = existing
		*r = existing
		return nil
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = storage.ReminderPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	s.reminders[r.ID] = *r
	s.reminderByKey[key] = r.ID
	return nil
}

func (s *Storage) GetEventReminders(_ context.Context, eventID string) ([]storage.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reminders := make([]storage.Reminder, 0)
	for _, r := range s.reminders {
		if r.EventID == eventID {
			reminders = append(reminders, r)
		}
	}
	return reminders, nil
}

func (s *Storage) PendingReminders(_ context.Context, ownerID string) ([]storage.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reminders := make([]storage.Reminder, 0)
	for _, r := range s.reminders {
		if r.OwnerID == ownerID && r.Status == storage.ReminderPending {
			reminders = append(reminders, r)
		}
	}
	return reminders, nil
}

func (s *Storage) DueReminders(_ context.Context, now time.Time) ([]storage.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reminders := make([]storage.Reminder, 0)
	for _, r := range s.reminders {
		if r.Status == storage.ReminderPending && !r.FireAt.After(now) {
			reminders = append(reminders, r)
		}
	}
	return reminders, nil
}

// MarkReminderSent reports whether this call performed the pending->sent
// transition. A reminder already sent is left untouched.
func (s *Storage) MarkReminderSent(_ context.Context, id string, sentAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return false, fmt.Errorf("reminder %q: %w", id, storage.ErrNotFound)
	}
	if r.Status == storage.ReminderSent {
		return false, nil
	}
	r.Status = storage.ReminderSent
	r.SentAt = &sentAt
	s.reminders[id] = r
	return true, nil
}

func (s *Storage) RemoveEventReminders(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeEventReminders(eventID)
	return nil
}

func (s *Storage) removeEventReminders(eventID string) {
	for id, r := range s.reminders {
		if r.EventID == eventID {
			delete(s.reminders, id)
			delete(s.reminderByKey, r.DedupeKey())
		}
	}
}

// RemoveStaleReminders drops pending reminders of the event whose offset is
// no longer in keepOffsets. Sent reminders are kept as history.
func (s *Storage) RemoveStaleReminders(_ context.Context, eventID string, keepOffsets []int32) error {
	keep := make(map[int32]struct{}, len(keepOffsets))
	for _, o := range keepOffsets {
		keep[o] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.reminders {
		if r.EventID != eventID || r.Status != storage.ReminderPending {
			continue
		}
		if _, ok := keep[r.OffsetMinutes]; !ok {
			delete(s.reminders, id)
			delete(s.reminderByKey, r.DedupeKey())
		}
	}
	return nil
}

func (s *Storage) AddNotification(_ context.Context, n *storage.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notificationByKey[n.DedupeKey]; ok {
		return fmt.Errorf("duplicate dedupe key %q: %w", n.DedupeKey, storage.ErrDuplicateID)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.notifications[n.ID] = *n
	s.notificationByKey[n.DedupeKey] = struct{}{}
	return nil
}

func (s *Storage) GetNotifications(_ context.Context, ownerID string) ([]storage.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notifications := make([]storage.Notification, 0)
	for _, n := range s.notifications {
		if n.OwnerID == ownerID {
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}
