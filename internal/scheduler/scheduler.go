package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/elitestate/estate-server/internal/storage"
	log "github.com/sirupsen/logrus"
)

// DefaultGrace is how far past its fire time a reminder may be picked up
// before it is flagged overdue. One scan interval of slack keeps reminders
// that fire between scans from being reported as late.
const DefaultGrace = 2 * time.Minute

type Scheduler struct {
	storage storage.Storage
	grace   time.Duration
	now     func() time.Time
}

// Due is a reminder ready for dispatch. Overdue means its fire time passed
// while no scheduler was running; the dispatcher phrases those differently.
type Due struct {
	storage.Reminder
	Overdue bool
}

func New(st storage.Storage, grace time.Duration) *Scheduler {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Scheduler{storage: st, grace: grace, now: time.Now}
}

// SyncEvent re-derives the event's reminders: one per offset, keyed
// (eventID, offset), skipping offsets whose fire time already passed.
// An already-armed pending reminder is the exception: it follows the event
// to its new fire time even when that time is past, so a reschedule into
// the past fires it overdue on the next scan instead of at the old
// schedule. Pending reminders for offsets removed from the event are
// pruned; sent reminders are never touched. Safe to call any number of
// times.
func (s *Scheduler) SyncEvent(ctx context.Context, e storage.Event) error {
	if err := s.storage.RemoveStaleReminders(ctx, e.ID, e.ReminderOffsets); err != nil {
		return fmt.Errorf("failed to prune reminders of event %q: %w", e.ID, err)
	}

	existing, err := s.storage.GetEventReminders(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load reminders of event %q: %w", e.ID, err)
	}
	pending := make(map[int32]struct{}, len(existing))
	for _, r := range existing {
		if r.Status == storage.ReminderPending {
			pending[r.OffsetMinutes] = struct{}{}
		}
	}

	now := s.now()
	for _, offset := range e.ReminderOffsets {
		fireAt := e.StartTime.Add(-time.Duration(offset) * time.Minute)
		if !fireAt.After(now) {
			if _, armed := pending[offset]; !armed {
				continue
			}
		}
		r := storage.Reminder{
			OwnerID:       e.OwnerID,
			EventID:       e.ID,
			EventTitle:    e.Title,
			FireAt:        fireAt,
			OffsetMinutes: offset,
		}
		if err := s.storage.UpsertReminder(ctx, &r); err != nil {
			return fmt.Errorf("failed to upsert reminder %s: %w", r.DedupeKey(), err)
		}
	}
	return nil
}

// SyncAll re-derives reminders for every future event. Run on every
// scheduler start: in-process timers do not survive restarts, the store is
// the single source of truth.
func (s *Scheduler) SyncAll(ctx context.Context) error {
	events, err := s.storage.GetEventsAfter(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to load future events: %w", err)
	}
	for _, e := range events {
		if err := s.SyncEvent(ctx, e); err != nil {
			return err
		}
	}
	log.Debugf("reminder sync pass covered %d events", len(events))
	return nil
}

// DropEvent removes every reminder of the event, pending and sent.
func (s *Scheduler) DropEvent(ctx context.Context, eventID string) error {
	return s.storage.RemoveEventReminders(ctx, eventID)
}

// Scan returns pending reminders whose fire time has passed. It does not
// mark anything sent; that transition belongs to the dispatcher.
func (s *Scheduler) Scan(ctx context.Context) ([]Due, error) {
	now := s.now()
	reminders, err := s.storage.DueReminders(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load due reminders: %w", err)
	}
	due := make([]Due, 0, len(reminders))
	for _, r := range reminders {
		due = append(due, Due{Reminder: r, Overdue: now.Sub(r.FireAt) > s.grace})
	}
	return due, nil
}

// Cleanup removes events that ended before the retention horizon, together
// with their reminders.
func (s *Scheduler) Cleanup(ctx context.Context, retention time.Duration) error {
	return s.storage.RemoveEventsBefore(ctx, s.now().Add(-retention))
}
