package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elitestate/estate-server/internal/rabbit"
	"github.com/elitestate/estate-server/internal/storage"
	"github.com/elitestate/estate-server/internal/util"
	log "github.com/sirupsen/logrus"
)

// Dispatcher turns due-reminder messages into notifications. Delivery is the
// log channel plus a persisted in-app feed entry; the feed entry is written
// only by the call that wins the pending->sent transition, so redelivered
// messages collapse into a single notification per (eventID, offset).
//
// The feed entry is best-effort: if its write fails after the transition,
// the reminder stays sent and the entry is not retried. Delivery on the log
// channel has already happened at that point.
type Dispatcher struct {
	storage storage.Storage
	now     func() time.Time
}

func NewDispatcher(st storage.Storage) *Dispatcher {
	return &Dispatcher{storage: st, now: time.Now}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg rabbit.Message) error {
	title := fmt.Sprintf("Reminder: %s", msg.EventTitle)
	body := fmt.Sprintf("%s starts in %s", msg.EventTitle, util.FormatOffset(msg.OffsetMinutes))
	if msg.Overdue {
		body = fmt.Sprintf("%s was due %s before start, delivered late", msg.EventTitle, util.FormatOffset(msg.OffsetMinutes))
	}

	sent, err := d.storage.MarkReminderSent(ctx, msg.ReminderID, d.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The event (and its reminders) vanished between scan and
			// delivery; nothing to notify about.
			log.Warnf("reminder %s gone before dispatch", msg.ReminderID)
			return nil
		}
		return fmt.Errorf("failed to mark reminder %s sent: %w", msg.ReminderID, err)
	}
	if !sent {
		log.Debugf("reminder %s already sent, skipping", msg.ReminderID)
		return nil
	}

	log.WithField("owner", msg.OwnerID).
		WithField("event", msg.EventID).
		WithField("overdue", msg.Overdue).
		Infof("%s: %s", title, body)

	dedupeKey := fmt.Sprintf("%s:%d", msg.EventID, msg.OffsetMinutes)
	n := storage.Notification{
		OwnerID:   msg.OwnerID,
		Title:     title,
		Body:      body,
		DedupeKey: dedupeKey,
	}
	if err := d.storage.AddNotification(ctx, &n); err != nil {
		if errors.Is(err, storage.ErrDuplicateID) {
			return nil
		}
		return fmt.Errorf("failed to record notification %s: %w", dedupeKey, err)
	}
	return nil
}
