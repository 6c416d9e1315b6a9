package notify

import (
	"context"
	"testing"
	"time"

	"github.com/elitestate/estate-server/internal/rabbit"
	"github.com/elitestate/estate-server/internal/storage"
	memorystorage "github.com/elitestate/estate-server/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	fireAt := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*Dispatcher, *memorystorage.Storage, rabbit.Message) {
		t.Helper()
		st := memorystorage.New()
		r := storage.Reminder{
			OwnerID:       "owner-1",
			EventID:       "event-1",
			EventTitle:    "Client call",
			FireAt:        fireAt,
			OffsetMinutes: 60,
		}
		require.NoError(t, st.UpsertReminder(ctx, &r))

		d := NewDispatcher(st)
		d.now = func() time.Time { return fireAt }
		return d, st, rabbit.Message{
			ReminderID:    r.ID,
			EventID:       r.EventID,
			EventTitle:    r.EventTitle,
			OffsetMinutes: r.OffsetMinutes,
			FireAt:        r.FireAt,
			OwnerID:       r.OwnerID,
		}
	}

	t.Run("marks sent and records one feed entry", func(t *testing.T) {
		d, st, msg := setup(t)
		require.NoError(t, d.Dispatch(ctx, msg))

		reminders, err := st.GetEventReminders(ctx, "event-1")
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		require.Equal(t, storage.ReminderSent, reminders[0].Status)
		require.NotNil(t, reminders[0].SentAt)

		notifications, err := st.GetNotifications(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		require.Equal(t, "Reminder: Client call", notifications[0].Title)
		require.Equal(t, "event-1:60", notifications[0].DedupeKey)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		d, st, msg := setup(t)
		require.NoError(t, d.Dispatch(ctx, msg))
		reminders, err := st.GetEventReminders(ctx, "event-1")
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		firstSentAt := *reminders[0].SentAt

		d.now = func() time.Time { return fireAt.Add(time.Minute) }
		require.NoError(t, d.Dispatch(ctx, msg))

		reminders, err = st.GetEventReminders(ctx, "event-1")
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		require.True(t, reminders[0].SentAt.Equal(firstSentAt))

		notifications, err := st.GetNotifications(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, notifications, 1)
	})

	t.Run("vanished reminder is skipped", func(t *testing.T) {
		d, _, msg := setup(t)
		msg.ReminderID = "missing"
		require.NoError(t, d.Dispatch(ctx, msg))
	})

	t.Run("overdue message body", func(t *testing.T) {
		d, st, msg := setup(t)
		msg.Overdue = true
		require.NoError(t, d.Dispatch(ctx, msg))

		notifications, err := st.GetNotifications(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		require.Contains(t, notifications[0].Body, "delivered late")
	})
}
