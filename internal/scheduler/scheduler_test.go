package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/elitestate/estate-server/internal/storage"
	memorystorage "github.com/elitestate/estate-server/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newScheduler(st storage.Storage) *Scheduler {
	s := New(st, DefaultGrace)
	s.now = func() time.Time { return now }
	return s
}

func addEvent(t *testing.T, st storage.Storage, start time.Time, offsets ...int32) storage.Event {
	t.Helper()
	e := storage.Event{
		OwnerID:         "owner-1",
		Title:           "Client call",
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		ReminderOffsets: offsets,
	}
	require.NoError(t, st.AddEvent(context.Background(), &e))
	return e
}

func TestSyncEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("one reminder per offset", func(t *testing.T) {
		st := memorystorage.New()
		s := newScheduler(st)
		e := addEvent(t, st, now.Add(5*time.Hour), 60, 15)

		require.NoError(t, s.SyncEvent(ctx, e))

		reminders, err := st.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, reminders, 2)
		for _, r := range reminders {
			require.Equal(t, storage.ReminderPending, r.Status)
			require.Equal(t, "Client call", r.EventTitle)
			require.True(t, r.FireAt.Equal(e.StartTime.Add(-time.Duration(r.OffsetMinutes)*time.Minute)))
		}
	})

	t.Run("past offsets are skipped", func(t *testing.T) {
		st := memorystorage.New()
		s := newScheduler(st)
		// Start in 30 minutes: the 60-minute offset already passed.
		e := addEvent(t, st, now.Add(30*time.Minute), 60, 15)

		require.NoError(t, s.SyncEvent(ctx, e))

		reminders, err := st.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		require.Equal(t, int32(15), reminders[0].OffsetMinutes)
	})

	t.Run("only past offsets means no reminders", func(t *testing.T) {
		st := memorystorage.New()
		s := newScheduler(st)
		e := addEvent(t, st, now.Add(10*time.Minute), 60)

		require.NoError(t, s.SyncEvent(ctx, e))

		reminders, err := st.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Empty(t, reminders)
	})

	t.Run("sync is idempotent", func(t *testing.T) {
		st := memorystorage.New()
		s := newScheduler(st)
		e := addEvent(t, st, now.Add(5*time.Hour), 60, 15)

		require.NoError(t, s.SyncEvent(ctx, e))
		require.NoError(t, s.SyncEvent(ctx, e))

		reminders, err := st.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, reminders, 2)
	})

	t.Run("reschedule moves pending fire times", func(t *testing.T) {
		st := memorystorage.New()
		s := newScheduler(st)
		e := addEvent(t, st, now.Add(5*time.Hour), 60, 15)
		require.NoError(t, s.SyncEvent(ctx, e))

		e.StartTime = now.Add(23 * time.Hour)
		e.EndTime = e.StartTime.Add(30 * time.Minute)
		require.NoError(t, st.UpdateEvent(ctx, "owner-1", e.ID, e))
		require.NoError(t, s.SyncEvent(ctx, e))

		reminders, err := st.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, reminders, 2)
		for _, r := range reminders {
			require.True(t, r.FireAt.Equal(e.StartTime.Add(-time.Duration(r.OffsetMinutes)*time.Minute)),
				"reminder must fire relative to the new start, not the old one")
		}
	})

	t.Run("reschedule into the past refires overdue", func(t *testing.T) {
		st := memorystorage.New()
		s := newScheduler(st)
		e := addEvent(t, st, now.Add(8*time.Hour), 60)
		require.NoError(t, s.SyncEvent(ctx, e))

		// Move the start so the recomputed fire time already passed. The
		// armed reminder must not keep its old future fire time.
		e.StartTime = now.Add(30 * time.Minute)
		e.EndTime = e.StartTime.Add(30 * time.Minute)
		require.NoError(t, st.UpdateEvent(ctx, "owner-1", e.ID, e))
		require.NoError(t, s.SyncEvent(ctx, e))

		reminders, err := st.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		require.Equal(t, storage.ReminderPending, reminders[0].Status)
		require.True(t, reminders[0].FireAt.Equal(e.StartTime.Add(-time.Hour)),
			"reminder must fire relative to the new start, not the old one")

		due, err := s.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, due, 1)
		require.True(t, due[0].Overdue)
	})

	t.Run("removed offsets are pruned", func(t *testing.T) {
		st := memorystorage.New()
		s := newScheduler(st)
		e := addEvent(t, st, now.Add(5*time.Hour), 60, 15)
		require.NoError(t, s.SyncEvent(ctx, e))

		e.ReminderOffsets = []int32{15}
		require.NoError(t, st.UpdateEvent(ctx, "owner-1", e.ID, e))
		require.NoError(t, s.SyncEvent(ctx, e))

		reminders, err := st.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		require.Equal(t, int32(15), reminders[0].OffsetMinutes)
	})
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	st := memorystorage.New()
	s := newScheduler(st)

	addEvent(t, st, now.Add(5*time.Hour), 60, 15)
	addEvent(t, st, now.Add(24*time.Hour), 30)

	require.NoError(t, s.SyncAll(ctx))
	require.NoError(t, s.SyncAll(ctx))

	reminders, err := st.PendingReminders(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, reminders, 3)
}

func TestScan(t *testing.T) {
	ctx := context.Background()

	t.Run("due and overdue", func(t *testing.T) {
		st := memorystorage.New()
		s := newScheduler(st)
		e := addEvent(t, st, now.Add(5*time.Hour), 60, 15)
		require.NoError(t, s.SyncEvent(ctx, e))

		due, err := s.Scan(ctx)
		require.NoError(t, err)
		require.Empty(t, due)

		// Jump past the first fire time by less than the grace window.
		s.now = func() time.Time { return e.StartTime.Add(-59 * time.Minute) }
		due, err = s.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, due, 1)
		require.False(t, due[0].Overdue)

		// Far past it: the reminder is late.
		s.now = func() time.Time { return e.StartTime.Add(-30 * time.Minute) }
		due, err = s.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, due, 1)
		require.True(t, due[0].Overdue)
	})

	t.Run("sent reminders never rescanned", func(t *testing.T) {
		st := memorystorage.New()
		s := newScheduler(st)
		e := addEvent(t, st, now.Add(time.Hour), 30)
		require.NoError(t, s.SyncEvent(ctx, e))

		s.now = func() time.Time { return e.StartTime }
		due, err := s.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, due, 1)

		sent, err := st.MarkReminderSent(ctx, due[0].ID, e.StartTime)
		require.NoError(t, err)
		require.True(t, sent)

		due, err = s.Scan(ctx)
		require.NoError(t, err)
		require.Empty(t, due)
	})
}

func TestDropEvent(t *testing.T) {
	ctx := context.Background()
	st := memorystorage.New()
	s := newScheduler(st)
	e := addEvent(t, st, now.Add(5*time.Hour), 60, 15)
	require.NoError(t, s.SyncEvent(ctx, e))

	require.NoError(t, s.DropEvent(ctx, e.ID))

	reminders, err := st.GetEventReminders(ctx, e.ID)
	require.NoError(t, err)
	require.Empty(t, reminders)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	st := memorystorage.New()
	s := newScheduler(st)

	old := addEvent(t, st, now.AddDate(-2, 0, 0), 60)
	recent := addEvent(t, st, now.Add(5*time.Hour), 60)
	require.NoError(t, s.SyncEvent(ctx, recent))

	require.NoError(t, s.Cleanup(ctx, 365*24*time.Hour))

	_, err := st.GetEvent(ctx, "owner-1", old.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = st.GetEvent(ctx, "owner-1", recent.ID)
	require.NoError(t, err)
}
