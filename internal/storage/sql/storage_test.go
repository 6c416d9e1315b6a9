//go:build sql
// +build sql

package sqlstorage_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/elitestate/estate-server/internal/storage"
	sqlstorage "github.com/elitestate/estate-server/internal/storage/sql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var (
	host     = "127.0.0.1"
	port     = 5532
	database = "testing"
	username = "postgres"
	password = "pas"
)

func TestMain(m *testing.M) {
	pgHost := os.Getenv("POSTGRES_HOST")
	pgPort := os.Getenv("POSTGRES_PORT")
	if pgHost != "" {
		host = pgHost
	}
	if pgPort != "" {
		port, _ = strconv.Atoi(pgPort)
	}

	cleanupDb()
	code := m.Run()
	os.Exit(code)
}

func TestEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("add and read back", func(t *testing.T) {
		s := createStorage(t)
		initDate := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
		e := storage.Event{
			OwnerID:         "owner-1",
			Title:           "Client call",
			Description:     "description",
			StartTime:       initDate.Add(time.Hour),
			EndTime:         initDate.Add(2 * time.Hour),
			ReminderOffsets: []int32{60, 15},
		}

		require.NoError(t, s.AddEvent(ctx, &e))
		require.NotEmpty(t, e.ID)

		got, err := s.GetEvent(ctx, e.OwnerID, e.ID)
		require.NoError(t, err)
		compareEvents(t, e, got)

		_, err = s.GetEvent(ctx, "other-owner", e.ID)
		require.ErrorIs(t, err, storage.ErrPermissionDenied)
	})

	t.Run("update", func(t *testing.T) {
		s := createStorage(t)
		initDate := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
		e := storage.Event{
			OwnerID:   "owner-1",
			Title:     "Client call",
			StartTime: initDate.Add(time.Hour),
			EndTime:   initDate.Add(2 * time.Hour),
		}
		require.NoError(t, s.AddEvent(ctx, &e))

		e.Title = "Rescheduled call"
		e.StartTime = e.StartTime.Add(45 * time.Minute)
		e.EndTime = e.EndTime.Add(45 * time.Minute)
		e.ReminderOffsets = []int32{30}
		require.NoError(t, s.UpdateEvent(ctx, e.OwnerID, e.ID, e))

		got, err := s.GetEvent(ctx, e.OwnerID, e.ID)
		require.NoError(t, err)
		compareEvents(t, e, got)
	})

	t.Run("remove", func(t *testing.T) {
		s := createStorage(t)
		initDate := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
		e := storage.Event{
			OwnerID:   "owner-1",
			Title:     "Client call",
			StartTime: initDate.Add(time.Hour),
			EndTime:   initDate.Add(2 * time.Hour),
		}
		require.NoError(t, s.AddEvent(ctx, &e))

		require.NoError(t, s.RemoveEvent(ctx, e.OwnerID, e.ID))
		_, err := s.GetEvent(ctx, e.OwnerID, e.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.ErrorIs(t, s.RemoveEvent(ctx, e.OwnerID, e.ID), storage.ErrNotFound)
	})

	t.Run("range queries", func(t *testing.T) {
		s := createStorage(t)
		initDate := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 10; i++ {
			e := storage.Event{
				OwnerID:   "owner-1",
				Title:     fmt.Sprintf("event %d", i),
				StartTime: initDate.AddDate(0, 0, i),
				EndTime:   initDate.AddDate(0, 0, i).Add(time.Hour),
			}
			require.NoError(t, s.AddEvent(ctx, &e))
		}

		events, err := s.GetEventsByRange(ctx, "owner-1", initDate, initDate.AddDate(0, 0, 1))
		require.NoError(t, err)
		require.Len(t, events, 1)

		events, err = s.GetEventsByRange(ctx, "owner-1", initDate, initDate.AddDate(0, 0, 7))
		require.NoError(t, err)
		require.Len(t, events, 7)

		events, err = s.GetEventsByRange(ctx, "other-owner", initDate, initDate.AddDate(0, 0, 7))
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("incorrect time rejected", func(t *testing.T) {
		s := createStorage(t)
		initDate := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
		e := storage.Event{OwnerID: "owner-1", Title: "x", StartTime: initDate.Add(time.Hour), EndTime: initDate}
		require.ErrorIs(t, s.AddEvent(ctx, &e), storage.ErrIncorrectEventTime)
	})
}

func TestReminders(t *testing.T) {
	ctx := context.Background()

	addEvent := func(t *testing.T, s *sqlstorage.Storage) storage.Event {
		t.Helper()
		initDate := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
		e := storage.Event{
			OwnerID:   "owner-1",
			Title:     "Client call",
			StartTime: initDate.Add(time.Hour),
			EndTime:   initDate.Add(2 * time.Hour),
		}
		require.NoError(t, s.AddEvent(ctx, &e))
		return e
	}

	t.Run("upsert is keyed by event and offset", func(t *testing.T) {
		s := createStorage(t)
		e := addEvent(t, s)
		r := storage.Reminder{
			OwnerID: e.OwnerID, EventID: e.ID, EventTitle: e.Title,
			FireAt: e.StartTime.Add(-time.Hour), OffsetMinutes: 60,
		}
		require.NoError(t, s.UpsertReminder(ctx, &r))
		firstID := r.ID

		r2 := r
		r2.ID = ""
		r2.FireAt = r.FireAt.Add(30 * time.Minute)
		require.NoError(t, s.UpsertReminder(ctx, &r2))
		require.Equal(t, firstID, r2.ID)

		reminders, err := s.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		require.True(t, r2.FireAt.Equal(reminders[0].FireAt))
	})

	t.Run("mark sent wins exactly once", func(t *testing.T) {
		s := createStorage(t)
		e := addEvent(t, s)
		r := storage.Reminder{
			OwnerID: e.OwnerID, EventID: e.ID, EventTitle: e.Title,
			FireAt: e.StartTime.Add(-time.Hour), OffsetMinutes: 60,
		}
		require.NoError(t, s.UpsertReminder(ctx, &r))

		sentAt := time.Now().UTC()
		won, err := s.MarkReminderSent(ctx, r.ID, sentAt)
		require.NoError(t, err)
		require.True(t, won)

		won, err = s.MarkReminderSent(ctx, r.ID, sentAt.Add(time.Minute))
		require.NoError(t, err)
		require.False(t, won)

		_, err = s.MarkReminderSent(ctx, "___not_exists___", sentAt)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("upsert does not revive a sent reminder", func(t *testing.T) {
		s := createStorage(t)
		e := addEvent(t, s)
		r := storage.Reminder{
			OwnerID: e.OwnerID, EventID: e.ID, EventTitle: e.Title,
			FireAt: e.StartTime.Add(-time.Hour), OffsetMinutes: 60,
		}
		require.NoError(t, s.UpsertReminder(ctx, &r))
		won, err := s.MarkReminderSent(ctx, r.ID, time.Now().UTC())
		require.NoError(t, err)
		require.True(t, won)

		r2 := r
		r2.ID = ""
		r2.FireAt = r.FireAt.Add(30 * time.Minute)
		require.NoError(t, s.UpsertReminder(ctx, &r2))
		require.Equal(t, r.ID, r2.ID)
		require.Equal(t, storage.ReminderSent, r2.Status)

		reminders, err := s.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		require.True(t, r.FireAt.Equal(reminders[0].FireAt))
	})

	t.Run("due and stale queries", func(t *testing.T) {
		s := createStorage(t)
		e := addEvent(t, s)
		for _, offset := range []int32{60, 30, 5} {
			r := storage.Reminder{
				OwnerID: e.OwnerID, EventID: e.ID, EventTitle: e.Title,
				FireAt:        e.StartTime.Add(-time.Duration(offset) * time.Minute),
				OffsetMinutes: offset,
			}
			require.NoError(t, s.UpsertReminder(ctx, &r))
		}

		due, err := s.DueReminders(ctx, e.StartTime.Add(-30*time.Minute))
		require.NoError(t, err)
		require.Len(t, due, 2)

		require.NoError(t, s.RemoveStaleReminders(ctx, e.ID, []int32{60}))
		reminders, err := s.GetEventReminders(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		require.Equal(t, int32(60), reminders[0].OffsetMinutes)
	})
}

func TestZonesAndProperties(t *testing.T) {
	ctx := context.Background()

	t.Run("property lifecycle", func(t *testing.T) {
		s := createStorage(t)
		z := storage.Zone{OwnerID: "owner-1", Name: "Downtown"}
		require.NoError(t, s.AddZone(ctx, &z))

		p := storage.Property{
			ZoneID: z.ID, OwnerID: "owner-1",
			Location: "Avenida Central 12", Status: storage.StatusForSale,
			Price: 250000, Currency: "EUR", OwnerName: "Maria Lopez",
		}
		require.NoError(t, s.AddProperty(ctx, &p))
		require.NotEmpty(t, p.ID)

		require.NoError(t, s.SetPropertyStatus(ctx, "owner-1", z.ID, p.ID, storage.StatusSold))
		require.NoError(t, s.ArchiveProperty(ctx, "owner-1", z.ID, p.ID))

		got, err := s.GetProperty(ctx, "owner-1", z.ID, p.ID)
		require.NoError(t, err)
		require.Equal(t, storage.StatusSold, got.Status)
		require.True(t, got.Archived)
	})

	t.Run("preset property id is honored", func(t *testing.T) {
		s := createStorage(t)
		z := storage.Zone{OwnerID: "owner-1", Name: "Downtown"}
		require.NoError(t, s.AddZone(ctx, &z))

		id := uuid.NewString()
		p := storage.Property{
			ID: id, ZoneID: z.ID, OwnerID: "owner-1",
			Location: "Calle Norte 4", Status: storage.StatusForRent,
		}
		require.NoError(t, s.AddProperty(ctx, &p))
		require.Equal(t, id, p.ID)

		dup := storage.Property{
			ID: id, ZoneID: z.ID, OwnerID: "owner-1",
			Location: "Calle Norte 4", Status: storage.StatusForRent,
		}
		require.ErrorIs(t, s.AddProperty(ctx, &dup), storage.ErrDuplicateID)
	})

	t.Run("zone removal", func(t *testing.T) {
		s := createStorage(t)
		z := storage.Zone{OwnerID: "owner-1", Name: "Suburbs"}
		require.NoError(t, s.AddZone(ctx, &z))
		require.NoError(t, s.RemoveZone(ctx, "owner-1", z.ID))
		require.ErrorIs(t, s.RemoveZone(ctx, "owner-1", z.ID), storage.ErrNotFound)
	})
}

func TestUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("email is unique case-insensitively", func(t *testing.T) {
		s := createStorage(t)
		u := storage.User{Email: "agent@example.com", PasswordHash: "hash"}
		require.NoError(t, s.AddUser(ctx, &u))

		dup := storage.User{Email: "Agent@Example.com", PasswordHash: "hash"}
		require.ErrorIs(t, s.AddUser(ctx, &dup), storage.ErrDuplicateEmail)

		got, err := s.GetUserByEmail(ctx, "AGENT@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})
}

func cleanupDb() error {
	db, err := sqlx.Connect(
		"postgres",
		fmt.Sprintf("sslmode=disable host=%s port=%d dbname=%s user=%s password=%s", host, port, database, username, password),
	)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("TRUNCATE TABLE reminders, notifications, events, properties, zones, users")
	return err
}

func compareEvents(t *testing.T, expected storage.Event, actual storage.Event) {
	t.Helper()
	require.True(t, expected.StartTime.Equal(actual.StartTime))
	require.True(t, expected.EndTime.Equal(actual.EndTime))
	require.Equal(t, expected.Title, actual.Title)
	require.Equal(t, expected.OwnerID, actual.OwnerID)
	require.ElementsMatch(t, expected.ReminderOffsets, actual.ReminderOffsets)
}

func createStorage(t *testing.T) *sqlstorage.Storage {
	t.Helper()
	s := sqlstorage.New(sqlstorage.Config{
		Host: host, Port: port, Database: database, Username: username, Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() {
		s.Close(context.Background())
		require.NoError(t, cleanupDb())
	})
	return s
}
