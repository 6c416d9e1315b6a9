package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elitestate/estate-server/internal/storage"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

var ErrConnectionFailed = errors.New("failed to connect")

const dbErrUniqueViolation = "23505"

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	host     string
	port     int
	database string
	username string
	password string
	db       *sqlx.DB
}

func New(config Config) *Storage {
	return &Storage{
		host:     config.Host,
		port:     config.Port,
		database: config.Database,
		username: config.Username,
		password: config.Password,
	}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(
		ctx,
		"postgres",
		fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			s.host, s.port, s.database, s.username, s.password),
	)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return ErrConnectionFailed
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) AddUser(ctx context.Context, u *storage.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	var err error
	switch u.ID {
	case "":
		err = s.db.GetContext(
			ctx,
			&u.ID,
			"INSERT INTO users(email, password_hash, email_verified, created_at) "+
				"VALUES(lower($1), $2, $3, $4) RETURNING id",
			u.Email, u.PasswordHash, u.EmailVerified, u.CreatedAt.UTC())
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO users(id, email, password_hash, email_verified, created_at) "+
				"VALUES($1, lower($2), $3, $4, $5)",
			u.ID, u.Email, u.PasswordHash, u.EmailVerified, u.CreatedAt.UTC())
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("email %q already registered: %w", u.Email, storage.ErrDuplicateEmail)
	}
	return err
}

func (s *Storage) GetUser(ctx context.Context, id string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(
		ctx, &u,
		"SELECT id, email, password_hash, email_verified, created_at FROM users WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("user %q: %w", id, storage.ErrNotFound)
	}
	return u, err
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(
		ctx, &u,
		"SELECT id, email, password_hash, email_verified, created_at FROM users WHERE email=lower($1)", email)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("user %q: %w", email, storage.ErrNotFound)
	}
	return u, err
}

func (s *Storage) SetUserVerified(ctx context.Context, id string) error {
	return s.execExpectingRow(ctx,
		"UPDATE users SET email_verified=TRUE WHERE id=$1",
		fmt.Sprintf("user %q", id), id)
}

func (s *Storage) SetUserPassword(ctx context.Context, id string, passwordHash string) error {
	return s.execExpectingRow(ctx,
		"UPDATE users SET password_hash=$2 WHERE id=$1",
		fmt.Sprintf("user %q", id), id, passwordHash)
}

func (s *Storage) AddZone(ctx context.Context, z *storage.Zone) error {
	if z.CreatedAt.IsZero() {
		z.CreatedAt = time.Now()
	}
	var err error
	switch z.ID {
	case "":
		err = s.db.GetContext(
			ctx, &z.ID,
			"INSERT INTO zones(owner_id, name, created_at) VALUES($1, $2, $3) RETURNING id",
			z.OwnerID, z.Name, z.CreatedAt.UTC())
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO zones(id, owner_id, name, created_at) VALUES($1, $2, $3, $4)",
			z.ID, z.OwnerID, z.Name, z.CreatedAt.UTC())
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate ID %q: %w", z.ID, storage.ErrDuplicateID)
	}
	return err
}

func (s *Storage) GetZones(ctx context.Context, ownerID string) ([]storage.Zone, error) {
	zones := make([]storage.Zone, 0)
	err := s.db.SelectContext(
		ctx, &zones,
		"SELECT id, owner_id, name, created_at FROM zones WHERE owner_id=$1", ownerID)
	return zones, err
}

func (s *Storage) GetZone(ctx context.Context, ownerID string, id string) (storage.Zone, error) {
	var z storage.Zone
	err := s.db.GetContext(
		ctx, &z,
		"SELECT id, owner_id, name, created_at FROM zones WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Zone{}, fmt.Errorf("zone %q: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Zone{}, err
	}
	if z.OwnerID != ownerID {
		return storage.Zone{}, fmt.Errorf("zone %q: %w", id, storage.ErrPermissionDenied)
	}
	return z, nil
}

func (s *Storage) RenameZone(ctx context.Context, ownerID string, id string, name string) error {
	if _, err := s.GetZone(ctx, ownerID, id); err != nil {
		return err
	}
	return s.execExpectingRow(ctx,
		"UPDATE zones SET name=$2 WHERE id=$1", fmt.Sprintf("zone %q", id), id, name)
}

// RemoveZone deletes the zone record only; properties are not cascaded.
func (s *Storage) RemoveZone(ctx context.Context, ownerID string, id string) error {
	if _, err := s.GetZone(ctx, ownerID, id); err != nil {
		return err
	}
	return s.execExpectingRow(ctx,
		"DELETE FROM zones WHERE id=$1", fmt.Sprintf("zone %q", id), id)
}

func (s *Storage) AddProperty(ctx context.Context, p *storage.Property) error {
	if _, err := s.GetZone(ctx, p.OwnerID, p.ZoneID); err != nil {
		return err
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	var err error
	switch p.ID {
	case "":
		err = s.db.GetContext(
			ctx, &p.ID,
			"INSERT INTO properties(zone_id, owner_id, location, description, status, property_type, price, "+
				"currency, owner_name, area_m2, furnished, image_url, archived, created_at, updated_at) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id",
			p.ZoneID, p.OwnerID, p.Location, p.Description, p.Status, p.Type, p.Price,
			p.Currency, p.OwnerName, p.AreaM2, p.Furnished, p.ImageURL, p.Archived,
			p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO properties(id, zone_id, owner_id, location, description, status, property_type, price, "+
				"currency, owner_name, area_m2, furnished, image_url, archived, created_at, updated_at) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)",
			p.ID, p.ZoneID, p.OwnerID, p.Location, p.Description, p.Status, p.Type, p.Price,
			p.Currency, p.OwnerName, p.AreaM2, p.Furnished, p.ImageURL, p.Archived,
			p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate ID %q: %w", p.ID, storage.ErrDuplicateID)
	}
	return err
}

const propertyColumns = "id, zone_id, owner_id, location, description, status, property_type, price, " +
	"currency, owner_name, area_m2, furnished, image_url, archived, created_at, updated_at"

func (s *Storage) GetProperties(ctx context.Context, ownerID string, zoneID string) ([]storage.Property, error) {
	if _, err := s.GetZone(ctx, ownerID, zoneID); err != nil {
		return nil, err
	}
	props := make([]storage.Property, 0)
	err := s.db.SelectContext(
		ctx, &props,
		"SELECT "+propertyColumns+" FROM properties WHERE zone_id=$1", zoneID)
	return props, err
}

func (s *Storage) GetAllProperties(ctx context.Context, ownerID string) ([]storage.Property, error) {
	props := make([]storage.Property, 0)
	err := s.db.SelectContext(
		ctx, &props,
		"SELECT "+propertyColumns+" FROM properties "+
			"WHERE owner_id=$1 AND zone_id IN (SELECT id FROM zones WHERE owner_id=$1)", ownerID)
	return props, err
}

func (s *Storage) GetProperty(ctx context.Context, ownerID string, zoneID string, id string) (storage.Property, error) {
	if _, err := s.GetZone(ctx, ownerID, zoneID); err != nil {
		return storage.Property{}, err
	}
	var p storage.Property
	err := s.db.GetContext(
		ctx, &p,
		"SELECT "+propertyColumns+" FROM properties WHERE id=$1 AND zone_id=$2", id, zoneID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Property{}, fmt.Errorf("property %q: %w", id, storage.ErrNotFound)
	}
	return p, err
}

func (s *Storage) UpdateProperty(ctx context.Context, ownerID string, zoneID string, id string, p storage.Property) error {
	if _, err := s.GetZone(ctx, ownerID, zoneID); err != nil {
		return err
	}
	return s.execExpectingRow(ctx,
		"UPDATE properties SET location=$3, description=$4, status=$5, property_type=$6, price=$7, "+
			"currency=$8, owner_name=$9, area_m2=$10, furnished=$11, image_url=$12, archived=$13, updated_at=$14 "+
			"WHERE id=$1 AND zone_id=$2",
		fmt.Sprintf("property %q", id),
		id, zoneID, p.Location, p.Description, p.Status, p.Type, p.Price,
		p.Currency, p.OwnerName, p.AreaM2, p.Furnished, p.ImageURL, p.Archived, time.Now().UTC())
}

func (s *Storage) SetPropertyStatus(ctx context.Context, ownerID string, zoneID string, id string, status storage.PropertyStatus) error {
	if _, err := s.GetZone(ctx, ownerID, zoneID); err != nil {
		return err
	}
	return s.execExpectingRow(ctx,
		"UPDATE properties SET status=$3, updated_at=$4 WHERE id=$1 AND zone_id=$2",
		fmt.Sprintf("property %q", id), id, zoneID, status, time.Now().UTC())
}

func (s *Storage) ArchiveProperty(ctx context.Context, ownerID string, zoneID string, id string) error {
	if _, err := s.GetZone(ctx, ownerID, zoneID); err != nil {
		return err
	}
	return s.execExpectingRow(ctx,
		"UPDATE properties SET archived=TRUE, updated_at=$3 WHERE id=$1 AND zone_id=$2",
		fmt.Sprintf("property %q", id), id, zoneID, time.Now().UTC())
}

type eventRow struct {
	storage.Event
	Offsets pq.Int32Array `db:"reminder_offsets"`
}

const eventColumns = "id, owner_id, title, description, attendees, start_timestamp, end_timestamp, " +
	"reminder_offsets, created_at, updated_at"

func (r eventRow) toEvent() storage.Event {
	e := r.Event
	e.ReminderOffsets = []int32(r.Offsets)
	return e
}

func (s *Storage) AddEvent(ctx context.Context, e *storage.Event) error {
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("event end time should be after start time: %w", storage.ErrIncorrectEventTime)
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	var err error
	switch e.ID {
	case "":
		err = s.db.GetContext(
			ctx, &e.ID,
			"INSERT INTO events(owner_id, title, description, attendees, start_timestamp, end_timestamp, "+
				"reminder_offsets, created_at, updated_at) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id",
			e.OwnerID, e.Title, e.Description, e.Attendees, e.StartTime.UTC(), e.EndTime.UTC(),
			pq.Int32Array(e.ReminderOffsets), e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO events(id, owner_id, title, description, attendees, start_timestamp, end_timestamp, "+
				"reminder_offsets, created_at, updated_at) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
			e.ID, e.OwnerID, e.Title, e.Description, e.Attendees, e.StartTime.UTC(), e.EndTime.UTC(),
			pq.Int32Array(e.ReminderOffsets), e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateID)
	}
	return err
}

func (s *Storage) GetEvent(ctx context.Context, ownerID string, id string) (storage.Event, error) {
	var row eventRow
	err := s.db.GetContext(
		ctx, &row,
		"SELECT "+eventColumns+" FROM events WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Event{}, fmt.Errorf("event %q: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Event{}, err
	}
	if row.OwnerID != ownerID {
		return storage.Event{}, fmt.Errorf("event %q: %w", id, storage.ErrPermissionDenied)
	}
	return row.toEvent(), nil
}

func (s *Storage) UpdateEvent(ctx context.Context, ownerID string, id string, e storage.Event) error {
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("event end time should be after start time: %w", storage.ErrIncorrectEventTime)
	}
	if _, err := s.GetEvent(ctx, ownerID, id); err != nil {
		return err
	}
	return s.execExpectingRow(ctx,
		"UPDATE events SET title=$2, description=$3, attendees=$4, start_timestamp=$5, end_timestamp=$6, "+
			"reminder_offsets=$7, updated_at=$8 WHERE id=$1",
		fmt.Sprintf("event %q", id),
		id, e.Title, e.Description, e.Attendees, e.StartTime.UTC(), e.EndTime.UTC(),
		pq.Int32Array(e.ReminderOffsets), time.Now().UTC())
}

func (s *Storage) RemoveEvent(ctx context.Context, ownerID string, id string) error {
	if _, err := s.GetEvent(ctx, ownerID, id); err != nil {
		return err
	}
	return s.execExpectingRow(ctx,
		"DELETE FROM events WHERE id=$1", fmt.Sprintf("event %q", id), id)
}

// Select in range [from:to).
func (s *Storage) GetEventsByRange(ctx context.Context, ownerID string, from time.Time, to time.Time) ([]storage.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(
		ctx, &rows,
		"SELECT "+eventColumns+" FROM events "+
			"WHERE owner_id=$1 AND start_timestamp>=$2 AND start_timestamp<$3",
		ownerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return toEvents(rows), nil
}

func (s *Storage) GetEventsAfter(ctx context.Context, after time.Time) ([]storage.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(
		ctx, &rows,
		"SELECT "+eventColumns+" FROM events WHERE start_timestamp>$1", after.UTC())
	if err != nil {
		return nil, err
	}
	return toEvents(rows), nil
}

func (s *Storage) RemoveEventsBefore(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM reminders WHERE event_id IN (SELECT id FROM events WHERE end_timestamp<$1)", t.UTC())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM events WHERE end_timestamp<$1", t.UTC())
	return err
}

func (s *Storage) UpsertReminder(ctx context.Context, r *storage.Reminder) error {
	if r.Status == "" {
		r.Status = storage.ReminderPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	err := s.db.GetContext(
		ctx, r,
		"INSERT INTO reminders(owner_id, event_id, event_title, fire_at, offset_minutes, status, created_at) "+
			"VALUES($1, $2, $3, $4, $5, $6, $7) "+
			"ON CONFLICT (event_id, offset_minutes) DO UPDATE "+
			"SET fire_at=EXCLUDED.fire_at, event_title=EXCLUDED.event_title "+
			"WHERE reminders.status='pending' "+
			"RETURNING id, owner_id, event_id, event_title, fire_at, offset_minutes, status, created_at, sent_at",
		r.OwnerID, r.EventID, r.EventTitle, r.FireAt.UTC(), r.OffsetMinutes, r.Status, r.CreatedAt.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict with a sent reminder: the upsert is a no-op, read it back.
		return s.db.GetContext(
			ctx, r,
			"SELECT id, owner_id, event_id, event_title, fire_at, offset_minutes, status, created_at, sent_at "+
				"FROM reminders WHERE event_id=$1 AND offset_minutes=$2",
			r.EventID, r.OffsetMinutes)
	}
	return err
}

const reminderColumns = "id, owner_id, event_id, event_title, fire_at, offset_minutes, status, created_at, sent_at"

func (s *Storage) GetEventReminders(ctx context.Context, eventID string) ([]storage.Reminder, error) {
	reminders := make([]storage.Reminder, 0)
	err := s.db.SelectContext(
		ctx, &reminders,
		"SELECT "+reminderColumns+" FROM reminders WHERE event_id=$1", eventID)
	return reminders, err
}

func (s *Storage) PendingReminders(ctx context.Context, ownerID string) ([]storage.Reminder, error) {
	reminders := make([]storage.Reminder, 0)
	err := s.db.SelectContext(
		ctx, &reminders,
		"SELECT "+reminderColumns+" FROM reminders WHERE owner_id=$1 AND status='pending'", ownerID)
	return reminders, err
}

func (s *Storage) DueReminders(ctx context.Context, now time.Time) ([]storage.Reminder, error) {
	reminders := make([]storage.Reminder, 0)
	err := s.db.SelectContext(
		ctx, &reminders,
		"SELECT "+reminderColumns+" FROM reminders WHERE status='pending' AND fire_at<=$1", now.UTC())
	return reminders, err
}

// MarkReminderSent reports whether this call performed the pending->sent
// transition. The WHERE clause is the compare-and-set that keeps the
// transition single-shot under concurrent senders.
func (s *Storage) MarkReminderSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reminders SET status='sent', sent_at=$2 WHERE id=$1 AND status='pending'",
		id, sentAt.UTC())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}
	var exists bool
	err = s.db.GetContext(ctx, &exists, "SELECT TRUE FROM reminders WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("reminder %q: %w", id, storage.ErrNotFound)
	}
	return false, err
}

func (s *Storage) RemoveEventReminders(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reminders WHERE event_id=$1", eventID)
	return err
}

// RemoveStaleReminders drops pending reminders of the event whose offset is
// no longer in keepOffsets. Sent reminders are kept as history.
func (s *Storage) RemoveStaleReminders(ctx context.Context, eventID string, keepOffsets []int32) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM reminders WHERE event_id=$1 AND status='pending' AND NOT (offset_minutes = ANY($2))",
		eventID, pq.Int32Array(keepOffsets))
	return err
}

func (s *Storage) AddNotification(ctx context.Context, n *storage.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	err := s.db.GetContext(
		ctx, &n.ID,
		"INSERT INTO notifications(owner_id, title, body, dedupe_key, created_at) "+
			"VALUES($1, $2, $3, $4, $5) RETURNING id",
		n.OwnerID, n.Title, n.Body, n.DedupeKey, n.CreatedAt.UTC())
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate dedupe key %q: %w", n.DedupeKey, storage.ErrDuplicateID)
	}
	return err
}

func (s *Storage) GetNotifications(ctx context.Context, ownerID string) ([]storage.Notification, error) {
	notifications := make([]storage.Notification, 0)
	err := s.db.SelectContext(
		ctx, &notifications,
		"SELECT id, owner_id, title, body, dedupe_key, created_at "+
			"FROM notifications WHERE owner_id=$1 ORDER BY created_at DESC", ownerID)
	return notifications, err
}

func toEvents(rows []eventRow) []storage.Event {
	events := make([]storage.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toEvent())
	}
	return events
}

func (s *Storage) execExpectingRow(ctx context.Context, query string, subject string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", subject, storage.ErrNotFound)
	}
	return nil
}
