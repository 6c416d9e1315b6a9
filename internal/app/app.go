package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elitestate/estate-server/internal/scheduler"
	"github.com/elitestate/estate-server/internal/storage"
	"github.com/elitestate/estate-server/internal/util"
	"github.com/go-playground/validator/v10"
)

var ErrValidation = errors.New("validation failed")

type App struct {
	Storage   storage.Storage
	Reminders *scheduler.Scheduler
	validate  *validator.Validate

	firstWeekDay time.Weekday
}

func New(st storage.Storage, reminders *scheduler.Scheduler) *App {
	return &App{
		Storage:      st,
		Reminders:    reminders,
		validate:     validator.New(),
		firstWeekDay: time.Monday,
	}
}

type ZoneRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

type PropertyRequest struct {
	Location    string  `json:"location" validate:"required,max=256"`
	Description string  `json:"description" validate:"max=4096"`
	Status      string  `json:"status" validate:"required,oneof=for_sale for_rent sold rented"`
	Type        string  `json:"type" validate:"max=64"`
	Price       float64 `json:"price" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"max=8"`
	OwnerName   string  `json:"ownerName" validate:"max=256"`
	AreaM2      float64 `json:"areaM2" validate:"gte=0"`
	Furnished   bool    `json:"furnished"`
	ImageURL    string  `json:"imageUrl" validate:"omitempty,url"`
}

type EventRequest struct {
	Title           string    `json:"title" validate:"required,max=256"`
	Description     string    `json:"description" validate:"max=4096"`
	Attendees       string    `json:"attendees" validate:"max=1024"`
	StartTime       time.Time `json:"startTime" validate:"required"`
	EndTime         time.Time `json:"endTime" validate:"required"`
	ReminderOffsets []int32   `json:"reminderOffsets" validate:"dive,gt=0"`
}

func (a *App) checkStruct(req interface{}) error {
	if err := a.validate.Struct(req); err != nil {
		return fmt.Errorf("%s: %w", err, ErrValidation)
	}
	return nil
}

func (a *App) CreateZone(ctx context.Context, ownerID string, req ZoneRequest) (storage.Zone, error) {
	if err := a.checkStruct(req); err != nil {
		return storage.Zone{}, err
	}
	z := storage.Zone{OwnerID: ownerID, Name: req.Name}
	if err := a.Storage.AddZone(ctx, &z); err != nil {
		return storage.Zone{}, err
	}
	return z, nil
}

func (a *App) Zones(ctx context.Context, ownerID string) ([]storage.Zone, error) {
	return a.Storage.GetZones(ctx, ownerID)
}

func (a *App) RenameZone(ctx context.Context, ownerID string, id string, req ZoneRequest) error {
	if err := a.checkStruct(req); err != nil {
		return err
	}
	return a.Storage.RenameZone(ctx, ownerID, id, req.Name)
}

// DeleteZone refuses to delete a zone that still has unarchived properties;
// properties are never cascaded.
func (a *App) DeleteZone(ctx context.Context, ownerID string, id string) error {
	props, err := a.Storage.GetProperties(ctx, ownerID, id)
	if err != nil {
		return err
	}
	for _, p := range props {
		if !p.Archived {
			return fmt.Errorf("zone %q: %w", id, storage.ErrZoneNotEmpty)
		}
	}
	return a.Storage.RemoveZone(ctx, ownerID, id)
}

func (a *App) CreateProperty(ctx context.Context, ownerID string, zoneID string, req PropertyRequest) (storage.Property, error) {
	if err := a.checkStruct(req); err != nil {
		return storage.Property{}, err
	}
	p := propertyFromRequest(req)
	p.ZoneID = zoneID
	p.OwnerID = ownerID
	if err := a.Storage.AddProperty(ctx, &p); err != nil {
		return storage.Property{}, err
	}
	return p, nil
}

func (a *App) Properties(ctx context.Context, ownerID string, zoneID string) ([]storage.Property, error) {
	return a.Storage.GetProperties(ctx, ownerID, zoneID)
}

func (a *App) Property(ctx context.Context, ownerID string, zoneID string, id string) (storage.Property, error) {
	return a.Storage.GetProperty(ctx, ownerID, zoneID, id)
}

func (a *App) UpdateProperty(ctx context.Context, ownerID string, zoneID string, id string, req PropertyRequest) error {
	if err := a.checkStruct(req); err != nil {
		return err
	}
	old, err := a.Storage.GetProperty(ctx, ownerID, zoneID, id)
	if err != nil {
		return err
	}
	p := propertyFromRequest(req)
	p.Archived = old.Archived
	return a.Storage.UpdateProperty(ctx, ownerID, zoneID, id, p)
}

func (a *App) SetPropertyStatus(ctx context.Context, ownerID string, zoneID string, id string, status string) error {
	switch storage.PropertyStatus(status) {
	case storage.StatusForSale, storage.StatusForRent, storage.StatusSold, storage.StatusRented:
	default:
		return fmt.Errorf("unknown property status %q: %w", status, ErrValidation)
	}
	return a.Storage.SetPropertyStatus(ctx, ownerID, zoneID, id, storage.PropertyStatus(status))
}

func (a *App) ArchiveProperty(ctx context.Context, ownerID string, zoneID string, id string) error {
	return a.Storage.ArchiveProperty(ctx, ownerID, zoneID, id)
}

// SearchProperties filters the owner's unarchived properties by
// case-insensitive substring on location and owner name. Empty filters
// match everything.
func (a *App) SearchProperties(ctx context.Context, ownerID string, location string, ownerName string) ([]storage.Property, error) {
	props, err := a.Storage.GetAllProperties(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	location = strings.ToLower(location)
	ownerName = strings.ToLower(ownerName)
	matched := make([]storage.Property, 0)
	for _, p := range props {
		if p.Archived {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(p.Location), location) {
			continue
		}
		if ownerName != "" && !strings.Contains(strings.ToLower(p.OwnerName), ownerName) {
			continue
		}
		matched = append(matched, p)
	}
	return matched, nil
}

func (a *App) CreateEvent(ctx context.Context, ownerID string, req EventRequest) (storage.Event, error) {
	if err := a.checkEventRequest(req); err != nil {
		return storage.Event{}, err
	}
	e := eventFromRequest(req)
	e.OwnerID = ownerID
	if err := a.Storage.AddEvent(ctx, &e); err != nil {
		return storage.Event{}, err
	}
	if err := a.Reminders.SyncEvent(ctx, e); err != nil {
		return storage.Event{}, err
	}
	return e, nil
}

func (a *App) UpdateEvent(ctx context.Context, ownerID string, id string, req EventRequest) (storage.Event, error) {
	if err := a.checkEventRequest(req); err != nil {
		return storage.Event{}, err
	}
	e := eventFromRequest(req)
	if err := a.Storage.UpdateEvent(ctx, ownerID, id, e); err != nil {
		return storage.Event{}, err
	}
	updated, err := a.Storage.GetEvent(ctx, ownerID, id)
	if err != nil {
		return storage.Event{}, err
	}
	// Re-derivation: pending reminders move to the new fire times, removed
	// offsets are pruned, nothing fires at the old schedule.
	if err := a.Reminders.SyncEvent(ctx, updated); err != nil {
		return storage.Event{}, err
	}
	return updated, nil
}

// DeleteEvent removes the event and all of its reminders, pending and sent.
func (a *App) DeleteEvent(ctx context.Context, ownerID string, id string) error {
	if err := a.Storage.RemoveEvent(ctx, ownerID, id); err != nil {
		return err
	}
	return a.Reminders.DropEvent(ctx, id)
}

func (a *App) checkEventRequest(req EventRequest) error {
	if err := a.checkStruct(req); err != nil {
		return err
	}
	if !req.EndTime.After(req.StartTime) {
		return fmt.Errorf("event end time should be after start time: %w", ErrValidation)
	}
	seen := make(map[int32]struct{}, len(req.ReminderOffsets))
	for _, o := range req.ReminderOffsets {
		if _, ok := seen[o]; ok {
			return fmt.Errorf("duplicate reminder offset %d: %w", o, ErrValidation)
		}
		seen[o] = struct{}{}
	}
	return nil
}

func (a *App) EventsForRange(ctx context.Context, ownerID string, from time.Time, to time.Time) ([]storage.Event, error) {
	return a.Storage.GetEventsByRange(ctx, ownerID, from, to)
}

func (a *App) EventsForDay(ctx context.Context, ownerID string, date time.Time) ([]storage.Event, error) {
	start := util.TruncateToDay(date)
	return a.Storage.GetEventsByRange(ctx, ownerID, start, start.Add(24*time.Hour))
}

func (a *App) EventsForWeek(ctx context.Context, ownerID string, startDate time.Time) ([]storage.Event, error) {
	start := util.TruncateToDay(startDate)
	if start.Weekday() != a.firstWeekDay {
		return nil, storage.ErrIncorrectStartDate
	}
	return a.Storage.GetEventsByRange(ctx, ownerID, start, start.AddDate(0, 0, 7))
}

func (a *App) EventsForMonth(ctx context.Context, ownerID string, startDate time.Time) ([]storage.Event, error) {
	start := util.TruncateToDay(startDate)
	if start.Day() != 1 {
		return nil, storage.ErrIncorrectStartDate
	}
	return a.Storage.GetEventsByRange(ctx, ownerID, start, start.AddDate(0, 1, 0))
}

func (a *App) PendingReminders(ctx context.Context, ownerID string) ([]storage.Reminder, error) {
	return a.Storage.PendingReminders(ctx, ownerID)
}

func (a *App) Notifications(ctx context.Context, ownerID string) ([]storage.Notification, error) {
	return a.Storage.GetNotifications(ctx, ownerID)
}

type ZoneStats struct {
	ZoneID     string `json:"zoneId"`
	Name       string `json:"name"`
	Properties int    `json:"properties"`
	ForSale    int    `json:"forSale"`
	ForRent    int    `json:"forRent"`
}

type Stats struct {
	TotalProperties        int         `json:"totalProperties"`
	ForSale                int         `json:"forSale"`
	ForRent                int         `json:"forRent"`
	ZonesWithProperties    int         `json:"zonesWithProperties"`
	ZonesWithoutProperties int         `json:"zonesWithoutProperties"`
	Zones                  []ZoneStats `json:"zones"`
}

// Statistics aggregates the owner's catalog. Archived listings are out of
// the catalog and are not counted.
func (a *App) Statistics(ctx context.Context, ownerID string) (Stats, error) {
	zones, err := a.Storage.GetZones(ctx, ownerID)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Zones: make([]ZoneStats, 0)}
	for _, z := range zones {
		props, err := a.Storage.GetProperties(ctx, ownerID, z.ID)
		if err != nil {
			return Stats{}, err
		}
		zs := ZoneStats{ZoneID: z.ID, Name: z.Name}
		for _, p := range props {
			if p.Archived {
				continue
			}
			zs.Properties++
			switch p.Status {
			case storage.StatusForSale:
				zs.ForSale++
			case storage.StatusForRent:
				zs.ForRent++
			}
		}
		stats.TotalProperties += zs.Properties
		stats.ForSale += zs.ForSale
		stats.ForRent += zs.ForRent
		if zs.Properties > 0 {
			stats.ZonesWithProperties++
			stats.Zones = append(stats.Zones, zs)
		} else {
			stats.ZonesWithoutProperties++
		}
	}
	return stats, nil
}

func propertyFromRequest(req PropertyRequest) storage.Property {
	return storage.Property{
		Location:    req.Location,
		Description: req.Description,
		Status:      storage.PropertyStatus(req.Status),
		Type:        req.Type,
		Price:       req.Price,
		Currency:    req.Currency,
		OwnerName:   req.OwnerName,
		AreaM2:      req.AreaM2,
		Furnished:   req.Furnished,
		ImageURL:    req.ImageURL,
	}
}

func eventFromRequest(req EventRequest) storage.Event {
	return storage.Event{
		Title:           req.Title,
		Description:     req.Description,
		Attendees:       req.Attendees,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		ReminderOffsets: req.ReminderOffsets,
	}
}
