package hostRepo

import (
	"context"

	"slotwise/models"
)

// Directory resolves a host's availability rules and connected calendars.
type Directory interface {
	GetSchedule(ctx context.Context, hostID string) (*models.Schedule, error)
	GetEventType(ctx context.Context, hostID, eventTypeID string) (*models.EventType, error)
	ListCalendars(ctx context.Context, hostID string) ([]models.CalendarRef, error)

	UpsertSchedule(ctx context.Context, s *models.Schedule) error
	UpsertEventType(ctx context.Context, et *models.EventType) error
	// SetCalendars replaces the full list of connected calendars of a host.
	SetCalendars(ctx context.Context, hostID string, refs []models.CalendarRef) error
}

// hostCalendars is the stored form of a host's connected calendars.
type hostCalendars struct {
	HostID    string               `bson:"hostId"`
	Calendars []models.CalendarRef `bson:"calendars"`
}
