package hostRepo

import (
	"context"
	"fmt"
	"sync"

	"slotwise/models"
)

type memoryDirectory struct {
	mu         sync.RWMutex
	schedules  map[string]models.Schedule
	eventTypes map[string]models.EventType // hostID|eventTypeID
	calendars  map[string][]models.CalendarRef
}

// NewMemoryDirectory returns a Directory held in process memory.
func NewMemoryDirectory() Directory {
	return &memoryDirectory{
		schedules:  make(map[string]models.Schedule),
		eventTypes: make(map[string]models.EventType),
		calendars:  make(map[string][]models.CalendarRef),
	}
}

func (d *memoryDirectory) GetSchedule(_ context.Context, hostID string) (*models.Schedule, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.schedules[hostID]
	if !ok {
		return nil, fmt.Errorf("schedule for host %s: %w", hostID, models.ErrNotFound)
	}
	return &s, nil
}

func (d *memoryDirectory) GetEventType(_ context.Context, hostID, eventTypeID string) (*models.EventType, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	et, ok := d.eventTypes[hostID+"|"+eventTypeID]
	if !ok {
		return nil, fmt.Errorf("event type %s of host %s: %w", eventTypeID, hostID, models.ErrNotFound)
	}
	return &et, nil
}

func (d *memoryDirectory) ListCalendars(_ context.Context, hostID string) ([]models.CalendarRef, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	refs := d.calendars[hostID]
	out := make([]models.CalendarRef, len(refs))
	copy(out, refs)
	return out, nil
}

func (d *memoryDirectory) UpsertSchedule(_ context.Context, s *models.Schedule) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schedules[s.HostID] = *s
	return nil
}

func (d *memoryDirectory) UpsertEventType(_ context.Context, et *models.EventType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventTypes[et.HostID+"|"+et.ID] = *et
	return nil
}

func (d *memoryDirectory) SetCalendars(_ context.Context, hostID string, refs []models.CalendarRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.CalendarRef, len(refs))
	copy(out, refs)
	d.calendars[hostID] = out
	return nil
}
