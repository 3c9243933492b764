package availability

import (
	"context"
	"fmt"
	"time"

	"slotwise/models"
)

// HostRules is everything the engine needs to know about one host and event
// type for the duration of a call.
type HostRules struct {
	HostID    string
	Schedule  *models.Schedule
	EventType *models.EventType
	Location  *time.Location
	Calendars []models.CalendarRef
}

// Rules resolves and validates the schedule, event type and calendars of a host.
func (e *Engine) Rules(ctx context.Context, hostID, eventTypeID string) (*HostRules, error) {
	sched, err := e.directory.GetSchedule(ctx, hostID)
	if err != nil {
		return nil, err
	}
	et, err := e.directory.GetEventType(ctx, hostID, eventTypeID)
	if err != nil {
		return nil, err
	}
	if err := et.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("event type %s: %w", eventTypeID, err)
	}
	loc, err := sched.Location()
	if err != nil {
		return nil, err
	}
	cals, err := e.directory.ListCalendars(ctx, hostID)
	if err != nil {
		return nil, err
	}
	return &HostRules{HostID: hostID, Schedule: sched, EventType: et, Location: loc, Calendars: cals}, nil
}

// Days returns the host-local dates touched by iv widened by the event
// type's buffers, in ascending order.
func (hr *HostRules) Days(iv models.Interval) []string {
	rules := hr.EventType.Rules
	widened := models.Interval{Start: iv.Start.Add(-rules.BufferBefore()), End: iv.End.Add(rules.BufferAfter())}
	var out []string
	for _, day := range hostDays(widened, hr.Location) {
		out = append(out, day.Start.In(hr.Location).Format(models.DateLayout))
	}
	return out
}

// bookingWindowBounds converts the booking window dates into instants in
// the host zone: [first midnight, midnight after the last date). Zero means unbounded.
func bookingWindowBounds(w models.BookingWindow, loc *time.Location) (from, to time.Time) {
	earliest, latest, err := w.Parse()
	if err != nil {
		return time.Time{}, time.Time{}
	}
	if !earliest.IsZero() {
		from = time.Date(earliest.Year(), earliest.Month(), earliest.Day(), 0, 0, 0, 0, loc).UTC()
	}
	if !latest.IsZero() {
		to = time.Date(latest.Year(), latest.Month(), latest.Day()+1, 0, 0, 0, 0, loc).UTC()
	}
	return from, to
}

// hostDays splits window into the host-local calendar days it touches. Each
// day runs from local midnight to the next local midnight, so DST days are
// 23 or 25 hours long.
func hostDays(window models.Interval, loc *time.Location) []models.Interval {
	local := window.Start.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	var days []models.Interval
	for midnight.Before(window.End) {
		next := time.Date(midnight.Year(), midnight.Month(), midnight.Day()+1, 0, 0, 0, 0, loc)
		days = append(days, models.Interval{Start: midnight.UTC(), End: next.UTC()})
		midnight = next
	}
	return days
}

// workingInterval places a time-of-day range on a host-local date.
func workingInterval(date time.Time, r models.TimeRange, loc *time.Location) models.Interval {
	y, m, d := date.Date()
	return models.Interval{
		Start: time.Date(y, m, d, 0, r.StartMinute, 0, 0, loc).UTC(),
		End:   time.Date(y, m, d, 0, r.EndMinute, 0, 0, loc).UTC(),
	}
}
