package availability

import (
	"context"
	"fmt"
	"time"

	"slotwise/models"
	"slotwise/services/intervals"

	"go.uber.org/zap"
)

// CheckRequest asks whether one exact interval is still bookable.
type CheckRequest struct {
	Interval models.Interval
	// IgnoreBookingID excludes a booking from conflict and limit checks,
	// used when moving that booking.
	IgnoreBookingID string
	// MaxAge forces a calendar refresh for cache entries older than this.
	MaxAge time.Duration
}

type CheckResult struct {
	Degraded bool
}

// CheckInterval re-runs the working hours, busy time, buffer and daily limit
// rules for a single interval. Every calendar must answer; stale data is
// accepted and reported. A conflict yields ErrSlotNoLongerAvailable.
func (e *Engine) CheckInterval(ctx context.Context, hr *HostRules, req CheckRequest) (CheckResult, error) {
	iv := req.Interval
	if err := iv.Validate(); err != nil {
		return CheckResult{}, err
	}
	rules := hr.EventType.Rules
	if iv.Duration() != rules.Duration() {
		return CheckResult{}, models.NewValidationError("interval",
			fmt.Sprintf("must last exactly %d minutes", rules.DurationMinutes))
	}
	earliest, latest := bookingWindowBounds(rules.BookingWindow, hr.Location)
	if (!earliest.IsZero() && iv.Start.Before(earliest)) || (!latest.IsZero() && !iv.Start.Before(latest)) {
		return CheckResult{}, models.NewValidationError("interval", "outside the booking window")
	}
	if iv.Start.Before(e.now().Add(rules.MinimumNotice())) {
		return CheckResult{}, unavailable("inside the minimum notice period")
	}

	day := hostDays(models.Interval{Start: iv.Start, End: iv.Start.Add(time.Nanosecond)}, hr.Location)[0]
	date := day.Start.In(hr.Location)
	var working *models.Interval
	for _, r := range hr.Schedule.RangesFor(date) {
		wr := workingInterval(date, r, hr.Location)
		if wr.Contains(iv) {
			working = &wr
			break
		}
	}
	if working == nil {
		return CheckResult{}, unavailable("outside working hours")
	}
	if iv.Start.Sub(working.Start)%rules.SlotInterval() != 0 {
		return CheckResult{}, models.NewValidationError("interval", "does not start on a slot boundary")
	}

	pad := rules.BufferBefore() + rules.BufferAfter()
	span := models.Interval{Start: iv.Start.Add(-pad), End: iv.End.Add(pad)}
	busy, err := e.collectBusy(ctx, hr, span, busyOptions{maxAge: req.MaxAge, ignoreBookingID: req.IgnoreBookingID})
	if err != nil {
		return CheckResult{}, err
	}
	if busy.degraded {
		e.logger.Warn("validating reservation against stale calendar data",
			zap.String("hostID", hr.HostID), zap.Stringer("interval", iv), zap.Strings("warnings", busy.warnings))
	}
	blocked := intervals.Expand(busy.set, rules.BufferAfter(), rules.BufferBefore())
	if intervals.Overlapping(blocked, iv) {
		return CheckResult{}, unavailable("conflicts with busy time")
	}

	if rules.MaxBookingsPerDay != nil {
		n, err := e.bookings.CountForHostOnDay(ctx, hr.HostID, day, req.IgnoreBookingID)
		if err != nil {
			return CheckResult{}, fmt.Errorf("count bookings: %w", err)
		}
		if n >= *rules.MaxBookingsPerDay {
			return CheckResult{}, unavailable("daily booking limit reached")
		}
	}
	return CheckResult{Degraded: busy.degraded}, nil
}

func unavailable(reason string) error {
	return fmt.Errorf("%s: %w", reason, models.ErrSlotNoLongerAvailable)
}
