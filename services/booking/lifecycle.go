package booking

import (
	"context"
	"fmt"

	"slotwise/models"
	"slotwise/services/availability"

	"go.uber.org/zap"
)

// Cancel moves a confirmed booking to cancelled.
func (c *Coordinator) Cancel(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	return c.transition(ctx, bookingID, models.BookingCancelled, func(b *models.Booking) {
		b.CancellationReason = reason
	})
}

// Approve confirms a booking that was waiting for the host.
func (c *Coordinator) Approve(ctx context.Context, bookingID string) (*models.Booking, error) {
	return c.transition(ctx, bookingID, models.BookingConfirmed, nil)
}

// Decline rejects a booking that was waiting for the host.
func (c *Coordinator) Decline(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	return c.transition(ctx, bookingID, models.BookingRejected, func(b *models.Booking) {
		b.CancellationReason = reason
	})
}

// transition applies a state change that never claims new time, so it needs
// no host lock; the store's conditional write settles concurrent changes.
func (c *Coordinator) transition(ctx context.Context, bookingID string, to models.BookingState, mutate func(*models.Booking)) (*models.Booking, error) {
	b, err := c.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	from := b.State
	ev, err := b.Transition(to, c.now())
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(b)
	}
	if err := c.commit(ctx, func(ctx context.Context) error {
		return c.store.Transition(ctx, b, from)
	}); err != nil {
		return nil, err
	}

	c.logger.Info("booking transitioned",
		zap.String("bookingID", b.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	c.dispatch([]models.TransitionEvent{ev})
	return b, nil
}

// Reschedule books newInterval for the attendee of a confirmed booking and
// marks the original rescheduled in the same write. On any failure the
// original booking is left confirmed.
func (c *Coordinator) Reschedule(ctx context.Context, bookingID string, newInterval models.Interval) (*models.Booking, error) {
	if err := newInterval.Validate(); err != nil {
		return nil, err
	}
	newInterval = models.Interval{Start: newInterval.Start.UTC(), End: newInterval.End.UTC()}

	original, err := c.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if original.State != models.BookingConfirmed {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, original.State, models.ErrInvalidTransition)
	}
	hr, err := c.engine.Rules(ctx, original.HostID, original.EventTypeID)
	if err != nil {
		return nil, err
	}

	release, err := c.lock(ctx, hr, newInterval)
	if err != nil {
		return nil, err
	}
	replacement, events, err := c.rescheduleLocked(ctx, hr, original, newInterval)
	release()
	if err != nil {
		return nil, err
	}

	c.logger.Info("booking rescheduled",
		zap.String("bookingID", original.ID),
		zap.String("replacementID", replacement.ID),
		zap.Stringer("interval", replacement.Interval))
	c.dispatch(events)
	return replacement, nil
}

func (c *Coordinator) rescheduleLocked(ctx context.Context, hr *availability.HostRules, original *models.Booking, iv models.Interval) (*models.Booking, []models.TransitionEvent, error) {
	if _, err := c.engine.CheckInterval(ctx, hr, availability.CheckRequest{
		Interval:        iv,
		IgnoreBookingID: original.ID,
		MaxAge:          c.cfg.RevalidateAfter,
	}); err != nil {
		return nil, nil, err
	}

	now := c.now()
	replacement, created := c.newBooking(hr, ReserveRequest{
		HostID:      original.HostID,
		EventTypeID: original.EventTypeID,
		Interval:    iv,
		Attendee:    original.Attendee,
	}, now)
	replacement.RescheduledFrom = original.ID

	moved := *original
	ev, err := moved.Transition(models.BookingRescheduled, now)
	if err != nil {
		return nil, nil, err
	}
	moved.RescheduledTo = replacement.ID

	if err := c.commit(ctx, func(ctx context.Context) error {
		return c.store.Reschedule(ctx, &moved, replacement, nil)
	}); err != nil {
		return nil, nil, err
	}
	return replacement, append([]models.TransitionEvent{ev}, created...), nil
}
