package bookingRepo

import (
	"context"
	"time"

	"slotwise/models"
)

// Store persists bookings and the idempotency records that produced them.
// Every method is safe for concurrent use.
type Store interface {
	// Create inserts a booking together with its idempotency record (may be nil)
	// as one atomic write. A live record with the same host and key yields
	// ErrDuplicateReservation.
	Create(ctx context.Context, b *models.Booking, idem *models.IdempotencyRecord) error
	Get(ctx context.Context, id string) (*models.Booking, error)
	// Transition replaces the stored booking with b, provided the stored state
	// is still from. ErrInvalidTransition otherwise.
	Transition(ctx context.Context, b *models.Booking, from models.BookingState) error
	// Reschedule marks original as rescheduled and inserts replacement in one
	// atomic write. original must still be confirmed in the store.
	Reschedule(ctx context.Context, original, replacement *models.Booking, idem *models.IdempotencyRecord) error
	// ListActiveForHost returns pending and confirmed bookings overlapping window.
	ListActiveForHost(ctx context.Context, hostID string, window models.Interval) ([]models.Booking, error)
	// CountForHostOnDay counts pending and confirmed bookings starting inside day,
	// skipping excludeID.
	CountForHostOnDay(ctx context.Context, hostID string, day models.Interval, excludeID string) (int, error)
	// FindIdempotency returns the unexpired record for (hostID, key) or ErrNotFound.
	FindIdempotency(ctx context.Context, hostID, key string, now time.Time) (*models.IdempotencyRecord, error)
}

var activeStates = []models.BookingState{models.BookingPending, models.BookingConfirmed}
