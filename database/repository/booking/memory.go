package bookingRepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"slotwise/models"
)

type memoryStore struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
	idem     map[string]models.IdempotencyRecord // hostID|key
}

// NewMemoryStore returns a Store kept in process memory.
func NewMemoryStore() Store {
	return &memoryStore{
		bookings: make(map[string]models.Booking),
		idem:     make(map[string]models.IdempotencyRecord),
	}
}

func idemKey(hostID, key string) string {
	return hostID + "|" + key
}

func (s *memoryStore) Create(ctx context.Context, b *models.Booking, idem *models.IdempotencyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(b, idem)
}

func (s *memoryStore) insertLocked(b *models.Booking, idem *models.IdempotencyRecord) error {
	if _, exists := s.bookings[b.ID]; exists {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	if idem != nil {
		k := idemKey(idem.HostID, idem.Key)
		if rec, ok := s.idem[k]; ok && rec.ExpiresAt.After(idem.CreatedAt) {
			return fmt.Errorf("idempotency key %q: %w", idem.Key, models.ErrDuplicateReservation)
		}
		s.idem[k] = *idem
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	return &b, nil
}

func (s *memoryStore) Transition(ctx context.Context, b *models.Booking, from models.BookingState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.bookings[b.ID]
	if !ok {
		return fmt.Errorf("booking %s: %w", b.ID, models.ErrNotFound)
	}
	if current.State != from {
		return fmt.Errorf("booking %s is %s, expected %s: %w", b.ID, current.State, from, models.ErrInvalidTransition)
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *memoryStore) Reschedule(ctx context.Context, original, replacement *models.Booking, idem *models.IdempotencyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.bookings[original.ID]
	if !ok {
		return fmt.Errorf("booking %s: %w", original.ID, models.ErrNotFound)
	}
	if current.State != models.BookingConfirmed {
		return fmt.Errorf("booking %s is %s: %w", original.ID, current.State, models.ErrInvalidTransition)
	}
	if err := s.insertLocked(replacement, idem); err != nil {
		return err
	}
	s.bookings[original.ID] = *original
	return nil
}

func (s *memoryStore) ListActiveForHost(ctx context.Context, hostID string, window models.Interval) ([]models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.HostID == hostID && b.State.Active() && b.Interval.Overlaps(window) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interval.Start.Before(out[j].Interval.Start) })
	return out, nil
}

func (s *memoryStore) CountForHostOnDay(ctx context.Context, hostID string, day models.Interval, excludeID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.bookings {
		if b.HostID != hostID || b.ID == excludeID || !b.State.Active() {
			continue
		}
		if day.ContainsInstant(b.Interval.Start) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) FindIdempotency(ctx context.Context, hostID, key string, now time.Time) (*models.IdempotencyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idem[idemKey(hostID, key)]
	if !ok || !now.Before(rec.ExpiresAt) {
		return nil, fmt.Errorf("idempotency key %q: %w", key, models.ErrNotFound)
	}
	return &rec, nil
}
