package calendar

import (
	"context"
	"sync"

	"slotwise/models"
	"slotwise/services/intervals"
)

// StaticSource serves busy intervals held in memory. It backs local
// development and tests; production calendars go through provider adapters.
type StaticSource struct {
	mu     sync.RWMutex
	busy   map[string]models.BusySet
	errors map[string]error
}

func NewStaticSource() *StaticSource {
	return &StaticSource{
		busy:   make(map[string]models.BusySet),
		errors: make(map[string]error),
	}
}

// SetBusy replaces the busy intervals of a calendar.
func (s *StaticSource) SetBusy(ref models.CalendarRef, busy ...models.Interval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy[ref.Key()] = intervals.Merge(busy)
}

// Fail makes every fetch of the calendar return err until cleared with a nil error.
func (s *StaticSource) Fail(ref models.CalendarRef, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errors, ref.Key())
		return
	}
	s.errors[ref.Key()] = err
}

func (s *StaticSource) FetchBusy(ctx context.Context, ref models.CalendarRef, window models.Interval) (models.BusySet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.errors[ref.Key()]; err != nil {
		return nil, err
	}
	return intervals.Clip(s.busy[ref.Key()], window), nil
}
