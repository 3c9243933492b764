package models

import (
	"fmt"
	"time"
)

// BookingWindow bounds the calendar dates a booking may start on. Empty means unbounded.
type BookingWindow struct {
	Earliest string `bson:"earliest,omitempty" json:"earliest,omitempty"` // e.g., "2025-02-01"
	Latest   string `bson:"latest,omitempty" json:"latest,omitempty"`     // e.g., "2025-03-31"
}

// EventTypeRules are the booking constraints of one event type.
type EventTypeRules struct {
	DurationMinutes      int           `bson:"durationMinutes" json:"durationMinutes"`
	BufferBeforeMinutes  int           `bson:"bufferBeforeMinutes" json:"bufferBeforeMinutes"`
	BufferAfterMinutes   int           `bson:"bufferAfterMinutes" json:"bufferAfterMinutes"`
	MinimumNoticeMinutes int           `bson:"minimumNoticeMinutes" json:"minimumNoticeMinutes"`
	MaxBookingsPerDay    *int          `bson:"maxBookingsPerDay,omitempty" json:"maxBookingsPerDay,omitempty"`
	BookingWindow        BookingWindow `bson:"bookingWindow" json:"bookingWindow"`
	SlotIntervalMinutes  int           `bson:"slotIntervalMinutes" json:"slotIntervalMinutes"` // 0 defaults to the duration
	RequiresConfirmation bool          `bson:"requiresConfirmation" json:"requiresConfirmation"`
}

// EventType is a bookable offering of a host.
type EventType struct {
	ID        string         `bson:"id" json:"id"`
	HostID    string         `bson:"hostId" json:"hostId"`
	Title     string         `bson:"title" json:"title"`
	Rules     EventTypeRules `bson:"rules" json:"rules"`
	UpdatedAt time.Time      `bson:"updatedAt" json:"updatedAt"`
}

func (r EventTypeRules) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

func (r EventTypeRules) BufferBefore() time.Duration {
	return time.Duration(r.BufferBeforeMinutes) * time.Minute
}

func (r EventTypeRules) BufferAfter() time.Duration {
	return time.Duration(r.BufferAfterMinutes) * time.Minute
}

func (r EventTypeRules) MinimumNotice() time.Duration {
	return time.Duration(r.MinimumNoticeMinutes) * time.Minute
}

// SlotInterval returns the discretization step, falling back to the duration.
func (r EventTypeRules) SlotInterval() time.Duration {
	if r.SlotIntervalMinutes <= 0 {
		return r.Duration()
	}
	return time.Duration(r.SlotIntervalMinutes) * time.Minute
}

// Validate enforces duration > 0, non-negative buffers and an ordered booking window.
func (r EventTypeRules) Validate() error {
	v := &ValidationError{}
	if r.DurationMinutes <= 0 {
		v.Add("durationMinutes", "must be greater than zero")
	}
	if r.BufferBeforeMinutes < 0 {
		v.Add("bufferBeforeMinutes", "must not be negative")
	}
	if r.BufferAfterMinutes < 0 {
		v.Add("bufferAfterMinutes", "must not be negative")
	}
	if r.MinimumNoticeMinutes < 0 {
		v.Add("minimumNoticeMinutes", "must not be negative")
	}
	if r.SlotIntervalMinutes < 0 {
		v.Add("slotIntervalMinutes", "must not be negative")
	}
	if r.MaxBookingsPerDay != nil && *r.MaxBookingsPerDay < 0 {
		v.Add("maxBookingsPerDay", "must not be negative")
	}
	earliest, latest, err := r.BookingWindow.Parse()
	if err != nil {
		v.Add("bookingWindow", err.Error())
	} else if !earliest.IsZero() && !latest.IsZero() && earliest.After(latest) {
		v.Add("bookingWindow", "earliest must not be after latest")
	}
	return v.OrNil()
}

// Parse returns the window bounds as UTC midnights; zero values mean unbounded.
func (w BookingWindow) Parse() (earliest, latest time.Time, err error) {
	if w.Earliest != "" {
		if earliest, err = time.Parse(DateLayout, w.Earliest); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid earliest date %q", w.Earliest)
		}
	}
	if w.Latest != "" {
		if latest, err = time.Parse(DateLayout, w.Latest); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid latest date %q", w.Latest)
		}
	}
	return earliest, latest, nil
}
