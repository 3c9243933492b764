package models

import (
	"fmt"
	"time"
)

// Interval is a half-open range [Start, End) of absolute instants.
type Interval struct {
	Start time.Time `bson:"start" json:"start"`
	End   time.Time `bson:"end" json:"end"`
}

// NewInterval builds a validated interval.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start.UTC(), End: end.UTC()}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate rejects zero-length and inverted intervals.
func (iv Interval) Validate() error {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return NewValidationError("interval", "start and end are required")
	}
	if !iv.Start.Before(iv.End) {
		return NewValidationError("interval", fmt.Sprintf("start %s must be before end %s",
			iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339)))
	}
	return nil
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether the two intervals share at least one instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely inside iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// ContainsInstant reports whether t lies in [Start, End).
func (iv Interval) ContainsInstant(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Equal compares instants, ignoring location.
func (iv Interval) Equal(other Interval) bool {
	return iv.Start.Equal(other.Start) && iv.End.Equal(other.End)
}

// In renders the interval in loc. Only used at the presentation boundary.
func (iv Interval) In(loc *time.Location) Interval {
	return Interval{Start: iv.Start.In(loc), End: iv.End.In(loc)}
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// BusySet is an ordered sequence of intervals for one calendar source.
// Intervals are sorted by start and never touch or overlap; build one with
// intervals.Merge rather than by hand.
type BusySet []Interval

// Window returns the hull of the set, or false when the set is empty.
func (b BusySet) Window() (Interval, bool) {
	if len(b) == 0 {
		return Interval{}, false
	}
	return Interval{Start: b[0].Start, End: b[len(b)-1].End}, true
}
