package models

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the calendar date format used for overrides, booking windows and day keys.
const DateLayout = "2006-01-02"

// MinutesPerDay bounds TimeRange values; 1440 means the following midnight.
const MinutesPerDay = 24 * 60

// TimeRange is a time-of-day interval in the schedule's reference zone.
type TimeRange struct {
	StartMinute int `bson:"startMinute" json:"startMinute"` // minutes from midnight (e.g., 540 for 9:00 AM)
	EndMinute   int `bson:"endMinute" json:"endMinute"`     // minutes from midnight (e.g., 1020 for 5:00 PM)
}

// DateOverride replaces the weekly pattern for one calendar date.
type DateOverride struct {
	Date        string      `bson:"date" json:"date" binding:"required"` // e.g., "2025-02-25"
	Unavailable bool        `bson:"unavailable" json:"unavailable"`
	Ranges      []TimeRange `bson:"ranges,omitempty" json:"ranges,omitempty"`
}

// Schedule is a host's recurring weekly availability.
type Schedule struct {
	HostID    string                       `bson:"hostId" json:"hostId"`
	TimeZone  string                       `bson:"timeZone" json:"timeZone" binding:"required"`
	Weekly    map[time.Weekday][]TimeRange `bson:"weekly" json:"weekly"`
	Overrides []DateOverride               `bson:"overrides,omitempty" json:"overrides,omitempty"`
	UpdatedAt time.Time                    `bson:"updatedAt" json:"updatedAt"`
}

// Location resolves the schedule's reference zone.
func (s *Schedule) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, NewValidationError("timeZone", fmt.Sprintf("unknown time zone %q", s.TimeZone))
	}
	return loc, nil
}

// RangesFor returns the time-of-day ranges that apply to date, with an
// override for that date taking precedence over the weekly pattern.
func (s *Schedule) RangesFor(date time.Time) []TimeRange {
	key := date.Format(DateLayout)
	for _, o := range s.Overrides {
		if o.Date != key {
			continue
		}
		if o.Unavailable {
			return nil
		}
		return sortedRanges(o.Ranges)
	}
	return sortedRanges(s.Weekly[date.Weekday()])
}

func sortedRanges(in []TimeRange) []TimeRange {
	if len(in) == 0 {
		return nil
	}
	out := make([]TimeRange, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out
}

// Validate checks ranges and overrides.
func (s *Schedule) Validate() error {
	v := &ValidationError{}
	if _, err := s.Location(); err != nil {
		v.Add("timeZone", fmt.Sprintf("unknown time zone %q", s.TimeZone))
	}
	for day, ranges := range s.Weekly {
		if day < time.Sunday || day > time.Saturday {
			v.Add("weekly", fmt.Sprintf("invalid weekday %d", day))
			continue
		}
		if err := validateRanges(ranges); err != nil {
			v.Add("weekly."+day.String(), err.Error())
		}
	}
	seen := make(map[string]bool, len(s.Overrides))
	for _, o := range s.Overrides {
		if _, err := time.Parse(DateLayout, o.Date); err != nil {
			v.Add("overrides", fmt.Sprintf("invalid date %q", o.Date))
			continue
		}
		if seen[o.Date] {
			v.Add("overrides."+o.Date, "duplicate override")
		}
		seen[o.Date] = true
		if o.Unavailable && len(o.Ranges) > 0 {
			v.Add("overrides."+o.Date, "unavailable override cannot carry ranges")
		}
		if err := validateRanges(o.Ranges); err != nil {
			v.Add("overrides."+o.Date, err.Error())
		}
	}
	return v.OrNil()
}

func validateRanges(ranges []TimeRange) error {
	sorted := sortedRanges(ranges)
	for i, r := range sorted {
		if r.StartMinute < 0 || r.EndMinute > MinutesPerDay {
			return fmt.Errorf("range %d-%d outside the day", r.StartMinute, r.EndMinute)
		}
		if r.StartMinute >= r.EndMinute {
			return fmt.Errorf("range %d-%d is empty or inverted", r.StartMinute, r.EndMinute)
		}
		if i > 0 && sorted[i-1].EndMinute > r.StartMinute {
			return fmt.Errorf("ranges %d-%d and %d-%d overlap",
				sorted[i-1].StartMinute, sorted[i-1].EndMinute, r.StartMinute, r.EndMinute)
		}
	}
	return nil
}
