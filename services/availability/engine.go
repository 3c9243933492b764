// Package availability turns host schedules, event type rules and calendar
// busy time into bookable slots.
package availability

import (
	"context"
	"fmt"
	"time"

	hostRepo "slotwise/database/repository/host"
	"slotwise/models"
	"slotwise/services/calendar"
	"slotwise/services/intervals"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BusyReader serves calendar busy time. *calendar.BusyCache implements it.
type BusyReader interface {
	Get(ctx context.Context, ref models.CalendarRef, window models.Interval, opts ...calendar.GetOption) (calendar.BusyResult, error)
}

// BookingReader is the part of the booking store the engine reads.
type BookingReader interface {
	ListActiveForHost(ctx context.Context, hostID string, window models.Interval) ([]models.Booking, error)
	CountForHostOnDay(ctx context.Context, hostID string, day models.Interval, excludeID string) (int, error)
}

type Config struct {
	// AllowPartialAvailability lets ComputeSlots answer when some, but not
	// all, calendars failed without a cached fallback.
	AllowPartialAvailability bool
	MaxRangeDays             int
	FetchConcurrency         int
}

func DefaultConfig() Config {
	return Config{AllowPartialAvailability: true, MaxRangeDays: 62, FetchConcurrency: 8}
}

type Engine struct {
	directory hostRepo.Directory
	cache     BusyReader
	bookings  BookingReader
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
}

func NewEngine(directory hostRepo.Directory, cache BusyReader, bookings BookingReader, cfg Config, now func() time.Time, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = def.MaxRangeDays
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = def.FetchConcurrency
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{directory: directory, cache: cache, bookings: bookings, cfg: cfg, now: now, logger: logger}
}

// Request asks for the slots of one event type between From and To.
type Request struct {
	HostID      string
	EventTypeID string
	From        time.Time
	To          time.Time
	TimeZone    string // attendee zone for output; empty uses the host zone
}

// Validate checks the request shape before any I/O.
func (r Request) Validate(maxRangeDays int) error {
	v := &models.ValidationError{}
	if r.HostID == "" {
		v.Add("hostId", "is required")
	}
	if r.EventTypeID == "" {
		v.Add("eventTypeId", "is required")
	}
	if r.From.IsZero() || r.To.IsZero() {
		v.Add("range", "from and to are required")
	} else if !r.From.Before(r.To) {
		v.Add("range", "from must be before to")
	} else if maxRangeDays > 0 && r.To.Sub(r.From) > time.Duration(maxRangeDays)*24*time.Hour {
		v.Add("range", fmt.Sprintf("must not span more than %d days", maxRangeDays))
	}
	if r.TimeZone != "" {
		if _, err := time.LoadLocation(r.TimeZone); err != nil {
			v.Add("timeZone", fmt.Sprintf("unknown time zone %q", r.TimeZone))
		}
	}
	return v.OrNil()
}

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Result struct {
	Slots    []Slot   `json:"slots"`
	TimeZone string   `json:"timeZone"`
	Degraded bool     `json:"degraded"` // some calendar data was stale or skipped
	Warnings []string `json:"warnings,omitempty"`
}

// ComputeSlots returns the bookable slots in the request range, ascending,
// rendered in the attendee zone.
func (e *Engine) ComputeSlots(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(e.cfg.MaxRangeDays); err != nil {
		return nil, err
	}
	hr, err := e.Rules(ctx, req.HostID, req.EventTypeID)
	if err != nil {
		return nil, err
	}
	out := hr.Location
	if req.TimeZone != "" {
		out, _ = time.LoadLocation(req.TimeZone)
	}
	rules := hr.EventType.Rules
	res := &Result{Slots: []Slot{}, TimeZone: out.String()}

	// candidate starts must fall in [lo, hi)
	lo, hi := req.From.UTC(), req.To.UTC()
	if floor := e.now().Add(rules.MinimumNotice()); floor.After(lo) {
		lo = floor
	}
	earliest, latest := bookingWindowBounds(rules.BookingWindow, hr.Location)
	if !earliest.IsZero() && earliest.After(lo) {
		lo = earliest
	}
	if !latest.IsZero() && latest.Before(hi) {
		hi = latest
	}
	if !lo.Before(hi) {
		return res, nil
	}

	days := hostDays(models.Interval{Start: lo, End: hi}, hr.Location)
	pad := rules.BufferBefore() + rules.BufferAfter()
	span := models.Interval{Start: days[0].Start.Add(-pad), End: days[len(days)-1].End.Add(rules.Duration() + pad)}

	busy, err := e.collectBusy(ctx, hr, span, busyOptions{partial: e.cfg.AllowPartialAvailability})
	if err != nil {
		return nil, err
	}
	res.Degraded = busy.degraded
	res.Warnings = busy.warnings
	blocked := intervals.Expand(busy.set, rules.BufferAfter(), rules.BufferBefore())

	for _, day := range days {
		if rules.MaxBookingsPerDay != nil {
			n, err := e.bookings.CountForHostOnDay(ctx, hr.HostID, day, "")
			if err != nil {
				return nil, fmt.Errorf("count bookings: %w", err)
			}
			if n >= *rules.MaxBookingsPerDay {
				continue
			}
		}
		for _, c := range dayCandidates(hr, day, blocked, lo, hi) {
			res.Slots = append(res.Slots, Slot{Start: c.Start.In(out), End: c.End.In(out)})
		}
	}
	return res, nil
}

// dayCandidates discretizes the free time of one host-local day on the slot
// grid anchored at the start of each working range.
func dayCandidates(hr *HostRules, day models.Interval, blocked models.BusySet, lo, hi time.Time) []models.Interval {
	rules := hr.EventType.Rules
	dur, step := rules.Duration(), rules.SlotInterval()
	date := day.Start.In(hr.Location)

	var out []models.Interval
	for _, r := range hr.Schedule.RangesFor(date) {
		wr := workingInterval(date, r, hr.Location)
		for free := range intervals.Subtract(wr, blocked) {
			first := free.Start
			if lo.After(first) {
				first = lo
			}
			steps := (first.Sub(wr.Start) + step - 1) / step
			for c := wr.Start.Add(steps * step); !c.Add(dur).After(free.End) && c.Before(hi); c = c.Add(step) {
				out = append(out, models.Interval{Start: c, End: c.Add(dur)})
			}
		}
	}
	return out
}

type busyOptions struct {
	partial         bool
	maxAge          time.Duration
	ignoreBookingID string
}

type busyState struct {
	set      models.BusySet
	degraded bool
	warnings []string
}

// collectBusy unions the busy time of every connected calendar with the
// host's active bookings inside span.
func (e *Engine) collectBusy(ctx context.Context, hr *HostRules, span models.Interval, o busyOptions) (busyState, error) {
	var opts []calendar.GetOption
	if o.maxAge > 0 {
		opts = append(opts, calendar.MaxAge(o.maxAge))
	}

	results := make([]calendar.BusyResult, len(hr.Calendars))
	errs := make([]error, len(hr.Calendars))
	var g errgroup.Group
	g.SetLimit(e.cfg.FetchConcurrency)
	for i, ref := range hr.Calendars {
		g.Go(func() error {
			results[i], errs[i] = e.cache.Get(ctx, ref, span, opts...)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return busyState{}, err
	}

	var state busyState
	sets := make([]models.BusySet, 0, len(hr.Calendars)+1)
	var firstErr error
	failed := 0
	for i, ref := range hr.Calendars {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			e.logger.Warn("calendar unavailable for availability",
				zap.String("hostID", hr.HostID),
				zap.String("calendarID", ref.CalendarID),
				zap.Error(errs[i]))
			state.degraded = true
			state.warnings = append(state.warnings, fmt.Sprintf("calendar %s is unavailable", ref.CalendarID))
			continue
		}
		if results[i].Degraded {
			state.degraded = true
			state.warnings = append(state.warnings, fmt.Sprintf("calendar %s data is stale (fetched %s)",
				ref.CalendarID, results[i].FetchedAt.UTC().Format(time.RFC3339)))
		}
		sets = append(sets, results[i].Busy)
	}
	if failed > 0 && (!o.partial || failed == len(hr.Calendars)) {
		return busyState{}, fmt.Errorf("%d of %d calendars unavailable: %w: %w",
			failed, len(hr.Calendars), models.ErrSourceUnavailable, firstErr)
	}

	bookings, err := e.bookings.ListActiveForHost(ctx, hr.HostID, span)
	if err != nil {
		return busyState{}, fmt.Errorf("list bookings: %w", err)
	}
	reserved := make([]models.Interval, 0, len(bookings))
	for _, b := range bookings {
		if b.ID != o.ignoreBookingID {
			reserved = append(reserved, b.Interval)
		}
	}
	sets = append(sets, intervals.Merge(reserved))

	state.set = intervals.IntersectAll(sets...)
	return state, nil
}
