package availability

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	bookingRepo "slotwise/database/repository/booking"
	hostRepo "slotwise/database/repository/host"
	"slotwise/models"
	"slotwise/services/calendar"
	"slotwise/services/intervals"
	"slotwise/testfixtures"
)

var (
	monday   = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	workCal  = models.CalendarRef{CredentialID: "cred-1", CalendarID: "work", Provider: "static"}
	homeCal  = models.CalendarRef{CredentialID: "cred-2", CalendarID: "home", Provider: "static"}
	weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
)

func at(day time.Time, hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func nineToFive(zone string, days ...time.Weekday) *models.Schedule {
	s := &models.Schedule{HostID: "host-1", TimeZone: zone, Weekly: map[time.Weekday][]models.TimeRange{}}
	for _, d := range days {
		s.Weekly[d] = []models.TimeRange{{StartMinute: 9 * 60, EndMinute: 17 * 60}}
	}
	return s
}

type fixture struct {
	engine *Engine
	dir    hostRepo.Directory
	store  bookingRepo.Store
	source *calendar.StaticSource
	clock  *testfixtures.Clock
}

func newFixture(t *testing.T, sched *models.Schedule, rules models.EventTypeRules, cfg Config) *fixture {
	t.Helper()
	ctx := context.Background()

	clock := testfixtures.NewClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	dir := hostRepo.NewMemoryDirectory()
	if err := dir.UpsertSchedule(ctx, sched); err != nil {
		t.Fatalf("UpsertSchedule: %v", err)
	}
	if err := dir.UpsertEventType(ctx, &models.EventType{ID: "intro", HostID: "host-1", Title: "Intro call", Rules: rules}); err != nil {
		t.Fatalf("UpsertEventType: %v", err)
	}
	if err := dir.SetCalendars(ctx, "host-1", []models.CalendarRef{workCal, homeCal}); err != nil {
		t.Fatalf("SetCalendars: %v", err)
	}

	source := calendar.NewStaticSource()
	registry := calendar.NewRegistry()
	registry.Register("static", source)
	cache := calendar.NewBusyCache(registry, calendar.CacheConfig{TTL: time.Minute}, clock.Now, nil)
	store := bookingRepo.NewMemoryStore()

	return &fixture{
		engine: NewEngine(dir, cache, store, cfg, clock.Now, nil),
		dir:    dir,
		store:  store,
		source: source,
		clock:  clock,
	}
}

func thirtyMinutes() models.EventTypeRules {
	return models.EventTypeRules{DurationMinutes: 30, SlotIntervalMinutes: 30}
}

func intPtr(n int) *int { return &n }

func (f *fixture) slots(t *testing.T, from, to time.Time) []Slot {
	t.Helper()
	res, err := f.engine.ComputeSlots(context.Background(), Request{HostID: "host-1", EventTypeID: "intro", From: from, To: to})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	return res.Slots
}

func startsOf(slots []Slot) map[time.Time]bool {
	out := make(map[time.Time]bool, len(slots))
	for _, s := range slots {
		out[s.Start.UTC()] = true
	}
	return out
}

func TestComputeSlots_FullFreeMonday(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nineToFive("UTC", weekdays...), thirtyMinutes(), DefaultConfig())
	slots := f.slots(t, monday, monday.Add(24*time.Hour))

	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	for i, s := range slots {
		want := at(monday, 9, 30*i)
		if !s.Start.Equal(want) || !s.End.Equal(want.Add(30*time.Minute)) {
			t.Fatalf("slot %d = %s-%s, want start %s", i, s.Start, s.End, want)
		}
	}
}

func TestComputeSlots_CalendarBusyHour(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nineToFive("UTC", weekdays...), thirtyMinutes(), DefaultConfig())
	f.source.SetBusy(workCal, models.Interval{Start: at(monday, 10, 0), End: at(monday, 11, 0)})

	slots := f.slots(t, monday, monday.Add(24*time.Hour))
	starts := startsOf(slots)
	if starts[at(monday, 10, 0)] || starts[at(monday, 10, 30)] {
		t.Fatal("slots inside the busy hour must be excluded")
	}
	if len(slots) != 14 {
		t.Fatalf("expected the 14 remaining slots, got %d", len(slots))
	}
	for _, keep := range []time.Time{at(monday, 9, 30), at(monday, 11, 0)} {
		if !starts[keep] {
			t.Fatalf("expected slot at %s", keep)
		}
	}
}

func TestComputeSlots_DailyLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "limit reached", limit: 1, want: 0},
		{name: "limit not reached", limit: 2, want: 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rules := thirtyMinutes()
			rules.MaxBookingsPerDay = intPtr(tt.limit)
			f := newFixture(t, nineToFive("UTC", weekdays...), rules, DefaultConfig())
			existing := &models.Booking{
				ID: "b1", HostID: "host-1", EventTypeID: "intro", State: models.BookingConfirmed,
				Interval: models.Interval{Start: at(monday, 9, 0), End: at(monday, 9, 30)},
			}
			if err := f.store.Create(context.Background(), existing, nil); err != nil {
				t.Fatalf("Create: %v", err)
			}

			slots := f.slots(t, monday, monday.Add(24*time.Hour))
			if len(slots) != tt.want {
				t.Fatalf("expected %d slots, got %d", tt.want, len(slots))
			}
			// the next day is unaffected
			if next := f.slots(t, monday.Add(24*time.Hour), monday.Add(48*time.Hour)); len(next) != 16 {
				t.Fatalf("expected 16 slots on tuesday, got %d", len(next))
			}
		})
	}
}

func TestComputeSlots_EmptyResults(t *testing.T) {
	t.Parallel()

	saturday := monday.Add(-2 * 24 * time.Hour)
	tests := []struct {
		name  string
		rules models.EventTypeRules
		setup func(f *fixture)
		from  time.Time
	}{
		{
			name:  "no working hours",
			rules: thirtyMinutes(),
			from:  saturday.Add(24 * time.Hour), // sunday
		},
		{
			name:  "duration longer than any free window",
			rules: models.EventTypeRules{DurationMinutes: 9 * 60},
			from:  monday,
		},
		{
			name:  "fully busy day",
			rules: thirtyMinutes(),
			from:  monday,
			setup: func(f *fixture) {
				f.source.SetBusy(homeCal, models.Interval{Start: at(monday, 8, 0), End: at(monday, 18, 0)})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nineToFive("UTC", weekdays...), tt.rules, DefaultConfig())
			if tt.setup != nil {
				tt.setup(f)
			}
			if slots := f.slots(t, tt.from, tt.from.Add(24*time.Hour)); len(slots) != 0 {
				t.Fatalf("expected no slots, got %d", len(slots))
			}
		})
	}
}

func TestComputeSlots_Buffers(t *testing.T) {
	t.Parallel()

	rules := thirtyMinutes()
	rules.BufferBeforeMinutes = 15
	rules.BufferAfterMinutes = 15
	f := newFixture(t, nineToFive("UTC", weekdays...), rules, DefaultConfig())
	f.source.SetBusy(workCal, models.Interval{Start: at(monday, 12, 0), End: at(monday, 13, 0)})

	slots := f.slots(t, monday, monday.Add(24*time.Hour))
	starts := startsOf(slots)
	for _, gone := range []time.Time{at(monday, 11, 30), at(monday, 12, 0), at(monday, 12, 30), at(monday, 13, 0)} {
		if starts[gone] {
			t.Fatalf("slot %s violates a buffer", gone)
		}
	}
	for _, keep := range []time.Time{at(monday, 11, 0), at(monday, 13, 30)} {
		if !starts[keep] {
			t.Fatalf("expected slot %s", keep)
		}
	}
	if len(slots) != 12 {
		t.Fatalf("expected 12 slots, got %d", len(slots))
	}
}

func TestComputeSlots_MinimumNotice(t *testing.T) {
	t.Parallel()

	rules := thirtyMinutes()
	rules.MinimumNoticeMinutes = 60
	f := newFixture(t, nineToFive("UTC", weekdays...), rules, DefaultConfig())
	f.clock.Set(at(monday, 10, 10))

	slots := f.slots(t, monday, monday.Add(24*time.Hour))
	if len(slots) == 0 || !slots[0].Start.Equal(at(monday, 11, 30)) {
		t.Fatalf("expected first slot at 11:30 on the grid, got %v", slots)
	}
	if len(slots) != 11 {
		t.Fatalf("expected 11 slots, got %d", len(slots))
	}
}

func TestComputeSlots_SlotIntervalShorterThanDuration(t *testing.T) {
	t.Parallel()

	rules := models.EventTypeRules{DurationMinutes: 30, SlotIntervalMinutes: 15}
	f := newFixture(t, nineToFive("UTC", weekdays...), rules, DefaultConfig())

	slots := f.slots(t, monday, monday.Add(24*time.Hour))
	if len(slots) != 31 {
		t.Fatalf("expected 31 overlapping candidates, got %d", len(slots))
	}
	if last := slots[len(slots)-1]; !last.End.Equal(at(monday, 17, 0)) {
		t.Fatalf("last slot must end at close, got %s", last.End)
	}
}

func TestComputeSlots_Overrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		override models.DateOverride
		want     int
	}{
		{name: "day off", override: models.DateOverride{Date: "2025-03-03", Unavailable: true}, want: 0},
		{
			name:     "shortened day",
			override: models.DateOverride{Date: "2025-03-03", Ranges: []models.TimeRange{{StartMinute: 13 * 60, EndMinute: 14 * 60}}},
			want:     2,
		},
		{
			name:     "override on another date",
			override: models.DateOverride{Date: "2025-03-04", Unavailable: true},
			want:     16,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sched := nineToFive("UTC", weekdays...)
			sched.Overrides = []models.DateOverride{tt.override}
			f := newFixture(t, sched, thirtyMinutes(), DefaultConfig())
			if slots := f.slots(t, monday, monday.Add(24*time.Hour)); len(slots) != tt.want {
				t.Fatalf("expected %d slots, got %d", tt.want, len(slots))
			}
		})
	}
}

func TestComputeSlots_BookingWindow(t *testing.T) {
	t.Parallel()

	rules := thirtyMinutes()
	rules.BookingWindow = models.BookingWindow{Earliest: "2025-03-04", Latest: "2025-03-04"}
	f := newFixture(t, nineToFive("UTC", weekdays...), rules, DefaultConfig())

	slots := f.slots(t, monday, monday.Add(3*24*time.Hour))
	if len(slots) != 16 {
		t.Fatalf("expected only tuesday's 16 slots, got %d", len(slots))
	}
	tuesday := monday.Add(24 * time.Hour)
	if !slots[0].Start.Equal(at(tuesday, 9, 0)) {
		t.Fatalf("unexpected first slot %s", slots[0].Start)
	}
}

func TestComputeSlots_DaylightSavingTransition(t *testing.T) {
	t.Parallel()

	everyDay := []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	f := newFixture(t, nineToFive("America/New_York", everyDay...), thirtyMinutes(), DefaultConfig())

	// saturday 8 March (EST) and sunday 9 March (EDT) in host-local midnights
	from := time.Date(2025, 3, 8, 5, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)
	slots := f.slots(t, from, to)
	if len(slots) != 32 {
		t.Fatalf("expected 32 slots over two days, got %d", len(slots))
	}
	if got, want := slots[0].Start.UTC(), time.Date(2025, 3, 8, 14, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("saturday opens at %s, want %s", got, want)
	}
	if got, want := slots[16].Start.UTC(), time.Date(2025, 3, 9, 13, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("sunday opens at %s, want %s", got, want)
	}
	if slots[16].Start.Hour() != 9 {
		t.Fatalf("slots render in the host zone by default, got hour %d", slots[16].Start.Hour())
	}
}

func TestComputeSlots_AttendeeZone(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nineToFive("UTC", weekdays...), thirtyMinutes(), DefaultConfig())
	res, err := f.engine.ComputeSlots(context.Background(), Request{
		HostID: "host-1", EventTypeID: "intro", From: monday, To: monday.Add(24 * time.Hour), TimeZone: "Asia/Tokyo",
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	first := res.Slots[0]
	if first.Start.Location().String() != "Asia/Tokyo" || first.Start.Hour() != 18 {
		t.Fatalf("expected 18:00 Asia/Tokyo, got %s", first.Start)
	}
	if res.TimeZone != "Asia/Tokyo" {
		t.Fatalf("unexpected result zone %q", res.TimeZone)
	}
}

func TestComputeSlots_SourceFailurePolicy(t *testing.T) {
	t.Parallel()

	boom := errors.New("provider down")
	tests := []struct {
		name     string
		partial  bool
		failing  []models.CalendarRef
		wantErr  bool
		wantWarn bool
	}{
		{name: "partial allowed", partial: true, failing: []models.CalendarRef{homeCal}, wantWarn: true},
		{name: "partial refused", partial: false, failing: []models.CalendarRef{homeCal}, wantErr: true},
		{name: "every source failed", partial: true, failing: []models.CalendarRef{workCal, homeCal}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.AllowPartialAvailability = tt.partial
			f := newFixture(t, nineToFive("UTC", weekdays...), thirtyMinutes(), cfg)
			f.source.SetBusy(workCal, models.Interval{Start: at(monday, 10, 0), End: at(monday, 11, 0)})
			for _, ref := range tt.failing {
				f.source.Fail(ref, boom)
			}

			res, err := f.engine.ComputeSlots(context.Background(), Request{
				HostID: "host-1", EventTypeID: "intro", From: monday, To: monday.Add(24 * time.Hour),
			})
			if tt.wantErr {
				if !errors.Is(err, models.ErrSourceUnavailable) {
					t.Fatalf("expected ErrSourceUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeSlots: %v", err)
			}
			if len(res.Slots) != 14 {
				t.Fatalf("expected answering calendar to apply, got %d slots", len(res.Slots))
			}
			if tt.wantWarn && (len(res.Warnings) == 0 || !res.Degraded) {
				t.Fatalf("expected a degraded result with a warning, got %+v", res)
			}
		})
	}
}

func TestComputeSlots_StaleCalendarData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, nineToFive("UTC", weekdays...), thirtyMinutes(), DefaultConfig())
	f.source.SetBusy(workCal, models.Interval{Start: at(monday, 10, 0), End: at(monday, 11, 0)})
	mondayReq := Request{HostID: "host-1", EventTypeID: "intro", From: monday, To: monday.Add(24 * time.Hour)}

	if res, err := f.engine.ComputeSlots(ctx, mondayReq); err != nil || res.Degraded {
		t.Fatalf("expected fresh result, got %+v, %v", res, err)
	}

	tuesday := monday.Add(24 * time.Hour)
	f.source.SetBusy(workCal,
		models.Interval{Start: at(monday, 10, 0), End: at(monday, 11, 0)},
		models.Interval{Start: at(tuesday, 9, 0), End: at(tuesday, 10, 0)})
	f.source.Fail(workCal, errors.New("provider down"))
	f.clock.Advance(2 * time.Minute)

	res, err := f.engine.ComputeSlots(ctx, mondayReq)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if !res.Degraded {
		t.Fatal("expected stale calendar data to be reported")
	}
	if len(res.Slots) != 14 {
		t.Fatalf("stale busy time must still apply, got %d slots", len(res.Slots))
	}

	hr, err := f.engine.Rules(ctx, "host-1", "intro")
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	check, err := f.engine.CheckInterval(ctx, hr, CheckRequest{Interval: models.Interval{Start: at(monday, 11, 0), End: at(monday, 11, 30)}})
	if err != nil || !check.Degraded {
		t.Fatalf("expected a degraded pass on the cached window, got %+v, %v", check, err)
	}
	_, err = f.engine.CheckInterval(ctx, hr, CheckRequest{Interval: models.Interval{Start: at(monday, 10, 0), End: at(monday, 10, 30)}})
	if !errors.Is(err, models.ErrSlotNoLongerAvailable) {
		t.Fatalf("stale busy time must still conflict, got %v", err)
	}

	// Tuesday was never read from the failing calendar
	_, err = f.engine.CheckInterval(ctx, hr, CheckRequest{Interval: models.Interval{Start: at(tuesday, 9, 0), End: at(tuesday, 9, 30)}})
	if !errors.Is(err, models.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable for an unread window, got %v", err)
	}
}

func TestComputeSlots_RequestValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nineToFive("UTC", weekdays...), thirtyMinutes(), Config{MaxRangeDays: 7})
	tests := []struct {
		name string
		req  Request
	}{
		{name: "inverted range", req: Request{HostID: "host-1", EventTypeID: "intro", From: monday, To: monday}},
		{name: "range too long", req: Request{HostID: "host-1", EventTypeID: "intro", From: monday, To: monday.Add(8 * 24 * time.Hour)}},
		{name: "missing host", req: Request{EventTypeID: "intro", From: monday, To: monday.Add(time.Hour)}},
		{name: "unknown zone", req: Request{HostID: "host-1", EventTypeID: "intro", From: monday, To: monday.Add(time.Hour), TimeZone: "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ComputeSlots(context.Background(), tt.req)
			var ve *models.ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, models.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	_, err := f.engine.ComputeSlots(context.Background(), Request{HostID: "nobody", EventTypeID: "intro", From: monday, To: monday.Add(time.Hour)})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown host, got %v", err)
	}
}

func TestComputeSlots_SlotsRespectHoursAndBufferedBusy(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 25; round++ {
		rules := models.EventTypeRules{
			DurationMinutes:     15 * (1 + rng.Intn(4)),
			BufferBeforeMinutes: 5 * rng.Intn(4),
			BufferAfterMinutes:  5 * rng.Intn(4),
			SlotIntervalMinutes: 15 * (1 + rng.Intn(3)),
		}
		sched := nineToFive("UTC", weekdays...)
		sched.Weekly[time.Monday] = []models.TimeRange{{StartMinute: 8 * 60, EndMinute: 12 * 60}, {StartMinute: 13 * 60, EndMinute: 18 * 60}}
		f := newFixture(t, sched, rules, DefaultConfig())

		var busy []models.Interval
		n := 1 + rng.Intn(5)
		for i := 0; i < n; i++ {
			start := at(monday, 7+rng.Intn(11), 5*rng.Intn(12))
			iv := models.Interval{Start: start, End: start.Add(time.Duration(10+rng.Intn(90)) * time.Minute)}
			busy = append(busy, iv)
		}
		f.source.SetBusy(workCal, busy...)

		slots := f.slots(t, monday, monday.Add(24*time.Hour))
		blocked := intervals.Expand(intervals.Merge(busy), rules.BufferAfter(), rules.BufferBefore())
		for _, s := range slots {
			iv := models.Interval{Start: s.Start.UTC(), End: s.End.UTC()}
			if iv.Duration() != rules.Duration() {
				t.Fatalf("round %d: slot %s has wrong duration", round, iv)
			}
			inHours := false
			for _, r := range sched.Weekly[time.Monday] {
				wr := workingInterval(monday, r, time.UTC)
				if wr.Contains(iv) && iv.Start.Sub(wr.Start)%rules.SlotInterval() == 0 {
					inHours = true
				}
			}
			if !inHours {
				t.Fatalf("round %d: slot %s outside working hours or off grid", round, iv)
			}
			if intervals.Overlapping(blocked, iv) {
				t.Fatalf("round %d: slot %s overlaps buffered busy time", round, iv)
			}
		}
	}
}

func TestCheckInterval(t *testing.T) {
	t.Parallel()

	rules := thirtyMinutes()
	rules.BufferAfterMinutes = 10
	rules.MaxBookingsPerDay = intPtr(2)
	f := newFixture(t, nineToFive("UTC", weekdays...), rules, DefaultConfig())
	f.source.SetBusy(workCal, models.Interval{Start: at(monday, 14, 0), End: at(monday, 15, 0)})
	existing := &models.Booking{
		ID: "b1", HostID: "host-1", State: models.BookingConfirmed,
		Interval: models.Interval{Start: at(monday, 10, 0), End: at(monday, 10, 30)},
	}
	if err := f.store.Create(context.Background(), existing, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	hr, err := f.engine.Rules(context.Background(), "host-1", "intro")
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}

	slot := func(h, m int) models.Interval {
		return models.Interval{Start: at(monday, h, m), End: at(monday, h, m+30)}
	}
	tests := []struct {
		name    string
		req     CheckRequest
		wantErr error
	}{
		{name: "free slot", req: CheckRequest{Interval: slot(11, 0)}},
		{name: "busy calendar", req: CheckRequest{Interval: slot(14, 0)}, wantErr: models.ErrSlotNoLongerAvailable},
		{name: "buffer after runs into busy time", req: CheckRequest{Interval: slot(13, 30)}, wantErr: models.ErrSlotNoLongerAvailable},
		{name: "existing booking", req: CheckRequest{Interval: slot(10, 0)}, wantErr: models.ErrSlotNoLongerAvailable},
		{name: "ignored booking", req: CheckRequest{Interval: slot(10, 0), IgnoreBookingID: "b1"}},
		{name: "outside working hours", req: CheckRequest{Interval: slot(17, 0)}, wantErr: models.ErrSlotNoLongerAvailable},
		{name: "off the grid", req: CheckRequest{Interval: slot(11, 10)}, wantErr: models.ErrValidation},
		{name: "wrong duration", req: CheckRequest{Interval: models.Interval{Start: at(monday, 11, 0), End: at(monday, 12, 0)}}, wantErr: models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CheckInterval(context.Background(), hr, tt.req)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected free, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("daily limit", func(t *testing.T) {
		second := &models.Booking{
			ID: "b2", HostID: "host-1", State: models.BookingPending,
			Interval: models.Interval{Start: at(monday, 16, 0), End: at(monday, 16, 30)},
		}
		if err := f.store.Create(context.Background(), second, nil); err != nil {
			t.Fatalf("Create: %v", err)
		}
		_, err := f.engine.CheckInterval(context.Background(), hr, CheckRequest{Interval: slot(11, 0)})
		if !errors.Is(err, models.ErrSlotNoLongerAvailable) {
			t.Fatalf("expected limit rejection, got %v", err)
		}
	})
}

func TestHostRules_Days(t *testing.T) {
	t.Parallel()

	rules := thirtyMinutes()
	rules.BufferAfterMinutes = 20
	hr := &HostRules{
		HostID:    "host-1",
		Schedule:  nineToFive("UTC"),
		EventType: &models.EventType{Rules: rules},
		Location:  time.UTC,
	}

	got := hr.Days(models.Interval{Start: at(monday, 23, 30), End: at(monday, 24, 0)})
	if len(got) != 2 || got[0] != "2025-03-03" || got[1] != "2025-03-04" {
		t.Fatalf("expected buffered interval to touch two days, got %v", got)
	}
	got = hr.Days(models.Interval{Start: at(monday, 9, 0), End: at(monday, 9, 30)})
	if len(got) != 1 || got[0] != "2025-03-03" {
		t.Fatalf("unexpected days %v", got)
	}
}
