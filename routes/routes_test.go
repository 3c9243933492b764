package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bookingRepo "slotwise/database/repository/booking"
	hostRepo "slotwise/database/repository/host"
	"slotwise/handlers"
	"slotwise/models"
	"slotwise/services/availability"
	"slotwise/services/booking"
	"slotwise/services/calendar"
	"slotwise/services/notification"
	"slotwise/testfixtures"
	"slotwise/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type api struct {
	router *gin.Engine
	source *calendar.StaticSource
	cache  *calendar.BusyCache
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := testfixtures.NewClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	dir := hostRepo.NewMemoryDirectory()
	store := bookingRepo.NewMemoryStore()
	source := calendar.NewStaticSource()
	registry := calendar.NewRegistry()
	registry.Register("static", source)
	cache := calendar.NewBusyCache(registry, calendar.CacheConfig{TTL: time.Minute}, clock.Now, nil)
	engine := availability.NewEngine(dir, cache, store, availability.DefaultConfig(), clock.Now, nil)
	coord := booking.NewCoordinator(engine, store, booking.NewMemoryLocker(),
		notification.NewLogDispatcher(zap.NewNop()), booking.DefaultConfig(), clock.Now, nil)
	t.Cleanup(coord.Wait)

	r := gin.New()
	r.Use(utils.ErrorHandler())
	RegisterRoutes(r, handlers.NewHandlerBundle(
		handlers.NewAvailabilityHandler(engine),
		handlers.NewBookingHandler(coord),
		handlers.NewHostHandler(dir),
		handlers.NewCalendarHandler(calendar.NewLocalBus(cache)),
	))
	return &api{router: r, source: source, cache: cache}
}

func (a *api) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (a *api) setupHost(t *testing.T) {
	t.Helper()
	schedule := map[string]any{
		"timeZone": "UTC",
		"weekly": map[string]any{
			"1": []map[string]int{{"startMinute": 540, "endMinute": 1020}},
		},
	}
	if w := a.do(t, http.MethodPut, "/api/hosts/host-1/schedule", schedule); w.Code != http.StatusOK {
		t.Fatalf("put schedule: %d %s", w.Code, w.Body.String())
	}
	eventType := map[string]any{
		"title": "Intro call",
		"rules": map[string]int{"durationMinutes": 30, "slotIntervalMinutes": 30},
	}
	if w := a.do(t, http.MethodPut, "/api/hosts/host-1/event-types/intro", eventType); w.Code != http.StatusOK {
		t.Fatalf("put event type: %d %s", w.Code, w.Body.String())
	}
	calendars := map[string]any{
		"calendars": []map[string]string{{"credentialId": "cred-1", "calendarId": "work", "provider": "static"}},
	}
	if w := a.do(t, http.MethodPut, "/api/hosts/host-1/calendars", calendars); w.Code != http.StatusOK {
		t.Fatalf("put calendars: %d %s", w.Code, w.Body.String())
	}
}

const mondayQuery = "/api/hosts/host-1/availability?eventTypeId=intro&from=2025-03-03T00:00:00Z&to=2025-03-04T00:00:00Z"

func reserveBody(start string) map[string]any {
	s, _ := time.Parse(time.RFC3339, start)
	return map[string]any{
		"hostId":      "host-1",
		"eventTypeId": "intro",
		"start":       s,
		"end":         s.Add(30 * time.Minute),
		"attendee":    map[string]string{"name": "Alice", "email": "alice@example.com", "timeZone": "UTC"},
	}
}

func TestAvailabilityAndBookingFlow(t *testing.T) {
	a := newAPI(t)
	a.setupHost(t)

	w := a.do(t, http.MethodGet, mondayQuery, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("availability: %d %s", w.Code, w.Body.String())
	}
	if res := decode[availability.Result](t, w); len(res.Slots) != 16 || res.Degraded {
		t.Fatalf("expected 16 fresh slots, got %d (degraded=%v)", len(res.Slots), res.Degraded)
	}

	w = a.do(t, http.MethodPost, "/api/bookings", reserveBody("2025-03-03T09:00:00Z"), "Idempotency-Key", "k-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve: %d %s", w.Code, w.Body.String())
	}
	created := decode[models.Booking](t, w)
	if created.State != models.BookingConfirmed {
		t.Fatalf("expected confirmed booking, got %s", created.State)
	}

	w = a.do(t, http.MethodPost, "/api/bookings", reserveBody("2025-03-03T09:00:00Z"), "Idempotency-Key", "k-1")
	if w.Code != http.StatusCreated || decode[models.Booking](t, w).ID != created.ID {
		t.Fatalf("idempotent replay: %d %s", w.Code, w.Body.String())
	}

	w = a.do(t, http.MethodPost, "/api/bookings", reserveBody("2025-03-03T09:00:00Z"))
	if w.Code != http.StatusConflict || decode[utils.ErrorResponse](t, w).Reason != "slot_no_longer_available" {
		t.Fatalf("double booking: %d %s", w.Code, w.Body.String())
	}

	w = a.do(t, http.MethodPost, "/api/bookings", reserveBody("2025-03-03T10:00:00Z"), "Idempotency-Key", "k-1")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("reused key: %d %s", w.Code, w.Body.String())
	}

	if res := decode[availability.Result](t, a.do(t, http.MethodGet, mondayQuery, nil)); len(res.Slots) != 15 {
		t.Fatalf("expected the booked slot to disappear, got %d slots", len(res.Slots))
	}

	w = a.do(t, http.MethodPost, "/api/bookings/"+created.ID+"/reschedule", map[string]string{
		"start": "2025-03-03T11:00:00Z", "end": "2025-03-03T11:30:00Z",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reschedule: %d %s", w.Code, w.Body.String())
	}
	moved := decode[models.Booking](t, w)
	if moved.RescheduledFrom != created.ID {
		t.Fatalf("unexpected replacement %+v", moved)
	}

	if w = a.do(t, http.MethodGet, "/api/bookings/"+created.ID, nil); decode[models.Booking](t, w).State != models.BookingRescheduled {
		t.Fatalf("original should be rescheduled: %s", w.Body.String())
	}

	w = a.do(t, http.MethodPost, "/api/bookings/"+moved.ID+"/cancel", map[string]string{"reason": "sick"})
	if w.Code != http.StatusOK || decode[models.Booking](t, w).CancellationReason != "sick" {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	w = a.do(t, http.MethodPost, "/api/bookings/"+moved.ID+"/cancel", nil)
	if w.Code != http.StatusConflict || decode[utils.ErrorResponse](t, w).Reason != "invalid_transition" {
		t.Fatalf("second cancel: %d %s", w.Code, w.Body.String())
	}
}

func TestErrorResponses(t *testing.T) {
	a := newAPI(t)
	a.setupHost(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		reason string
	}{
		{
			name:   "unknown booking",
			method: http.MethodGet, path: "/api/bookings/missing",
			status: http.StatusNotFound, reason: "not_found",
		},
		{
			name:   "unknown event type",
			method: http.MethodGet, path: "/api/hosts/host-1/availability?eventTypeId=nope&from=2025-03-03T00:00:00Z&to=2025-03-04T00:00:00Z",
			status: http.StatusNotFound, reason: "not_found",
		},
		{
			name:   "malformed range",
			method: http.MethodGet, path: "/api/hosts/host-1/availability?eventTypeId=intro&from=monday&to=2025-03-04T00:00:00Z",
			status: http.StatusBadRequest, reason: "validation",
		},
		{
			name:   "inverted range",
			method: http.MethodGet, path: "/api/hosts/host-1/availability?eventTypeId=intro&from=2025-03-04T00:00:00Z&to=2025-03-03T00:00:00Z",
			status: http.StatusBadRequest, reason: "validation",
		},
		{
			name:   "off grid reservation",
			method: http.MethodPost, path: "/api/bookings", body: reserveBody("2025-03-03T09:10:00Z"),
			status: http.StatusBadRequest, reason: "validation",
		},
		{
			name:   "invalid rules",
			method: http.MethodPut, path: "/api/hosts/host-1/event-types/broken",
			body:   map[string]any{"rules": map[string]int{"durationMinutes": 0}},
			status: http.StatusBadRequest, reason: "validation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if got := decode[utils.ErrorResponse](t, w).Reason; got != tt.reason {
				t.Fatalf("reason = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestCalendarNotificationInvalidatesCache(t *testing.T) {
	a := newAPI(t)
	a.setupHost(t)

	if res := decode[availability.Result](t, a.do(t, http.MethodGet, mondayQuery, nil)); len(res.Slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(res.Slots))
	}

	ref := models.CalendarRef{CredentialID: "cred-1", CalendarID: "work", Provider: "static"}
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	a.source.SetBusy(ref, models.Interval{Start: start, End: start.Add(time.Hour)})

	// still served from the fresh cache entry
	if res := decode[availability.Result](t, a.do(t, http.MethodGet, mondayQuery, nil)); len(res.Slots) != 16 {
		t.Fatalf("expected cached 16 slots, got %d", len(res.Slots))
	}

	w := a.do(t, http.MethodPost, "/api/calendars/notifications", map[string]string{"credentialId": "cred-1", "calendarId": "work"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("notification: %d %s", w.Code, w.Body.String())
	}
	if res := decode[availability.Result](t, a.do(t, http.MethodGet, mondayQuery, nil)); len(res.Slots) != 14 {
		t.Fatalf("expected 14 slots after invalidation, got %d", len(res.Slots))
	}

	if w := a.do(t, http.MethodPost, "/api/calendars/notifications", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("notification without credential: %d", w.Code)
	}
}

func TestHealthRoute(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
}
