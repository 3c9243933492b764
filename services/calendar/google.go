package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"slotwise/models"
	"slotwise/services/intervals"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ProviderGoogle is the provider name GoogleSource is registered under.
const ProviderGoogle = "google"

// CredentialOptions resolves the client options (token source, HTTP client)
// for a stored credential. How credentials are obtained is up to the caller.
type CredentialOptions func(ctx context.Context, credentialID string) ([]option.ClientOption, error)

// GoogleSource reads busy time through the Google Calendar FreeBusy API.
type GoogleSource struct {
	options CredentialOptions

	mu       sync.Mutex
	services map[string]*gcal.Service
}

func NewGoogleSource(options CredentialOptions) *GoogleSource {
	return &GoogleSource{
		options:  options,
		services: make(map[string]*gcal.Service),
	}
}

func (g *GoogleSource) service(ctx context.Context, credentialID string) (*gcal.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if svc, ok := g.services[credentialID]; ok {
		return svc, nil
	}
	opts, err := g.options(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("resolve credential %s: %w", credentialID, err)
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	g.services[credentialID] = svc
	return svc, nil
}

// Forget drops the cached client of a credential, e.g. after it was removed.
func (g *GoogleSource) Forget(credentialID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.services, credentialID)
}

func (g *GoogleSource) FetchBusy(ctx context.Context, ref models.CalendarRef, window models.Interval) (models.BusySet, error) {
	wrap := func(err error, transient bool) error {
		return &SourceError{Provider: ProviderGoogle, CalendarID: ref.CalendarID, Transient: transient, Err: err}
	}

	svc, err := g.service(ctx, ref.CredentialID)
	if err != nil {
		return nil, wrap(err, false)
	}

	req := &gcal.FreeBusyRequest{
		TimeMin: window.Start.UTC().Format(time.RFC3339),
		TimeMax: window.End.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: ref.CalendarID}},
	}
	resp, err := svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, wrap(err, transientGoogleError(err))
	}

	cal, ok := resp.Calendars[ref.CalendarID]
	if !ok {
		return nil, wrap(fmt.Errorf("calendar missing from freebusy response"), false)
	}
	if len(cal.Errors) > 0 {
		reasons := make([]string, 0, len(cal.Errors))
		transient := false
		for _, e := range cal.Errors {
			reasons = append(reasons, e.Reason)
			if e.Reason == "backendError" || e.Reason == "rateLimitExceeded" {
				transient = true
			}
		}
		return nil, wrap(fmt.Errorf("freebusy errors: %s", strings.Join(reasons, ", ")), transient)
	}

	busy := make([]models.Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, wrap(fmt.Errorf("parse busy start %q: %w", p.Start, err), false)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, wrap(fmt.Errorf("parse busy end %q: %w", p.End, err), false)
		}
		busy = append(busy, models.Interval{Start: start.UTC(), End: end.UTC()})
	}
	return intervals.Merge(busy), nil
}

func transientGoogleError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return errors.Is(err, context.DeadlineExceeded)
}
