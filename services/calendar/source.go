package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"slotwise/models"
)

// Source fetches busy intervals from one calendar provider.
type Source interface {
	FetchBusy(ctx context.Context, ref models.CalendarRef, window models.Interval) (models.BusySet, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, ref models.CalendarRef, window models.Interval) (models.BusySet, error)

func (f SourceFunc) FetchBusy(ctx context.Context, ref models.CalendarRef, window models.Interval) (models.BusySet, error) {
	return f(ctx, ref, window)
}

// CredentialForgetter is implemented by sources that hold per-credential
// clients which must be released when the credential is removed.
type CredentialForgetter interface {
	Forget(credentialID string)
}

// SourceError is returned by adapters. Transient errors are retried by the cache.
type SourceError struct {
	Provider   string
	CalendarID string
	Transient  bool
	Err        error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s calendar %s: %v", e.Provider, e.CalendarID, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Registry routes fetches to the Source registered for the calendar's provider.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register binds a provider name to a source, replacing any previous binding.
func (r *Registry) Register(provider string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[provider] = src
}

func (r *Registry) FetchBusy(ctx context.Context, ref models.CalendarRef, window models.Interval) (models.BusySet, error) {
	r.mu.RLock()
	src, ok := r.sources[ref.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, &SourceError{
			Provider:   ref.Provider,
			CalendarID: ref.CalendarID,
			Err:        fmt.Errorf("no source registered for provider %q", ref.Provider),
		}
	}
	return src.FetchBusy(ctx, ref, window)
}

// Forget releases the credential in every registered source that holds
// per-credential state.
func (r *Registry) Forget(credentialID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, src := range r.sources {
		if f, ok := src.(CredentialForgetter); ok {
			f.Forget(credentialID)
		}
	}
}
