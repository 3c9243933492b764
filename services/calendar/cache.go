// Package calendar reads busy time from connected calendars and keeps a
// per-calendar cache of it.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"slotwise/models"
	"slotwise/services/intervals"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CacheConfig tunes the busy-time cache.
type CacheConfig struct {
	TTL            time.Duration // freshness of a fetched entry
	IdleTTL        time.Duration // entries unused for longer are swept
	FetchTimeout   time.Duration // bound on one refresh including retries
	RefreshRetries int           // extra attempts for transient source errors
	RetryBackoff   time.Duration
	MaxFetchSpan   time.Duration // widest window a refresh may merge into
}

// DefaultCacheConfig returns the values used when nothing is configured.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:            5 * time.Minute,
		IdleTTL:        30 * time.Minute,
		FetchTimeout:   10 * time.Second,
		RefreshRetries: 2,
		RetryBackoff:   200 * time.Millisecond,
		MaxFetchSpan:   62 * 24 * time.Hour,
	}
}

// BusyResult is what the cache serves for one calendar and window.
type BusyResult struct {
	Busy      models.BusySet
	FetchedAt time.Time
	Degraded  bool // stale data served because the source failed
}

type getOptions struct {
	maxAge time.Duration
}

// GetOption customizes one Get call.
type GetOption func(*getOptions)

// MaxAge forces a refresh when the entry was fetched longer than d ago.
func MaxAge(d time.Duration) GetOption {
	return func(o *getOptions) { o.maxAge = d }
}

// cacheSlot holds the state of one (credential, calendar) key.
type cacheSlot struct {
	mu         sync.Mutex
	entry      *models.CacheEntry
	generation uint64 // bumped on every invalidation
	lastAccess time.Time
}

// BusyCache serves busy intervals per calendar, refreshing through a Source
// when entries expire. State is partitioned per key; refreshes for the same
// key are shared between concurrent callers.
type BusyCache struct {
	source Source
	cfg    CacheConfig
	now    func() time.Time
	logger *zap.Logger

	slots  sync.Map // string -> *cacheSlot
	flight singleflight.Group
}

// NewBusyCache builds a cache over source. Zero config fields take defaults.
func NewBusyCache(source Source, cfg CacheConfig, now func() time.Time, logger *zap.Logger) *BusyCache {
	def := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.RefreshRetries < 0 {
		cfg.RefreshRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.MaxFetchSpan <= 0 {
		cfg.MaxFetchSpan = def.MaxFetchSpan
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusyCache{source: source, cfg: cfg, now: now, logger: logger}
}

func (c *BusyCache) slotFor(key string) *cacheSlot {
	if s, ok := c.slots.Load(key); ok {
		return s.(*cacheSlot)
	}
	s, _ := c.slots.LoadOrStore(key, &cacheSlot{})
	return s.(*cacheSlot)
}

const maxRefreshRounds = 3

// Get returns the busy intervals of ref inside window.
func (c *BusyCache) Get(ctx context.Context, ref models.CalendarRef, window models.Interval, opts ...GetOption) (BusyResult, error) {
	if err := window.Validate(); err != nil {
		return BusyResult{}, err
	}
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	key := ref.Key()
	s := c.slotFor(key)
	if res, ok := c.serve(s, window, o.maxAge); ok {
		return res, nil
	}

	for round := 0; round < maxRefreshRounds; round++ {
		entry, err := c.refresh(ctx, ref, s, window)
		if err != nil {
			return BusyResult{}, err
		}
		if entry.Window.Contains(window) {
			return BusyResult{
				Busy:      intervals.Clip(entry.Busy, window),
				FetchedAt: entry.FetchedAt,
				Degraded:  entry.Degraded,
			}, nil
		}
		// stale data never read for this window cannot stand in for it
		if entry.Degraded {
			return BusyResult{}, fmt.Errorf("calendar %s: no data for %s after source failure: %w",
				key, window, models.ErrSourceUnavailable)
		}
		// a shared refresh may have been started for a narrower window by
		// another caller
	}
	return BusyResult{}, fmt.Errorf("calendar %s: window %s not covered after %d refreshes: %w",
		key, window, maxRefreshRounds, models.ErrSourceUnavailable)
}

func (c *BusyCache) serve(s *cacheSlot, window models.Interval, maxAge time.Duration) (BusyResult, bool) {
	now := c.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = now

	e := s.entry
	if !e.Fresh(now) || !e.Window.Contains(window) {
		return BusyResult{}, false
	}
	if maxAge > 0 && now.Sub(e.FetchedAt) > maxAge {
		return BusyResult{}, false
	}
	return BusyResult{Busy: intervals.Clip(e.Busy, window), FetchedAt: e.FetchedAt}, true
}

// refresh joins or starts the single in-flight fetch for the key and waits
// for it, honoring the caller's context.
func (c *BusyCache) refresh(ctx context.Context, ref models.CalendarRef, s *cacheSlot, window models.Interval) (*models.CacheEntry, error) {
	fetchWindow := c.fetchWindow(s, window)
	// the fetch outlives a cancelled caller because other callers may share it
	base := context.WithoutCancel(ctx)

	ch := c.flight.DoChan(ref.Key(), func() (any, error) {
		return c.fetchAndStore(base, ref, s, fetchWindow)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for calendar %s: %w", ref.Key(), ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*models.CacheEntry), nil
	}
}

// fetchWindow widens the requested window to the hull with what is already
// cached, so alternating windows do not evict each other.
func (c *BusyCache) fetchWindow(s *cacheSlot, window models.Interval) models.Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil || s.entry.Degraded {
		return window
	}
	hull := window
	if s.entry.Window.Start.Before(hull.Start) {
		hull.Start = s.entry.Window.Start
	}
	if s.entry.Window.End.After(hull.End) {
		hull.End = s.entry.Window.End
	}
	if hull.Duration() > c.cfg.MaxFetchSpan {
		return window
	}
	return hull
}

func (c *BusyCache) fetchAndStore(ctx context.Context, ref models.CalendarRef, s *cacheSlot, window models.Interval) (*models.CacheEntry, error) {
	s.mu.Lock()
	generation := s.generation
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	busy, err := c.fetchWithRetry(ctx, ref, window)
	now := c.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if s.entry == nil {
			return nil, fmt.Errorf("calendar %s: %w: %w", ref.Key(), models.ErrSourceUnavailable, err)
		}
		s.entry.Degraded = true
		c.logger.Warn("serving stale busy data after source failure",
			zap.String("credentialID", ref.CredentialID),
			zap.String("calendarID", ref.CalendarID),
			zap.Time("fetchedAt", s.entry.FetchedAt),
			zap.Error(err))
		stale := *s.entry
		return &stale, nil
	}

	var version uint64 = 1
	if s.entry != nil {
		version = s.entry.SourceVersion + 1
	}
	entry := &models.CacheEntry{
		CalendarID:    ref.CalendarID,
		CredentialID:  ref.CredentialID,
		Busy:          intervals.Merge(busy),
		Window:        window,
		FetchedAt:     now,
		ExpiresAt:     now.Add(c.cfg.TTL),
		SourceVersion: version,
	}
	if s.generation != generation {
		// invalidated while fetching: the data may predate the change
		entry.ExpiresAt = now
	}
	s.entry = entry
	s.lastAccess = now
	out := *entry
	return &out, nil
}

func (c *BusyCache) fetchWithRetry(ctx context.Context, ref models.CalendarRef, window models.Interval) (models.BusySet, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.RefreshRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
		busy, err := c.source.FetchBusy(ctx, ref, window)
		if err == nil {
			return busy, nil
		}
		lastErr = err
		if !IsTransient(err) {
			break
		}
		c.logger.Debug("transient calendar fetch failure",
			zap.String("calendar", ref.Key()), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, lastErr
}

// Invalidate marks the entry stale so the next Get refreshes it. An empty
// calendarID invalidates every calendar of the credential.
func (c *BusyCache) Invalidate(credentialID, calendarID string) {
	c.eachSlot(credentialID, calendarID, func(key string, s *cacheSlot) {
		s.mu.Lock()
		s.generation++
		if s.entry != nil {
			s.entry.ExpiresAt = time.Time{}
		}
		s.mu.Unlock()
		// later callers must not join a fetch that started before the change
		c.flight.Forget(key)
	})
}

// RemoveCredential destroys every entry of the credential and releases the
// source's client for it.
func (c *BusyCache) RemoveCredential(credentialID string) {
	c.eachSlot(credentialID, "", c.remove)
	if f, ok := c.source.(CredentialForgetter); ok {
		f.Forget(credentialID)
	}
}

// RemoveCalendar destroys the entry of one calendar.
func (c *BusyCache) RemoveCalendar(credentialID, calendarID string) {
	if calendarID == "" {
		return
	}
	c.eachSlot(credentialID, calendarID, c.remove)
}

func (c *BusyCache) remove(key string, s *cacheSlot) {
	s.mu.Lock()
	s.generation++
	s.entry = nil
	s.mu.Unlock()
	c.slots.Delete(key)
	c.flight.Forget(key)
}

func (c *BusyCache) eachSlot(credentialID, calendarID string, fn func(key string, s *cacheSlot)) {
	if calendarID != "" {
		key := models.CalendarRef{CredentialID: credentialID, CalendarID: calendarID}.Key()
		if s, ok := c.slots.Load(key); ok {
			fn(key, s.(*cacheSlot))
		}
		return
	}
	prefix := credentialID + "|"
	c.slots.Range(func(k, v any) bool {
		if key := k.(string); strings.HasPrefix(key, prefix) {
			fn(key, v.(*cacheSlot))
		}
		return true
	})
}

// Apply handles a push notification from a calendar provider.
func (c *BusyCache) Apply(ev models.InvalidationEvent) {
	if ev.Removed {
		if ev.CalendarID == "" {
			c.RemoveCredential(ev.CredentialID)
		} else {
			c.RemoveCalendar(ev.CredentialID, ev.CalendarID)
		}
		return
	}
	c.Invalidate(ev.CredentialID, ev.CalendarID)
}

// Sweep removes entries not accessed within IdleTTL and returns how many went.
func (c *BusyCache) Sweep() int {
	now := c.now()
	removed := 0
	c.slots.Range(func(k, v any) bool {
		s := v.(*cacheSlot)
		s.mu.Lock()
		idle := now.Sub(s.lastAccess) > c.cfg.IdleTTL
		s.mu.Unlock()
		if idle {
			c.slots.Delete(k)
			removed++
		}
		return true
	})
	if removed > 0 {
		c.logger.Debug("swept idle calendar cache entries", zap.Int("removed", removed))
	}
	return removed
}

// Len returns the number of keys currently tracked.
func (c *BusyCache) Len() int {
	n := 0
	c.slots.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Entry returns a copy of the cached entry for inspection.
func (c *BusyCache) Entry(ref models.CalendarRef) (models.CacheEntry, bool) {
	v, ok := c.slots.Load(ref.Key())
	if !ok {
		return models.CacheEntry{}, false
	}
	s := v.(*cacheSlot)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return models.CacheEntry{}, false
	}
	return *s.entry, true
}
