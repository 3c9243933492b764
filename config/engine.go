package config

import (
	"slotwise/services/availability"
	"slotwise/services/booking"
	"slotwise/services/calendar"
)

// EngineConfig groups the typed settings of the scheduling components.
type EngineConfig struct {
	Cache        calendar.CacheConfig
	Availability availability.Config
	Booking      booking.Config
}

// Engine converts AppConfig into component settings. Zero values fall back
// to each component's defaults.
func Engine() EngineConfig {
	c := AppConfig

	cache := calendar.DefaultCacheConfig()
	if c.CacheTTL > 0 {
		cache.TTL = c.CacheTTL
	}
	if c.CacheIdleTTL > 0 {
		cache.IdleTTL = c.CacheIdleTTL
	}
	if c.CacheFetchTimeout > 0 {
		cache.FetchTimeout = c.CacheFetchTimeout
	}
	if c.CacheRefreshRetries >= 0 {
		cache.RefreshRetries = c.CacheRefreshRetries
	}

	avail := availability.DefaultConfig()
	avail.AllowPartialAvailability = c.AllowPartialAvailability
	if c.MaxRangeDays > 0 {
		avail.MaxRangeDays = c.MaxRangeDays
	}
	if c.FetchConcurrency > 0 {
		avail.FetchConcurrency = c.FetchConcurrency
	}

	book := booking.DefaultConfig()
	if c.LockTimeout > 0 {
		book.LockTimeout = c.LockTimeout
	}
	if c.CommitTimeout > 0 {
		book.CommitTimeout = c.CommitTimeout
	}
	if c.RevalidateAfter > 0 {
		book.RevalidateAfter = c.RevalidateAfter
	}
	if c.IdempotencyTTL > 0 {
		book.IdempotencyTTL = c.IdempotencyTTL
	}

	return EngineConfig{Cache: cache, Availability: avail, Booking: book}
}
