package models

import "time"

// CalendarRef identifies one connected calendar of a host.
type CalendarRef struct {
	CredentialID string `bson:"credentialId" json:"credentialId" binding:"required"`
	CalendarID   string `bson:"calendarId" json:"calendarId" binding:"required"`
	Provider     string `bson:"provider" json:"provider" binding:"required"` // e.g., "google", "static"
}

// Key is the cache key of the calendar.
func (r CalendarRef) Key() string {
	return r.CredentialID + "|" + r.CalendarID
}

// CacheEntry is the cached busy state of one calendar.
type CacheEntry struct {
	CalendarID    string
	CredentialID  string
	Busy          BusySet
	Window        Interval // range the busy set was fetched for
	FetchedAt     time.Time
	ExpiresAt     time.Time
	SourceVersion uint64
	Degraded      bool
}

// Fresh reports whether the entry may be served without a refresh at now.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}

// InvalidationEvent is a push notification from a calendar provider.
type InvalidationEvent struct {
	CredentialID string `json:"credentialId" binding:"required"`
	CalendarID   string `json:"calendarId"` // empty invalidates every calendar of the credential
	Removed      bool   `json:"removed,omitempty"`
}
