package booking

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies the inputs of a reservation so that an idempotency
// key replayed with different inputs can be told apart from a retry.
func Fingerprint(req ReserveRequest) string {
	parts := []string{
		req.HostID,
		req.EventTypeID,
		req.Interval.Start.UTC().Format(time.RFC3339Nano),
		req.Interval.End.UTC().Format(time.RFC3339Nano),
		strings.ToLower(strings.TrimSpace(req.Attendee.Email)),
		strings.TrimSpace(req.Attendee.Name),
		req.Attendee.TimeZone,
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
