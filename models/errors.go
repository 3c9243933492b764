package models

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrSourceUnavailable is returned when a calendar could not be read and no cached copy exists.
	ErrSourceUnavailable = errors.New("calendar source unavailable")
	// ErrSlotNoLongerAvailable is returned when a reservation loses against the latest busy state.
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")
	// ErrConcurrencyTimeout is returned when the host lock could not be acquired in time. Safe to retry.
	ErrConcurrencyTimeout = errors.New("could not acquire reservation lock in time")
	// ErrDuplicateReservation is returned when an idempotency key is reused with different inputs.
	ErrDuplicateReservation = errors.New("idempotency key reused with different inputs")
	// ErrInvalidTransition is returned for booking state changes outside the state machine.
	ErrInvalidTransition = errors.New("invalid booking state transition")
	// ErrNotFound is returned when a booking, host or event type does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// NewValidationError returns a ValidationError with a single field entry.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add records a field level validation error.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Merge copies entries from another validation error into the receiver.
func (v *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msg := range other.FieldErrors {
		v.Add(field, msg)
	}
}

// OrNil returns nil when nothing was recorded, so callers can return it directly.
func (v *ValidationError) OrNil() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}
