package models

import (
	"fmt"
	"time"
)

// BookingState is the lifecycle state of one booking instance.
type BookingState string

const (
	BookingPending     BookingState = "pending"
	BookingConfirmed   BookingState = "confirmed"
	BookingRejected    BookingState = "rejected"
	BookingCancelled   BookingState = "cancelled"
	BookingRescheduled BookingState = "rescheduled"
)

// legalTransitions enumerates every allowed state change. All states except
// pending are terminal for the booking instance, with confirmed allowed to
// move once more to cancelled or rescheduled.
var legalTransitions = map[BookingState][]BookingState{
	BookingPending:   {BookingConfirmed, BookingRejected},
	BookingConfirmed: {BookingCancelled, BookingRescheduled},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to BookingState) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether the booking still occupies its interval.
func (s BookingState) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Attendee is the person booking the slot.
type Attendee struct {
	Name     string `bson:"name" json:"name" binding:"required"`
	Email    string `bson:"email" json:"email" binding:"required,email"`
	TimeZone string `bson:"timeZone" json:"timeZone"`
}

// Booking is a reservation of a host's time.
type Booking struct {
	ID                 string       `bson:"id" json:"id"`
	HostID             string       `bson:"hostId" json:"hostId"`
	EventTypeID        string       `bson:"eventTypeId" json:"eventTypeId"`
	Interval           Interval     `bson:"interval" json:"interval"`
	AttendeeTimeZone   string       `bson:"attendeeTimeZone" json:"attendeeTimeZone"`
	Attendee           Attendee     `bson:"attendee" json:"attendee"`
	State              BookingState `bson:"state" json:"state"`
	IdempotencyKey     string       `bson:"idempotencyKey,omitempty" json:"idempotencyKey,omitempty"`
	RescheduledFrom    string       `bson:"rescheduledFrom,omitempty" json:"rescheduledFrom,omitempty"`
	RescheduledTo      string       `bson:"rescheduledTo,omitempty" json:"rescheduledTo,omitempty"`
	CancellationReason string       `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	CreatedAt          time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// Transition moves the booking to state to and returns the event describing it.
func (b *Booking) Transition(to BookingState, now time.Time) (TransitionEvent, error) {
	if !CanTransition(b.State, to) {
		return TransitionEvent{}, fmt.Errorf("booking %s: %s -> %s: %w", b.ID, b.State, to, ErrInvalidTransition)
	}
	ev := TransitionEvent{
		BookingID:  b.ID,
		HostID:     b.HostID,
		FromState:  b.State,
		ToState:    to,
		OccurredAt: now,
	}
	b.State = to
	b.UpdatedAt = now
	return ev, nil
}

// TransitionEvent is handed to the side-effect dispatcher after a state change is committed.
type TransitionEvent struct {
	BookingID  string       `json:"bookingId"`
	HostID     string       `json:"hostId"`
	FromState  BookingState `json:"fromState,omitempty"`
	ToState    BookingState `json:"toState"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// CreatedEvent describes the creation of a booking in its initial state.
func CreatedEvent(b *Booking) TransitionEvent {
	return TransitionEvent{
		BookingID:  b.ID,
		HostID:     b.HostID,
		ToState:    BookingPending,
		OccurredAt: b.CreatedAt,
	}
}

// IdempotencyRecord remembers which booking an idempotency key produced.
type IdempotencyRecord struct {
	Key         string    `bson:"key" json:"key"`
	HostID      string    `bson:"hostId" json:"hostId"`
	Fingerprint string    `bson:"fingerprint" json:"fingerprint"`
	BookingID   string    `bson:"bookingId" json:"bookingId"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt   time.Time `bson:"expiresAt" json:"expiresAt"`
}
