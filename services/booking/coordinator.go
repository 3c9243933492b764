// Package booking turns a chosen slot into a booking without double
// allocation and drives the booking lifecycle afterwards.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bookingRepo "slotwise/database/repository/booking"
	"slotwise/models"
	"slotwise/services/availability"
	"slotwise/services/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	LockTimeout     time.Duration // bound on acquiring the host-day locks
	CommitTimeout   time.Duration // bound on the store write once started
	RevalidateAfter time.Duration // calendar entries older than this are refreshed before booking
	IdempotencyTTL  time.Duration
	DispatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		LockTimeout:     5 * time.Second,
		CommitTimeout:   5 * time.Second,
		RevalidateAfter: 5 * time.Second,
		IdempotencyTTL:  24 * time.Hour,
		DispatchTimeout: 10 * time.Second,
	}
}

// Coordinator reserves slots and applies booking state transitions.
type Coordinator struct {
	engine     *availability.Engine
	store      bookingRepo.Store
	locker     HostLocker
	dispatcher notification.Dispatcher
	cfg        Config
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger

	inflight sync.WaitGroup
}

func NewCoordinator(
	engine *availability.Engine,
	store bookingRepo.Store,
	locker HostLocker,
	dispatcher notification.Dispatcher,
	cfg Config,
	now func() time.Time,
	logger *zap.Logger,
) *Coordinator {
	def := DefaultConfig()
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = def.LockTimeout
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = def.CommitTimeout
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = def.IdempotencyTTL
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = def.DispatchTimeout
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		engine:     engine,
		store:      store,
		locker:     locker,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        now,
		newID:      uuid.NewString,
		logger:     logger,
	}
}

// ReserveRequest is a request to book one interval of an event type.
type ReserveRequest struct {
	HostID         string
	EventTypeID    string
	Interval       models.Interval
	Attendee       models.Attendee
	IdempotencyKey string
}

func (r ReserveRequest) Validate() error {
	v := &models.ValidationError{}
	if r.HostID == "" {
		v.Add("hostId", "is required")
	}
	if r.EventTypeID == "" {
		v.Add("eventTypeId", "is required")
	}
	var ive *models.ValidationError
	if errors.As(r.Interval.Validate(), &ive) {
		v.Merge(ive)
	}
	if strings.TrimSpace(r.Attendee.Email) == "" {
		v.Add("attendee.email", "is required")
	}
	if r.Attendee.TimeZone != "" {
		if _, err := time.LoadLocation(r.Attendee.TimeZone); err != nil {
			v.Add("attendee.timeZone", fmt.Sprintf("unknown time zone %q", r.Attendee.TimeZone))
		}
	}
	return v.OrNil()
}

// Reserve books req.Interval. A repeated call with the same idempotency key
// and inputs returns the original booking.
func (c *Coordinator) Reserve(ctx context.Context, req ReserveRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Interval = models.Interval{Start: req.Interval.Start.UTC(), End: req.Interval.End.UTC()}
	fp := Fingerprint(req)

	if b, err := c.replay(ctx, req, fp); b != nil || err != nil {
		return b, err
	}

	hr, err := c.engine.Rules(ctx, req.HostID, req.EventTypeID)
	if err != nil {
		return nil, err
	}
	release, err := c.lock(ctx, hr, req.Interval)
	if err != nil {
		return nil, err
	}
	b, events, err := c.reserveLocked(ctx, hr, req, fp)
	release()
	if err != nil {
		return nil, err
	}

	c.logger.Info("booking reserved",
		zap.String("bookingID", b.ID),
		zap.String("hostID", b.HostID),
		zap.Stringer("interval", b.Interval),
		zap.String("state", string(b.State)))
	c.dispatch(events)
	return b, nil
}

func (c *Coordinator) reserveLocked(ctx context.Context, hr *availability.HostRules, req ReserveRequest, fp string) (*models.Booking, []models.TransitionEvent, error) {
	// the key may have been used while this call waited for the lock
	if b, err := c.replay(ctx, req, fp); b != nil || err != nil {
		return b, nil, err
	}
	if _, err := c.engine.CheckInterval(ctx, hr, availability.CheckRequest{
		Interval: req.Interval,
		MaxAge:   c.cfg.RevalidateAfter,
	}); err != nil {
		return nil, nil, err
	}

	now := c.now()
	b, events := c.newBooking(hr, req, now)
	var rec *models.IdempotencyRecord
	if req.IdempotencyKey != "" {
		rec = &models.IdempotencyRecord{
			Key:         req.IdempotencyKey,
			HostID:      req.HostID,
			Fingerprint: fp,
			BookingID:   b.ID,
			CreatedAt:   now,
			ExpiresAt:   now.Add(c.cfg.IdempotencyTTL),
		}
	}

	err := c.commit(ctx, func(ctx context.Context) error {
		return c.store.Create(ctx, b, rec)
	})
	if errors.Is(err, models.ErrDuplicateReservation) {
		// lost a race on the key against a request for other host-days
		if prior, replayErr := c.replay(ctx, req, fp); prior != nil || replayErr != nil {
			return prior, nil, replayErr
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return b, events, nil
}

// newBooking creates the booking in Pending and, unless the event type needs
// host approval, confirms it before it is ever persisted.
func (c *Coordinator) newBooking(hr *availability.HostRules, req ReserveRequest, now time.Time) (*models.Booking, []models.TransitionEvent) {
	b := &models.Booking{
		ID:               c.newID(),
		HostID:           req.HostID,
		EventTypeID:      req.EventTypeID,
		Interval:         req.Interval,
		AttendeeTimeZone: req.Attendee.TimeZone,
		Attendee:         req.Attendee,
		State:            models.BookingPending,
		IdempotencyKey:   req.IdempotencyKey,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if hr.EventType.Rules.RequiresConfirmation {
		return b, []models.TransitionEvent{models.CreatedEvent(b)}
	}
	ev, _ := b.Transition(models.BookingConfirmed, now)
	return b, []models.TransitionEvent{ev}
}

// replay returns the booking an idempotency key already produced, or
// ErrDuplicateReservation when the key was used with other inputs.
func (c *Coordinator) replay(ctx context.Context, req ReserveRequest, fp string) (*models.Booking, error) {
	if req.IdempotencyKey == "" {
		return nil, nil
	}
	rec, err := c.store.FindIdempotency(ctx, req.HostID, req.IdempotencyKey, c.now())
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if rec.Fingerprint != fp {
		return nil, fmt.Errorf("idempotency key %q: %w", req.IdempotencyKey, models.ErrDuplicateReservation)
	}
	b, err := c.store.Get(ctx, rec.BookingID)
	if err != nil {
		return nil, fmt.Errorf("load replayed booking: %w", err)
	}
	c.logger.Debug("idempotent replay", zap.String("bookingID", b.ID), zap.String("key", req.IdempotencyKey))
	return b, nil
}

func (c *Coordinator) lock(ctx context.Context, hr *availability.HostRules, iv models.Interval) (func(), error) {
	days := hr.Days(iv)
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = hr.HostID + "|" + d
	}

	lockCtx, cancel := context.WithTimeout(ctx, c.cfg.LockTimeout)
	defer cancel()
	release, err := c.locker.Lock(lockCtx, keys)
	if err == nil {
		return release, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("host %s: %w", hr.HostID, models.ErrConcurrencyTimeout)
	}
	return nil, fmt.Errorf("acquire host lock: %w", err)
}

// commit runs a store write that must not be torn by caller cancellation:
// a call cancelled before the write leaves nothing behind, a write that has
// started completes and the call reports success.
func (c *Coordinator) commit(ctx context.Context, write func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CommitTimeout)
	defer cancel()
	return write(commitCtx)
}

// dispatch hands events to the dispatcher after all locks are released.
// Failures are logged; the stored booking is the source of truth.
func (c *Coordinator) dispatch(events []models.TransitionEvent) {
	if len(events) == 0 || c.dispatcher == nil {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		for _, ev := range events {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DispatchTimeout)
			err := c.dispatcher.Dispatch(ctx, ev)
			cancel()
			if err != nil {
				c.logger.Error("failed to dispatch booking transition",
					zap.String("bookingID", ev.BookingID),
					zap.String("to", string(ev.ToState)),
					zap.Error(err))
			}
		}
	}()
}

// Wait blocks until every dispatch started so far has finished.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

func (c *Coordinator) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	return c.store.Get(ctx, bookingID)
}
