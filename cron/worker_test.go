package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"slotwise/models"
	"slotwise/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type stubDeliverer struct {
	got []models.TransitionEvent
	err error
}

func (d *stubDeliverer) Deliver(_ context.Context, ev models.TransitionEvent) error {
	d.got = append(d.got, ev)
	return d.err
}

func TestHandleTransitionTask(t *testing.T) {
	ev := models.TransitionEvent{
		BookingID:  "b-1",
		HostID:     "host-1",
		FromState:  models.BookingPending,
		ToState:    models.BookingConfirmed,
		OccurredAt: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
	}
	task, _, err := tasks.NewTransitionTask(ev)
	if err != nil {
		t.Fatalf("NewTransitionTask: %v", err)
	}

	t.Run("delivers the event", func(t *testing.T) {
		d := &stubDeliverer{}
		if err := handleTransitionTask(d, zap.NewNop())(context.Background(), task); err != nil {
			t.Fatalf("handler: %v", err)
		}
		if len(d.got) != 1 || d.got[0].BookingID != "b-1" || !d.got[0].OccurredAt.Equal(ev.OccurredAt) {
			t.Fatalf("unexpected delivery %+v", d.got)
		}
	})

	t.Run("delivery failure is retried", func(t *testing.T) {
		d := &stubDeliverer{err: errors.New("subscriber down")}
		err := handleTransitionTask(d, zap.NewNop())(context.Background(), task)
		if err == nil || errors.Is(err, asynq.SkipRetry) {
			t.Fatalf("expected a retryable error, got %v", err)
		}
	})

	t.Run("malformed payload is not retried", func(t *testing.T) {
		d := &stubDeliverer{}
		bad := asynq.NewTask(tasks.TypeBookingTransition, []byte("{"))
		err := handleTransitionTask(d, zap.NewNop())(context.Background(), bad)
		if !errors.Is(err, asynq.SkipRetry) {
			t.Fatalf("expected SkipRetry, got %v", err)
		}
		if len(d.got) != 0 {
			t.Fatal("malformed task must not be delivered")
		}
	})
}

type countingSweeper struct{ calls atomic.Int32 }

func (s *countingSweeper) Sweep() int {
	s.calls.Add(1)
	return 1
}

func TestStartCacheSweeper(t *testing.T) {
	if _, err := StartCacheSweeper("not a schedule", &countingSweeper{}, zap.NewNop()); err == nil {
		t.Fatal("expected an invalid schedule to be rejected")
	}

	s := &countingSweeper{}
	stop, err := StartCacheSweeper("@every 1s", s, zap.NewNop())
	if err != nil {
		t.Fatalf("StartCacheSweeper: %v", err)
	}
	defer stop()

	deadline := time.Now().Add(3 * time.Second)
	for s.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if s.calls.Load() == 0 {
		t.Fatal("sweeper never ran")
	}
}
