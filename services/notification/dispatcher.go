// Package notification hands booking state changes to side-effect consumers.
package notification

import (
	"context"
	"errors"
	"fmt"

	"slotwise/models"
	"slotwise/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Dispatcher receives every committed booking transition. Delivery and
// retries are the dispatcher's concern; callers only log failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.TransitionEvent) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, ev models.TransitionEvent) error

func (f DispatcherFunc) Dispatch(ctx context.Context, ev models.TransitionEvent) error {
	return f(ctx, ev)
}

// LogDispatcher only logs events. Used in development.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, ev models.TransitionEvent) error {
	d.logger.Info("booking transition",
		zap.String("bookingID", ev.BookingID),
		zap.String("hostID", ev.HostID),
		zap.String("from", string(ev.FromState)),
		zap.String("to", string(ev.ToState)),
		zap.Time("occurredAt", ev.OccurredAt))
	return nil
}

// Enqueuer is the part of *asynq.Client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher enqueues transitions for the transition worker.
type AsynqDispatcher struct {
	client Enqueuer
	queue  string
}

func NewAsynqDispatcher(client Enqueuer, queue string) *AsynqDispatcher {
	if queue == "" {
		queue = "default"
	}
	return &AsynqDispatcher{client: client, queue: queue}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, ev models.TransitionEvent) error {
	task, opts, err := tasks.NewTransitionTask(ev)
	if err != nil {
		return fmt.Errorf("build transition task: %w", err)
	}
	opts = append(opts, asynq.Queue(d.queue))
	if _, err := d.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue transition for booking %s: %w", ev.BookingID, err)
	}
	return nil
}
