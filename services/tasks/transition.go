package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"slotwise/models"

	"github.com/hibiken/asynq"
)

const TypeBookingTransition = "booking:transition"

// NewTransitionTask wraps a booking state change for the async worker. The
// task ID makes re-enqueueing the same transition a no-op.
func NewTransitionTask(ev models.TransitionEvent) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingTransition, b)
	opts := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("%s:%s:%d", ev.BookingID, ev.ToState, ev.OccurredAt.UnixNano())),
		asynq.MaxRetry(10),
		asynq.Retention(24 * time.Hour),
	}
	return task, opts, nil
}

// ParseTransitionTask decodes the event carried by a transition task.
func ParseTransitionTask(task *asynq.Task) (models.TransitionEvent, error) {
	var ev models.TransitionEvent
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return models.TransitionEvent{}, fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}
	return ev, nil
}
