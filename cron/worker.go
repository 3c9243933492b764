package cron

import (
	"context"
	"time"

	"slotwise/config"
	"slotwise/models"
	"slotwise/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Deliverer hands a committed booking transition to its subscribers.
type Deliverer interface {
	Deliver(ctx context.Context, ev models.TransitionEvent) error
}

// InitTransitionWorker runs the async worker that delivers booking
// transitions in background. The returned func stops it.
func InitTransitionWorker(deliverer Deliverer, logger *zap.Logger) func() {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: config.AppConfig.WorkerConcurrency,
			Queues: map[string]int{
				config.AppConfig.TransitionQueue: 1,
			},
			Logger: logger.Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeBookingTransition, handleTransitionTask(deliverer, logger))

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	go monitorRedisConnection(monitorCtx, redisOpts, logger)

	// Start async worker with retry logic
	go func() {
		logger.Info("starting transition worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Start(mux)
			if err == nil {
				return
			}
			logger.Error("failed to start transition worker",
				zap.Int("attempt", attempts),
				zap.Int("maxAttempts", maxAttempts),
				zap.Error(err))
			if attempts == maxAttempts {
				logger.Error("transition worker gave up; transitions stay queued")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()

	return func() {
		stopMonitor()
		srv.Shutdown()
	}
}

func handleTransitionTask(deliverer Deliverer, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		ev, err := tasks.ParseTransitionTask(task)
		if err != nil {
			logger.Warn("dropping malformed transition task", zap.Error(err))
			// retrying cannot fix the payload
			return asynq.SkipRetry
		}

		if err := deliverer.Deliver(ctx, ev); err != nil {
			logger.Warn("transition delivery failed",
				zap.String("bookingID", ev.BookingID),
				zap.String("to", string(ev.ToState)),
				zap.Error(err))
			return err
		}
		logger.Debug("transition delivered",
			zap.String("bookingID", ev.BookingID),
			zap.String("to", string(ev.ToState)))
		return nil
	}
}

// monitorRedisConnection pings the queue Redis periodically to detect failures at runtime.
func monitorRedisConnection(ctx context.Context, opts asynq.RedisClientOpt, logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
				logger.Warn("queue redis connection lost", zap.Error(err))
			}
		}
	}
}
