package cron

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper evicts idle cache entries.
type Sweeper interface {
	Sweep() int
}

// StartCacheSweeper runs target.Sweep on the given cron spec, e.g. "@every 5m"
// or "*/10 * * * *". The returned func stops the schedule.
func StartCacheSweeper(spec string, target Sweeper, logger *zap.Logger) (func(), error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() { target.Sweep() })
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()
	logger.Info("cache sweeper started", zap.String("schedule", spec))
	return func() { <-c.Stop().Done() }, nil
}
