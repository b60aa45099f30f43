// Package trigger re-runs the crawl pipeline on a fixed interval.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval runs the crawl once a week.
const DefaultInterval = 7 * 24 * time.Hour

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Trigger runs Job immediately and then every Interval until the context
// ends. A failing or panicking run is logged and the loop continues.
type Trigger struct {
	Interval time.Duration
	Job      Job
	Logger   *zap.Logger
}

// Run blocks until ctx is done and returns ctx.Err().
func (t *Trigger) Run(ctx context.Context) error {
	if t.Job == nil {
		return errors.New("trigger: job is required")
	}
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := t.logger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		t.RunOnce(ctx)
		logger.Info("next run scheduled", zap.Time("at", time.Now().Add(interval)))
		select {
		case <-ctx.Done():
			logger.Info("trigger stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes Job with panic isolation and reports its error, if any.
func (t *Trigger) RunOnce(ctx context.Context) (err error) {
	logger := t.logger()
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scheduled run panicked: %v", rec)
			logger.Error("scheduled run panicked", zap.Any("panic", rec))
		}
	}()

	logger.Info("scheduled run starting")
	if err = t.Job(ctx); err != nil {
		logger.Error("scheduled run failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	logger.Info("scheduled run finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (t *Trigger) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}
