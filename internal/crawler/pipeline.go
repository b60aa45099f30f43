package crawler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/metrics"
)

// Run outcome labels recorded in metrics.
const (
	RunSucceeded   = "succeeded"
	RunFailed      = "failed"
	RunInterrupted = "interrupted"
)

// ErrRunInProgress is returned by RunOnce while another run is active.
var ErrRunInProgress = errors.New("crawler: a run is already in progress")

// Pipeline runs a crawl pass and then promotes, announces and records what it
// produced. Publisher and RunStore are optional.
type Pipeline struct {
	scheduler *Scheduler
	promoter  Promoter
	publisher Publisher
	runs      RunStore
	logger    *zap.Logger
	running   atomic.Bool
}

// NewPipeline wires a Pipeline. A nil promoter leaves files in staging.
func NewPipeline(scheduler *Scheduler, promoter Promoter, publisher Publisher, runs RunStore, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		scheduler: scheduler,
		promoter:  promoter,
		publisher: publisher,
		runs:      runs,
		logger:    logger,
	}
}

// Running reports whether a run is active.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// RunOnce crawls, promotes new files, publishes one event per promoted
// content file and records the run. Promotion still happens for an
// interrupted crawl so that completed fetches are not lost. Runs never
// overlap: a concurrent call returns ErrRunInProgress.
func (p *Pipeline) RunOnce(ctx context.Context) (RunSummary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	summary, crawlErr := p.scheduler.Run(ctx)
	logger := p.logger.With(zap.String("run_id", summary.RunID))

	// Promotion and bookkeeping outlive a cancelled crawl.
	bgCtx := context.WithoutCancel(ctx)
	promoteErr := p.promote(bgCtx, &summary, logger)

	status := RunSucceeded
	switch {
	case errors.Is(crawlErr, context.Canceled), errors.Is(crawlErr, context.DeadlineExceeded):
		status = RunInterrupted
		summary.Error = crawlErr.Error()
	case crawlErr != nil:
		status = RunFailed
		summary.Error = crawlErr.Error()
	case promoteErr != nil:
		status = RunFailed
		summary.Error = promoteErr.Error()
	}
	metrics.ObserveRun(status, summary.Duration())

	if p.runs != nil {
		if err := p.runs.RecordRun(bgCtx, summary); err != nil {
			logger.Warn("record run failed", zap.Error(err))
		}
	}
	logger.Info("run complete",
		zap.String("status", status),
		zap.Int("new_files", len(summary.NewFiles)),
		zap.Int("promoted", len(summary.Promoted)),
		zap.Int("published", summary.Published),
	)
	return summary, errors.Join(crawlErr, promoteErr)
}

func (p *Pipeline) promote(ctx context.Context, summary *RunSummary, logger *zap.Logger) error {
	if p.promoter == nil || len(summary.Records) == 0 {
		return nil
	}
	var errs []error
	for _, record := range summary.Records {
		paths := record.Paths()
		dests, err := p.promoter.Promote(ctx, paths)
		if err != nil {
			logger.Error("promote failed", zap.String("source_url", record.Metadata.SourceURL), zap.Error(err))
			metrics.ObservePromotion("failed", len(paths)-len(dests))
			errs = append(errs, err)
		}
		metrics.ObservePromotion("promoted", len(dests))
		if err == nil {
			metrics.ObservePromotion("skipped", len(paths)-len(dests))
		}
		summary.Promoted = append(summary.Promoted, dests...)
		for _, dest := range dests {
			if filepath.Ext(dest) == MetadataExt {
				continue
			}
			if p.publish(ctx, summary.RunID, record, dest, logger) {
				summary.Published++
			}
		}
	}
	logger.Info("promotion complete",
		zap.Int("candidates", 2*len(summary.Records)),
		zap.Int("promoted", len(summary.Promoted)),
	)
	return errors.Join(errs...)
}

func (p *Pipeline) publish(ctx context.Context, runID string, record FetchRecord, dest string, logger *zap.Logger) bool {
	if p.publisher == nil {
		return false
	}
	event := PromotionEvent{
		RunID:       runID,
		SourceURL:   record.Metadata.SourceURL,
		Object:      dest,
		ContentType: record.Metadata.ContentType,
	}
	id, err := p.publisher.Publish(ctx, event)
	if err != nil {
		metrics.ObservePublish("failed")
		logger.Warn("publish promotion event failed", zap.String("object", dest), zap.Error(err))
		return false
	}
	metrics.ObservePublish("published")
	logger.Debug("published promotion event", zap.String("object", dest), zap.String("message_id", id))
	return true
}
