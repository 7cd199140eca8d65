package factory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tikops/tikops-agent/internal/catalog"
)

// Runner polls the batches table and executes pending batches one at a
// time. A cancel request lands in the database; the runner notices it
// between files and stops the in-flight worker.
type Runner struct {
	repo         catalog.Repository
	processor    FileProcessor
	verifier     Verifier
	outputDir    string
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool

	// Sink receives progress events from whichever batch is in flight.
	// Optional; the tray subscribes here.
	Sink EventSink
}

func NewRunner(repo catalog.Repository, processor FileProcessor, verifier Verifier, outputDir string, logger *slog.Logger) *Runner {
	return &Runner{
		repo:         repo,
		processor:    processor,
		verifier:     verifier,
		outputDir:    outputDir,
		logger:       logger,
		pollInterval: 2 * time.Second,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("batch runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("batch runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextBatch(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("batch runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("batch runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextBatch(ctx context.Context) {
	batch, err := r.repo.ClaimPendingBatch(ctx)
	if err != nil {
		r.logger.Error("failed to claim pending batch", "error", err)
		return
	}
	if batch == nil {
		return
	}

	r.logger.Info("processing batch", "batch_id", batch.ID, "inputs", len(batch.Inputs))
	r.executeBatch(ctx, batch)
}

func (r *Runner) executeBatch(ctx context.Context, batch *catalog.Batch) {
	opts := DefaultOptions()
	if batch.Options != "" {
		if err := json.Unmarshal([]byte(batch.Options), &opts); err != nil {
			r.logger.Error("bad batch options", "batch_id", batch.ID, "error", err)
			r.repo.UpdateBatchStatus(ctx, batch.ID, catalog.BatchStatusFailed, "invalid options: "+err.Error())
			return
		}
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	okCount, failCount := 0, 0
	worker := NewWorker(r.processor, r.verifier, func(ev ProgressEvent) {
		if r.Sink != nil {
			r.Sink(ev)
		}
		if ev.Status != EventStarted {
			r.repo.UpdateBatchProgress(ctx, batch.ID, ev.Percent, okCount, failCount)
		}
	}, r.logger)

	worker.OnResult = func(index int, inputPath string, res ProcessingResult) {
		if res.Success {
			okCount++
		} else {
			failCount++
		}
		item := &catalog.BatchItem{
			ID:         catalog.NewID(),
			BatchID:    batch.ID,
			InputPath:  inputPath,
			OutputPath: res.OutputPath,
			Success:    res.Success,
			Error:      res.ErrorMessage,
			DurationS:  res.DurationSeconds,
			CreatedAt:  time.Now(),
		}
		if err := r.repo.CreateBatchItem(ctx, item); err != nil {
			r.logger.Warn("failed to record batch item", "batch_id", batch.ID, "error", err)
		}

		// A cancel request written while this file was processing takes
		// effect before the next file starts.
		if current, err := r.repo.GetBatch(ctx, batch.ID); err == nil && current != nil &&
			current.Status == catalog.BatchStatusCancelled {
			cancel()
		}
	}

	summary, err := worker.Run(batchCtx, batch.Inputs, r.outputDir, opts)

	switch {
	case err != nil:
		r.repo.UpdateBatchStatus(ctx, batch.ID, catalog.BatchStatusFailed, err.Error())
		r.logger.Error("batch failed", "batch_id", batch.ID, "error", err)
	case summary.Cancelled:
		r.repo.UpdateBatchProgress(ctx, batch.ID, summaryPercent(summary), summary.Ok, summary.Failed)
		r.repo.UpdateBatchStatus(ctx, batch.ID, catalog.BatchStatusCancelled, "")
		r.logger.Info("batch cancelled", "batch_id", batch.ID, "ok", summary.Ok, "failed", summary.Failed)
	default:
		r.repo.UpdateBatchProgress(ctx, batch.ID, 100, summary.Ok, summary.Failed)
		r.repo.UpdateBatchStatus(ctx, batch.ID, catalog.BatchStatusCompleted, "")
		r.logger.Info("batch completed", "batch_id", batch.ID, "ok", summary.Ok, "failed", summary.Failed)
	}
}

func summaryPercent(s Summary) int {
	if s.Total == 0 {
		return 0
	}
	return (s.Ok + s.Failed) * 100 / s.Total
}
