package factory

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

type EventStatus string

const (
	EventStarted EventStatus = "started"
	EventDone    EventStatus = "done"
	EventFailed  EventStatus = "failed"
	EventSummary EventStatus = "summary"
)

// ProgressEvent is emitted once before and once after each file, then once
// more with the batch totals when the run ends. Index is 1-based for
// display; Ok and Failed are populated on the summary event only.
type ProgressEvent struct {
	Index    int         `json:"index"`
	Total    int         `json:"total"`
	FileName string      `json:"file_name"`
	Status   EventStatus `json:"status"`
	Percent  int         `json:"percent"`
	Ok       int         `json:"ok,omitempty"`
	Failed   int         `json:"failed,omitempty"`
}

// EventSink receives progress events. Implementations must not block; the
// worker calls it inline between tool invocations.
type EventSink func(ProgressEvent)

// Summary is the final accounting of one batch run.
type Summary struct {
	Total     int  `json:"total"`
	Ok        int  `json:"ok"`
	Failed    int  `json:"failed"`
	Cancelled bool `json:"cancelled"`
}

// FileProcessor is the per-file slice of the processor.
type FileProcessor interface {
	Process(ctx context.Context, inputPath, outputPath string, opts ProcessOptions) ProcessingResult
}

// Verifier confirms the external tool is runnable before a batch starts.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Worker runs one batch: files strictly in input order, one at a time, a
// single file's failure never stopping the loop. Cancellation is observed
// between files only; a launched tool process runs to completion.
type Worker struct {
	processor FileProcessor
	verifier  Verifier
	sink      EventSink
	logger    *slog.Logger

	// OnResult, when set, receives each file's outcome as it lands. The
	// batch runner uses it to persist batch items.
	OnResult func(index int, inputPath string, res ProcessingResult)
}

func NewWorker(processor FileProcessor, verifier Verifier, sink EventSink, logger *slog.Logger) *Worker {
	return &Worker{processor: processor, verifier: verifier, sink: sink, logger: logger}
}

// Run processes inputs in order. The returned error is non-nil only for
// the one fatal condition: the tool being unresolvable at batch start.
// Everything after that, including every per-file failure, lands in the
// summary.
func (w *Worker) Run(ctx context.Context, inputs []string, outputDir string, opts ProcessOptions) (Summary, error) {
	total := len(inputs)
	summary := Summary{Total: total}

	if w.verifier != nil {
		if err := w.verifier.Verify(ctx); err != nil {
			return summary, fmt.Errorf("tool verification failed: %w", err)
		}
	}

	suffix := opts.OutputSuffix
	if suffix == "" {
		suffix = "_processed"
	}

	for i, input := range inputs {
		select {
		case <-ctx.Done():
			summary.Cancelled = true
			if w.logger != nil {
				w.logger.Info("batch cancelled", "processed", i, "total", total)
			}
			w.emitSummary(summary)
			return summary, nil
		default:
		}

		w.emit(ProgressEvent{
			Index:    i + 1,
			Total:    total,
			FileName: filepath.Base(input),
			Status:   EventStarted,
			Percent:  i * 100 / total,
		})

		res := w.processFile(ctx, input, OutputPath(input, outputDir, suffix), opts)

		status := EventDone
		if res.Success {
			summary.Ok++
		} else {
			summary.Failed++
			status = EventFailed
		}
		if w.OnResult != nil {
			w.OnResult(i, input, res)
		}
		w.emit(ProgressEvent{
			Index:    i + 1,
			Total:    total,
			FileName: filepath.Base(input),
			Status:   status,
			Percent:  (i + 1) * 100 / total,
		})
	}

	if w.logger != nil {
		w.logger.Info("batch finished", "total", total, "ok", summary.Ok, "failed", summary.Failed)
	}
	w.emitSummary(summary)
	return summary, nil
}

func (w *Worker) emitSummary(s Summary) {
	processed := s.Ok + s.Failed
	percent := 0
	if s.Total > 0 {
		percent = processed * 100 / s.Total
	}
	w.emit(ProgressEvent{
		Index:   processed,
		Total:   s.Total,
		Status:  EventSummary,
		Percent: percent,
		Ok:      s.Ok,
		Failed:  s.Failed,
	})
}

// processFile guards the processor call: anything unexpected escaping it
// becomes that file's failure, never the batch's.
func (w *Worker) processFile(ctx context.Context, input, output string, opts ProcessOptions) (res ProcessingResult) {
	defer func() {
		if r := recover(); r != nil {
			if w.logger != nil {
				w.logger.Error("panic during file processing", "input", input, "panic", r)
			}
			res = ProcessingResult{
				Err:          fmt.Errorf("internal error: %v", r),
				ErrorMessage: fmt.Sprintf("internal error: %v", r),
			}
		}
	}()
	return w.processor.Process(ctx, input, output, opts)
}

func (w *Worker) emit(ev ProgressEvent) {
	if w.sink != nil {
		w.sink(ev)
	}
}
