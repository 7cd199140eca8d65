package factory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tikops/tikops-agent/internal/ffmpeg"
)

// Stderr kept in a per-file error message. Downstream logs and the batch
// items table stay bounded no matter how chatty the tool is.
const maxErrorMessageLen = 2000

// ProcessingResult is the immutable per-file outcome handed back to the
// batch worker. Err carries the typed cause for callers that branch on
// it; ErrorMessage is the bounded human-readable form that gets stored.
type ProcessingResult struct {
	Success         bool
	OutputPath      string
	Err             error
	ErrorMessage    string
	DurationSeconds float64
}

// MediaProber is the probing slice of the tool layer.
type MediaProber interface {
	Duration(ctx context.Context, path string) (float64, error)
	HasAudio(ctx context.Context, path string) bool
}

// PlanExecutor runs composed invocations. *ffmpeg.Executor satisfies it.
type PlanExecutor interface {
	Execute(ctx context.Context, plan ffmpeg.ExecutionPlan) (ffmpeg.RunResult, error)
	Verify(ctx context.Context) error
}

// Processor turns one input file into one processed output file. Every
// failure mode is converted into a ProcessingResult at this boundary; the
// worker's loop never sees an error from Process.
type Processor struct {
	executor PlanExecutor
	prober   MediaProber
	planner  SegmentPlanner
	logger   *slog.Logger
}

func NewProcessor(executor PlanExecutor, prober MediaProber, planner SegmentPlanner, logger *slog.Logger) *Processor {
	return &Processor{executor: executor, prober: prober, planner: planner, logger: logger}
}

// OutputPath derives the output filename next to outputDir from the
// input's base name plus the configured suffix.
func OutputPath(inputPath, outputDir, suffix string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(outputDir, name+suffix+ext)
}

func (p *Processor) Process(ctx context.Context, inputPath, outputPath string, opts ProcessOptions) ProcessingResult {
	start := time.Now()

	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return p.fail(start, fmt.Errorf("%w: %s", ErrInputNotFound, inputPath))
		}
		return p.fail(start, fmt.Errorf("%w: %v", ErrInputInvalid, err))
	}
	if info.Size() == 0 {
		return p.fail(start, fmt.Errorf("%w: %s is empty", ErrInputInvalid, inputPath))
	}

	duration, err := p.prober.Duration(ctx, inputPath)
	if err != nil {
		return p.fail(start, err)
	}

	segments, err := p.planner.Plan(duration, opts)
	if err != nil {
		return p.fail(start, err)
	}

	audio := p.prober.HasAudio(ctx, inputPath)
	res, err := p.runGraph(ctx, inputPath, outputPath, segments, opts, audio)
	if err != nil {
		return p.fail(start, err)
	}

	// Some sources carry no mappable audio stream even when the container
	// claims one; retry once with a video-only graph.
	if !res.IsSuccess() && audio && strings.Contains(res.StderrTail, "matches no streams") {
		if p.logger != nil {
			p.logger.Info("no mappable audio stream, retrying video-only", "input", inputPath)
		}
		res, err = p.runGraph(ctx, inputPath, outputPath, segments, opts, false)
		if err != nil {
			return p.fail(start, err)
		}
	}

	if !res.IsSuccess() {
		return p.fail(start, fmt.Errorf("%w: exit %d: %s",
			ffmpeg.ErrToolExecution, res.ExitCode, ffmpeg.Truncate(res.StderrTail, maxErrorMessageLen)))
	}

	// Exit 0 is not enough: the tool can exit cleanly after writing a
	// truncated or empty file.
	out, err := os.Stat(outputPath)
	if err != nil || out.Size() == 0 {
		return p.fail(start, fmt.Errorf("%w: %s", ErrOutputMissing, outputPath))
	}

	elapsed := time.Since(start)
	if p.logger != nil {
		p.logger.Info("file processed",
			"input", inputPath,
			"output", outputPath,
			"segments", len(segments),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return ProcessingResult{
		Success:         true,
		OutputPath:      outputPath,
		DurationSeconds: elapsed.Seconds(),
	}
}

func (p *Processor) runGraph(ctx context.Context, inputPath, outputPath string, segments []ffmpeg.SegmentTransform, opts ProcessOptions, audio bool) (ffmpeg.RunResult, error) {
	graph, err := ffmpeg.BuildGraph(segments, ffmpeg.GraphOptions{
		Audio:     audio,
		PostChain: postChain(opts),
	})
	if err != nil {
		return ffmpeg.RunResult{}, err
	}

	args := []string{"-y", "-i", inputPath, "-filter_complex", graph.Payload(), "-map", "[" + graph.VideoOut + "]"}
	if graph.HasAudio() {
		args = append(args, "-map", "["+graph.AudioOut+"]")
	}
	args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", "23")
	if graph.HasAudio() {
		args = append(args, "-c:a", "aac")
	} else {
		args = append(args, "-an")
	}
	if opts.StripMetadata {
		args = append(args, "-map_metadata", "-1")
	}
	args = append(args, outputPath)

	plan := ffmpeg.NewPlan(args, graph.Payload())
	if p.logger != nil {
		p.logger.Debug("executing plan",
			"input", inputPath,
			"mode", plan.Mode.String(),
			"estimated_len", ffmpeg.EstimateArgLength(plan.FilterPayload),
		)
	}
	return p.executor.Execute(ctx, plan)
}

// postChain renders the whole-video effects into a video filter chain
// applied after the segments are joined.
func postChain(opts ProcessOptions) []string {
	var chain []string
	if opts.Mirror {
		chain = append(chain, "hflip")
	}
	if opts.MicroZoom {
		chain = append(chain, "scale=iw*1.03:ih*1.03,crop=iw/1.03:ih/1.03")
	}
	if opts.ColorShift {
		chain = append(chain, "eq=gamma=1.02:saturation=1.05")
	}
	if opts.AddNoise {
		chain = append(chain, "noise=alls=6:allf=t")
	}
	return chain
}

func (p *Processor) fail(start time.Time, err error) ProcessingResult {
	if p.logger != nil {
		p.logger.Warn("file processing failed", "error", err)
	}
	return ProcessingResult{
		Err:             err,
		ErrorMessage:    ffmpeg.Truncate(err.Error(), maxErrorMessageLen),
		DurationSeconds: time.Since(start).Seconds(),
	}
}
