package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024  // tail of stderr kept for diagnostics
	maxStdoutBytes = 64 * 1024 // probe output is tiny; bound it anyway
)

// RunResult is the structured outcome of one media-tool subprocess.
type RunResult struct {
	ExitCode   int
	Stdout     string
	StderrTail string
	Duration   time.Duration
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Runner abstracts subprocess invocation so the orchestration layers can be
// tested without a real media tool. A non-nil error means the process could
// not be started at all; a nonzero ExitCode means it ran and failed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (RunResult, error)
}

// ExecRunner runs commands via os/exec with bounded output capture.
type ExecRunner struct {
	logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (RunResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = io.Writer(&limitedWriter{w: &stdoutBuf, limit: maxStdoutBytes})
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return RunResult{ExitCode: -1, Duration: elapsed},
				fmt.Errorf("%w: %s: %v", ErrToolInvocation, name, err)
		}
		exitCode = exitErr.ExitCode()
	}

	result := RunResult{
		ExitCode:   exitCode,
		Stdout:     stdoutBuf.String(),
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}

	if r.logger != nil {
		if exitCode != 0 {
			r.logger.Warn("media tool failed",
				"exit_code", exitCode,
				"duration_ms", elapsed.Milliseconds(),
				"stderr_tail", Truncate(result.StderrTail, 512),
			)
		} else {
			r.logger.Debug("media tool succeeded",
				"duration_ms", elapsed.Milliseconds(),
			)
		}
	}

	return result, nil
}

// Executor invokes ffmpeg with a composed ExecutionPlan, transparently
// switching to a script-file invocation when the plan calls for it.
type Executor struct {
	tools   Toolset
	runner  Runner
	tempDir string // empty means the OS temp directory
	logger  *slog.Logger
}

func NewExecutor(tools Toolset, runner Runner, tempDir string, logger *slog.Logger) *Executor {
	return &Executor{tools: tools, runner: runner, tempDir: tempDir, logger: logger}
}

func (e *Executor) Tools() Toolset { return e.tools }

// Verify runs `ffmpeg -version` to confirm the resolved binary actually
// executes. Called once per batch, before any file is processed.
func (e *Executor) Verify(ctx context.Context) error {
	res, err := e.runner.Run(ctx, e.tools.FFmpeg, "-version")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: ffmpeg -version exited %d", ErrNotFound, res.ExitCode)
	}
	return nil
}

// Execute runs the plan. Direct plans go straight to the tool; script-file
// plans are materialized first.
func (e *Executor) Execute(ctx context.Context, plan ExecutionPlan) (RunResult, error) {
	if plan.Mode == ModeScriptFile {
		return e.runViaScript(ctx, plan)
	}
	return e.runner.Run(ctx, e.tools.FFmpeg, plan.Args...)
}

// runViaScript writes the filter payload to a uniquely named temp file,
// rewrites the inline filter flag to its file-based form, and invokes the
// tool. The temp file is removed on every exit path; a failed removal is
// logged but never masks the invocation's real outcome.
func (e *Executor) runViaScript(ctx context.Context, plan ExecutionPlan) (RunResult, error) {
	f, err := os.CreateTemp(e.tempDir, "filtergraph-*.txt")
	if err != nil {
		return RunResult{ExitCode: -1}, fmt.Errorf("%w: %v", ErrTempFile, err)
	}
	scriptPath := f.Name()
	defer func() {
		if rmErr := os.Remove(scriptPath); rmErr != nil && e.logger != nil {
			e.logger.Warn("failed to remove filter script", "path", scriptPath, "error", rmErr)
		}
	}()

	_, werr := f.WriteString(plan.FilterPayload)
	cerr := f.Close()
	if werr != nil {
		return RunResult{ExitCode: -1}, fmt.Errorf("%w: write: %v", ErrTempFile, werr)
	}
	if cerr != nil {
		return RunResult{ExitCode: -1}, fmt.Errorf("%w: close: %v", ErrTempFile, cerr)
	}

	args := substituteScriptFlag(plan.Args, scriptPath)

	if e.logger != nil {
		e.logger.Debug("filter payload over inline threshold, using script file",
			"estimated_len", EstimateArgLength(plan.FilterPayload),
			"script", scriptPath,
		)
	}

	return e.runner.Run(ctx, e.tools.FFmpeg, args...)
}

// Truncate bounds a diagnostic string to its last maxLen characters.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
