package ffmpeg

import "errors"

// Tool-boundary errors. The processing layer wraps these into per-file
// results; they never terminate a batch.
var (
	// ErrNotFound means no usable ffmpeg/ffprobe binary could be resolved
	// from config, the bundled bin directory, or PATH.
	ErrNotFound = errors.New("ffmpeg binary not found")

	// ErrProbe means the tool could not report a usable media duration.
	ErrProbe = errors.New("probe failed")

	// ErrToolInvocation means the tool process could not be started.
	ErrToolInvocation = errors.New("tool failed to start")

	// ErrToolExecution means the tool ran but exited nonzero.
	ErrToolExecution = errors.New("tool exited with error")

	// ErrTempFile means the filter-graph script file could not be created.
	// This is surfaced as an execution failure, never silently downgraded
	// to direct mode: an inline retry could itself exceed the command-line
	// limit.
	ErrTempFile = errors.New("filter script file could not be created")
)
