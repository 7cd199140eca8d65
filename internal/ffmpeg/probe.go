package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Prober answers media questions via ffprobe.
type Prober struct {
	tools  Toolset
	runner Runner
}

func NewProber(tools Toolset, runner Runner) *Prober {
	return &Prober{tools: tools, runner: runner}
}

// Duration returns the media duration in seconds. A duration the tool
// cannot report, or reports as non-positive, is a probe error.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	res, err := p.runner.Run(ctx, p.tools.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbe, err)
	}
	if !res.IsSuccess() {
		return 0, fmt.Errorf("%w: ffprobe exited %d: %s", ErrProbe, res.ExitCode, Truncate(res.StderrTail, 512))
	}

	out := strings.TrimSpace(res.Stdout)
	d, perr := strconv.ParseFloat(out, 64)
	if perr != nil {
		return 0, fmt.Errorf("%w: unparseable duration %q", ErrProbe, out)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: non-positive duration %g", ErrProbe, d)
	}
	return d, nil
}

// HasAudio reports whether the file carries at least one audio stream.
// Probe failures degrade to false: the processing layer falls back to a
// video-only graph when the audio leg cannot be mapped.
func (p *Prober) HasAudio(ctx context.Context, path string) bool {
	res, err := p.runner.Run(ctx, p.tools.FFprobe,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_type",
		"-of", "default=nw=1:nk=1",
		path,
	)
	if err != nil || !res.IsSuccess() {
		return false
	}
	return strings.TrimSpace(res.Stdout) == "audio"
}
