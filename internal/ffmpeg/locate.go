package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Toolset holds the resolved paths of the external media binaries.
type Toolset struct {
	FFmpeg  string
	FFprobe string
}

// Resolve locates ffmpeg and ffprobe using the documented search order:
// explicit configured path, then the bin directory next to the agent
// executable, then the system PATH. A configured path that does not
// resolve is an error rather than a silent fallthrough.
func Resolve(ffmpegPath, ffprobePath string) (Toolset, error) {
	if ffmpegPath != "" || ffprobePath != "" {
		ffmpeg, err := resolveExplicit(ffmpegPath, "ffmpeg")
		if err != nil {
			return Toolset{}, err
		}
		ffprobe, err := resolveExplicit(ffprobePath, "ffprobe")
		if err != nil {
			return Toolset{}, err
		}
		return Toolset{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
	}

	if ts, ok := resolveBundled(); ok {
		return ts, nil
	}

	ffmpeg, err1 := exec.LookPath(binaryName("ffmpeg"))
	ffprobe, err2 := exec.LookPath(binaryName("ffprobe"))
	if err1 != nil || err2 != nil {
		return Toolset{}, fmt.Errorf("%w: not in bundled bin directory or PATH", ErrNotFound)
	}
	return Toolset{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

func resolveExplicit(configured, name string) (string, error) {
	if configured == "" {
		return exec.LookPath(binaryName(name))
	}
	if _, err := os.Stat(configured); err != nil {
		return "", fmt.Errorf("%w: configured %s path %q: %v", ErrNotFound, name, configured, err)
	}
	return configured, nil
}

// resolveBundled checks for binaries shipped next to the agent executable,
// the layout the Windows installer produces.
func resolveBundled() (Toolset, bool) {
	exe, err := os.Executable()
	if err != nil {
		return Toolset{}, false
	}
	for _, sub := range []string{"bin", "tools"} {
		dir := filepath.Join(filepath.Dir(exe), sub)
		ffmpeg := filepath.Join(dir, binaryName("ffmpeg"))
		ffprobe := filepath.Join(dir, binaryName("ffprobe"))
		if fileExists(ffmpeg) && fileExists(ffprobe) {
			return Toolset{FFmpeg: ffmpeg, FFprobe: ffprobe}, true
		}
	}
	return Toolset{}, false
}

func binaryName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
