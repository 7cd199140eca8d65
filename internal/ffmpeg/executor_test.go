package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner captures the invocation and optionally inspects the script
// file while the process would be running.
type fakeRunner struct {
	result RunResult
	err    error

	gotName string
	gotArgs []string
	inspect func(args []string)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (RunResult, error) {
	f.gotName = name
	f.gotArgs = args
	if f.inspect != nil {
		f.inspect(args)
	}
	return f.result, f.err
}

func scriptArg(t *testing.T, args []string) string {
	t.Helper()
	for i, a := range args {
		if a == "-filter_complex_script" {
			if i+1 >= len(args) {
				t.Fatal("script flag has no path argument")
			}
			return args[i+1]
		}
	}
	t.Fatalf("no script flag in args: %v", args)
	return ""
}

func listTempFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "filtergraph-*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func longPlan(args []string) ExecutionPlan {
	payload := strings.Repeat("[0:v]hflip[vout];", PayloadThreshold/10)
	return ExecutionPlan{Mode: ModeScriptFile, Args: args, FilterPayload: payload}
}

func TestExecute_DirectPassesArgsVerbatim(t *testing.T) {
	runner := &fakeRunner{result: RunResult{ExitCode: 0}}
	ex := NewExecutor(Toolset{FFmpeg: "ffmpeg"}, runner, t.TempDir(), nil)

	plan := ExecutionPlan{
		Mode: ModeDirect,
		Args: []string{"-y", "-i", "in.mp4", "-filter_complex", "[0:v]hflip[vout]", "out.mp4"},
	}
	res, err := ex.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.IsSuccess() {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if runner.gotName != "ffmpeg" {
		t.Errorf("ran %q, want ffmpeg", runner.gotName)
	}
	for _, a := range runner.gotArgs {
		if a == "-filter_complex_script" {
			t.Error("direct plan must not use the script flag")
		}
	}
}

func TestExecute_ScriptFileWrittenAndRemoved(t *testing.T) {
	tempDir := t.TempDir()
	plan := longPlan([]string{"-y", "-i", "in.mp4", "-filter_complex", "placeholder", "out.mp4"})

	runner := &fakeRunner{result: RunResult{ExitCode: 0}}
	runner.inspect = func(args []string) {
		path := scriptArg(t, args)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("script file unreadable during run: %v", err)
		}
		if string(data) != plan.FilterPayload {
			t.Error("script file content does not match the filter payload")
		}
	}

	ex := NewExecutor(Toolset{FFmpeg: "ffmpeg"}, runner, tempDir, nil)
	res, err := ex.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.IsSuccess() {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if left := listTempFiles(t, tempDir); len(left) != 0 {
		t.Errorf("temp files left after success: %v", left)
	}
}

func TestExecute_ScriptFileRemovedOnToolFailure(t *testing.T) {
	tempDir := t.TempDir()
	runner := &fakeRunner{result: RunResult{ExitCode: 1, StderrTail: "conversion failed"}}
	ex := NewExecutor(Toolset{FFmpeg: "ffmpeg"}, runner, tempDir, nil)

	res, err := ex.Execute(context.Background(), longPlan([]string{"-filter_complex", "placeholder"}))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsSuccess() {
		t.Error("expected a failing result")
	}
	if left := listTempFiles(t, tempDir); len(left) != 0 {
		t.Errorf("temp files left after tool failure: %v", left)
	}
}

func TestExecute_ScriptFileRemovedOnInvocationError(t *testing.T) {
	tempDir := t.TempDir()
	runner := &fakeRunner{
		result: RunResult{ExitCode: -1},
		err:    errors.New("exec: ffmpeg: executable file not found"),
	}
	ex := NewExecutor(Toolset{FFmpeg: "ffmpeg"}, runner, tempDir, nil)

	if _, err := ex.Execute(context.Background(), longPlan([]string{"-filter_complex", "p"})); err == nil {
		t.Fatal("expected invocation error")
	}
	if left := listTempFiles(t, tempDir); len(left) != 0 {
		t.Errorf("temp files left after invocation error: %v", left)
	}
}

func TestExecute_TempFileCreateError(t *testing.T) {
	// A nonexistent temp dir makes CreateTemp fail before any invocation.
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	runner := &fakeRunner{result: RunResult{ExitCode: 0}}
	ex := NewExecutor(Toolset{FFmpeg: "ffmpeg"}, runner, missing, nil)

	_, err := ex.Execute(context.Background(), longPlan([]string{"-filter_complex", "p"}))
	if !errors.Is(err, ErrTempFile) {
		t.Fatalf("Execute() error = %v, want ErrTempFile", err)
	}
	if runner.gotName != "" {
		t.Error("tool must not be invoked when the script file cannot be created")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		runner  *fakeRunner
		wantErr bool
	}{
		{"ok", &fakeRunner{result: RunResult{ExitCode: 0, Stdout: "ffmpeg version 6.1"}}, false},
		{"nonzero exit", &fakeRunner{result: RunResult{ExitCode: 1}}, true},
		{"start failure", &fakeRunner{err: errors.New("not found")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := NewExecutor(Toolset{FFmpeg: "ffmpeg"}, tt.runner, t.TempDir(), nil)
			err := ex.Verify(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrNotFound) {
				t.Errorf("Verify() error = %v, want ErrNotFound", err)
			}
			if tt.runner.gotName != "ffmpeg" {
				t.Errorf("Verify ran %q", tt.runner.gotName)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
	got := Truncate("0123456789abcdef", 6)
	if got != "...abcdef" {
		t.Errorf("Truncate() = %q, want ...abcdef", got)
	}
}

func TestLimitedWriterKeepsTail(t *testing.T) {
	lw := limitedWriter{w: &bytes.Buffer{}, limit: 8}
	for _, chunk := range []string{"aaaa", "bbbb", "cccc"} {
		if _, err := lw.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}
	if got := lw.w.String(); got != "bbbbcccc" {
		t.Errorf("tail = %q, want bbbbcccc", got)
	}
}
