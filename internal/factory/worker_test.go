package factory

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// scriptedProcessor fails the inputs listed in failOn and succeeds on the
// rest.
type scriptedProcessor struct {
	failOn  map[string]bool
	calls   []string
	panicOn string
}

func (s *scriptedProcessor) Process(ctx context.Context, inputPath, outputPath string, opts ProcessOptions) ProcessingResult {
	s.calls = append(s.calls, inputPath)
	if s.panicOn != "" && inputPath == s.panicOn {
		panic("processor blew up")
	}
	if s.failOn[inputPath] {
		return ProcessingResult{
			Err:          errors.New("tool exited with error: exit 1"),
			ErrorMessage: "tool exited with error: exit 1",
		}
	}
	return ProcessingResult{Success: true, OutputPath: outputPath}
}

type failingVerifier struct{ err error }

func (f *failingVerifier) Verify(ctx context.Context) error { return f.err }

func eventKey(ev ProgressEvent) string {
	return fmt.Sprintf("%s(%d/%d,%d%%)", ev.Status, ev.Index, ev.Total, ev.Percent)
}

func TestWorker_EventSequenceWithOneFailure(t *testing.T) {
	proc := &scriptedProcessor{failOn: map[string]bool{"b.mp4": true}}

	var events []string
	var last ProgressEvent
	sink := func(ev ProgressEvent) {
		events = append(events, eventKey(ev))
		last = ev
	}

	w := NewWorker(proc, nil, sink, nil)
	summary, err := w.Run(context.Background(), []string{"a.mp4", "b.mp4", "c.mp4"}, t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"started(1/3,0%)",
		"done(1/3,33%)",
		"started(2/3,33%)",
		"failed(2/3,66%)",
		"started(3/3,66%)",
		"done(3/3,100%)",
		"summary(3/3,100%)",
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, events[i], want[i])
		}
	}
	if last.Ok != 2 || last.Failed != 1 {
		t.Errorf("summary event = %+v, want 2 ok / 1 failed", last)
	}

	if summary.Ok != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 2 ok / 1 failed", summary)
	}
	if summary.Cancelled {
		t.Error("summary reports cancelled")
	}
}

func TestWorker_CancellationBetweenFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	proc := &scriptedProcessor{}
	var events []string
	sink := func(ev ProgressEvent) { events = append(events, eventKey(ev)) }
	w := NewWorker(proc, nil, sink, nil)

	// Cancel as soon as file 1's result lands, before file 2 starts.
	w.OnResult = func(index int, inputPath string, res ProcessingResult) {
		if index == 0 {
			cancel()
		}
	}

	inputs := []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4", "e.mp4"}
	summary, err := w.Run(ctx, inputs, t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(proc.calls) != 1 {
		t.Errorf("processed %d files, want 1", len(proc.calls))
	}
	if len(events) == 0 || events[len(events)-1] != "summary(1/5,20%)" {
		t.Errorf("events = %v, want trailing summary(1/5,20%%)", events)
	}
	if !summary.Cancelled {
		t.Error("summary.Cancelled = false, want true")
	}
	if summary.Ok != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 1 ok / 0 failed", summary)
	}
}

func TestWorker_VerifyFailureIsFatal(t *testing.T) {
	proc := &scriptedProcessor{}
	w := NewWorker(proc, &failingVerifier{err: errors.New("ffmpeg binary not found")}, nil, nil)

	_, err := w.Run(context.Background(), []string{"a.mp4", "b.mp4"}, t.TempDir(), DefaultOptions())
	if err == nil {
		t.Fatal("Run() should fail when verification fails")
	}
	if len(proc.calls) != 0 {
		t.Errorf("processed %d files before verification, want 0", len(proc.calls))
	}
}

func TestWorker_PanicBecomesFileFailure(t *testing.T) {
	proc := &scriptedProcessor{panicOn: "b.mp4"}
	w := NewWorker(proc, nil, nil, nil)

	summary, err := w.Run(context.Background(), []string{"a.mp4", "b.mp4", "c.mp4"}, t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Ok != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 2 ok / 1 failed", summary)
	}
	if len(proc.calls) != 3 {
		t.Errorf("processed %d files, want 3 (batch continues past panic)", len(proc.calls))
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath("/clips/demo.mp4", "/out", "_processed")
	want := "/out/demo_processed.mp4"
	if got != want {
		t.Errorf("OutputPath() = %s, want %s", got, want)
	}
}
