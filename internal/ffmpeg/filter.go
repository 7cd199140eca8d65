package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

// Transition is the effect applied at the head of a segment where it joins
// the previous one.
type Transition int

const (
	TransitionNone Transition = iota
	// TransitionFade fades the segment in from black.
	TransitionFade
	// TransitionWipe is a white-flash reveal, the cut style common in
	// short-form video editing.
	TransitionWipe
)

const transitionDuration = 0.3

// CropRect is a crop window in pixels.
type CropRect struct {
	W, H, X, Y int
}

// SegmentTransform describes the transform applied to one contiguous time
// range of the input. Instances are immutable once constructed; the segment
// planner produces them.
type SegmentTransform struct {
	Start      float64 // seconds into the source
	Length     float64 // seconds of source consumed
	Speed      float64 // playback speed factor, > 0
	Crop       *CropRect
	Mirror     bool
	Transition Transition
}

// End returns the segment's end offset in the source.
func (s SegmentTransform) End() float64 {
	return s.Start + s.Length
}

// FilterGraph is an ordered sequence of filter-graph nodes plus the labels
// of the final output streams. Node order determines processing order and
// labels are unique within one graph instance.
type FilterGraph struct {
	Nodes    []string
	VideoOut string // output label, without brackets
	AudioOut string // empty when the graph carries no audio
}

// Payload serializes the graph into the text form the media tool consumes,
// either inline on the command line or via a script file.
func (g *FilterGraph) Payload() string {
	return strings.Join(g.Nodes, ";")
}

// HasAudio reports whether the graph produces an audio stream.
func (g *FilterGraph) HasAudio() bool {
	return g.AudioOut != ""
}

// GraphOptions controls graph-wide behavior of BuildGraph.
type GraphOptions struct {
	// Audio includes per-segment audio nodes and an audio concat leg.
	Audio bool
	// PostChain is an optional comma-joinable list of video filters applied
	// after the segments are joined (mirror, micro-zoom, color shift, noise).
	PostChain []string
}

// ErrNoSegments is returned when BuildGraph is called with an empty
// segment list. An empty graph is an input-validation error, not a
// silently-empty graph.
var ErrNoSegments = errors.New("filter graph requires at least one segment")

// BuildGraph constructs the filter graph for one input file. Each segment
// becomes a video node (trim, reset timestamps, speed change, optional crop,
// mirror and transition) and, when audio is enabled, a matching audio node
// with the speed change expressed as a chained atempo. Segment outputs are
// joined by a single concat node in input order; a single segment produces
// a valid graph with no concat node. Labels are derived from a
// monotonically increasing segment counter, so they stay unique at any
// segment count.
func BuildGraph(segments []SegmentTransform, opts GraphOptions) (*FilterGraph, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	for i, seg := range segments {
		if seg.Speed <= 0 {
			return nil, fmt.Errorf("segment %d: speed factor must be positive, got %g", i, seg.Speed)
		}
		if seg.Length <= 0 {
			return nil, fmt.Errorf("segment %d: length must be positive, got %g", i, seg.Length)
		}
	}

	g := &FilterGraph{}

	for i, seg := range segments {
		g.Nodes = append(g.Nodes, videoNode(i, seg))
	}
	if opts.Audio {
		for i, seg := range segments {
			g.Nodes = append(g.Nodes, audioNode(i, seg))
		}
	}

	videoLabel := "v0"
	audioLabel := "a0"
	if len(segments) > 1 {
		g.Nodes = append(g.Nodes, concatNode(len(segments), opts.Audio))
		videoLabel = "vcat"
		audioLabel = "acat"
	}

	if len(opts.PostChain) > 0 {
		g.Nodes = append(g.Nodes, fmt.Sprintf("[%s]%s[vout]", videoLabel, strings.Join(opts.PostChain, ",")))
		videoLabel = "vout"
	}

	g.VideoOut = videoLabel
	if opts.Audio {
		g.AudioOut = audioLabel
	}
	return g, nil
}

func videoNode(i int, seg SegmentTransform) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS,setpts=PTS/%s",
		formatSeconds(seg.Start), formatSeconds(seg.End()), formatSpeed(seg.Speed))
	if seg.Crop != nil {
		fmt.Fprintf(&b, ",crop=%d:%d:%d:%d", seg.Crop.W, seg.Crop.H, seg.Crop.X, seg.Crop.Y)
	}
	if seg.Mirror {
		b.WriteString(",hflip")
	}
	switch seg.Transition {
	case TransitionFade:
		fmt.Fprintf(&b, ",fade=t=in:st=0:d=%s", formatSeconds(transitionDuration))
	case TransitionWipe:
		fmt.Fprintf(&b, ",fade=t=in:st=0:d=%s:color=white", formatSeconds(transitionDuration))
	}
	fmt.Fprintf(&b, "[v%d]", i)
	return b.String()
}

func audioNode(i int, seg SegmentTransform) string {
	return fmt.Sprintf("[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS,%s[a%d]",
		formatSeconds(seg.Start), formatSeconds(seg.End()), atempoChain(seg.Speed), i)
}

func concatNode(n int, audio bool) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[v%d]", i)
		if audio {
			fmt.Fprintf(&b, "[a%d]", i)
		}
	}
	if audio {
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[vcat][acat]", n)
	} else {
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[vcat]", n)
	}
	return b.String()
}

// atempoChain expresses an arbitrary positive speed factor as a chain of
// atempo filters, each within the filter's supported 0.5-2.0 range.
func atempoChain(speed float64) string {
	var parts []string
	remaining := speed
	for remaining > 2.0 {
		parts = append(parts, "atempo=2.0")
		remaining /= 2.0
	}
	for remaining < 0.5 {
		parts = append(parts, "atempo=0.5")
		remaining /= 0.5
	}
	parts = append(parts, "atempo="+formatSpeed(remaining))
	return strings.Join(parts, ",")
}

func formatSeconds(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

func formatSpeed(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}
