package factory

import (
	"fmt"
	"math/rand"

	"github.com/tikops/tikops-agent/internal/ffmpeg"
)

// Remainder shorter than this folds into the previous segment instead of
// producing a sliver the concat filter handles badly.
const minSegmentLength = 0.1

// SegmentPlanner turns a probed duration and a recipe into the segment
// list the graph builder consumes.
type SegmentPlanner interface {
	Plan(duration float64, opts ProcessOptions) ([]ffmpeg.SegmentTransform, error)
}

// RandomSpeedPlanner cuts the usable range into one-second segments, each
// at a random speed within [SpeedMin, SpeedMax]. Without DeepRemix it
// emits a single segment at one random speed, still enough to shift the
// clip's fingerprint.
type RandomSpeedPlanner struct {
	rng *rand.Rand
}

func NewRandomSpeedPlanner(seed int64) *RandomSpeedPlanner {
	return &RandomSpeedPlanner{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomSpeedPlanner) Plan(duration float64, opts ProcessOptions) ([]ffmpeg.SegmentTransform, error) {
	speedMin, speedMax := opts.SpeedMin, opts.SpeedMax
	if speedMin <= 0 {
		speedMin = 1.10
	}
	if speedMax < speedMin {
		speedMax = speedMin
	}

	start := opts.TrimHead
	end := duration - opts.TrimTail
	if end-start < minSegmentLength {
		return nil, fmt.Errorf("trims leave no usable footage: duration %.2fs, head %.2fs, tail %.2fs",
			duration, opts.TrimHead, opts.TrimTail)
	}

	if !opts.DeepRemix {
		return []ffmpeg.SegmentTransform{{
			Start:  start,
			Length: end - start,
			Speed:  p.speed(speedMin, speedMax),
		}}, nil
	}

	transition := parseTransition(opts.Transition)

	var segments []ffmpeg.SegmentTransform
	for pos := start; pos < end; pos += 1.0 {
		length := 1.0
		if pos+length > end {
			length = end - pos
		}
		// Fold a trailing sliver into the previous segment.
		if length < minSegmentLength && len(segments) > 0 {
			segments[len(segments)-1].Length += length
			break
		}
		seg := ffmpeg.SegmentTransform{
			Start:  pos,
			Length: length,
			Speed:  p.speed(speedMin, speedMax),
		}
		if len(segments) > 0 {
			seg.Transition = transition
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func (p *RandomSpeedPlanner) speed(min, max float64) float64 {
	if min == max {
		return min
	}
	return min + p.rng.Float64()*(max-min)
}

func parseTransition(s string) ffmpeg.Transition {
	switch s {
	case "fade":
		return ffmpeg.TransitionFade
	case "wipe":
		return ffmpeg.TransitionWipe
	default:
		return ffmpeg.TransitionNone
	}
}
