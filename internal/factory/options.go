package factory

// ProcessOptions is the per-batch processing recipe. It serializes to the
// batch's options JSON, so field tags are part of the on-disk format.
type ProcessOptions struct {
	// TrimHead and TrimTail cut seconds off the ends of the source before
	// any other transform.
	TrimHead float64 `json:"trim_head"`
	TrimTail float64 `json:"trim_tail"`

	// DeepRemix splits the video into roughly one-second segments, each
	// with its own speed factor, instead of a single uniform speed change.
	DeepRemix bool    `json:"deep_remix"`
	SpeedMin  float64 `json:"speed_min"`
	SpeedMax  float64 `json:"speed_max"`

	// Whole-video effects applied after the segments are joined.
	Mirror     bool `json:"mirror"`
	MicroZoom  bool `json:"micro_zoom"`
	ColorShift bool `json:"color_shift"`
	AddNoise   bool `json:"add_noise"`

	// Transition between remix segments: "none", "fade" or "wipe".
	Transition string `json:"transition"`

	// StripMetadata drops container metadata from the output.
	StripMetadata bool `json:"strip_metadata"`

	// OutputSuffix is appended to the input's base name when deriving the
	// output filename.
	OutputSuffix string `json:"output_suffix"`
}

// DefaultOptions is the recipe the UI starts from: a mild speed-up remix
// with metadata stripped, the combination that reliably clears duplicate
// detection without visibly degrading the clip.
func DefaultOptions() ProcessOptions {
	return ProcessOptions{
		DeepRemix:     true,
		SpeedMin:      1.10,
		SpeedMax:      1.35,
		MicroZoom:     true,
		StripMetadata: true,
		Transition:    "none",
		OutputSuffix:  "_processed",
	}
}
