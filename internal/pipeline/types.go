package pipeline

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/sticker/internal/compose"
	"github.com/MeKo-Tech/sticker/internal/contour"
)

// Sensitivity bounds for ThresholdsForSensitivity.
const (
	MinSensitivity = 1
	MaxSensitivity = 10
)

// Params are the per-call knobs of Process.
type Params struct {
	Style           compose.Style `json:"style" yaml:"style" mapstructure:"style"`
	BorderThickness int           `json:"border_thickness" yaml:"border_thickness" mapstructure:"border_thickness"`
	UseRefinement   bool          `json:"use_refinement" yaml:"use_refinement" mapstructure:"use_refinement"`
	LowThreshold    int           `json:"low_threshold" yaml:"low_threshold" mapstructure:"low_threshold"`
	HighThreshold   int           `json:"high_threshold" yaml:"high_threshold" mapstructure:"high_threshold"`
	Padding         int           `json:"padding" yaml:"padding" mapstructure:"padding"`
}

// DefaultParams returns the normal style with a 15px border, refinement on
// and the thresholds of sensitivity 1.
func DefaultParams() Params {
	low, high := ThresholdsForSensitivity(MinSensitivity)
	return Params{
		Style:           compose.StyleNormal,
		BorderThickness: 15,
		UseRefinement:   true,
		LowThreshold:    low,
		HighThreshold:   high,
		Padding:         15,
	}
}

// ThresholdsForSensitivity maps an edge sensitivity level to hysteresis
// thresholds: low = 100 + 20s, high = 200 + 20s. Levels outside
// [MinSensitivity, MaxSensitivity] are clamped.
func ThresholdsForSensitivity(s int) (low, high int) {
	s = min(max(s, MinSensitivity), MaxSensitivity)
	return 100 + 20*s, 200 + 20*s
}

// ParamError reports an invalid parameter.
type ParamError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Validate rejects parameter combinations that would produce degenerate
// output.
func (p Params) Validate() error {
	if !p.Style.Valid() {
		return &ParamError{Field: "style", Value: p.Style, Reason: `must be "normal" or "black and white"`}
	}
	if p.BorderThickness <= 0 {
		return &ParamError{Field: "border_thickness", Value: p.BorderThickness, Reason: "must be > 0"}
	}
	if p.LowThreshold <= 0 {
		return &ParamError{Field: "low_threshold", Value: p.LowThreshold, Reason: "must be > 0"}
	}
	if p.HighThreshold <= p.LowThreshold {
		return &ParamError{Field: "high_threshold", Value: p.HighThreshold, Reason: fmt.Sprintf("must be > low_threshold (%d)", p.LowThreshold)}
	}
	if p.Padding < 0 {
		return &ParamError{Field: "padding", Value: p.Padding, Reason: "must be >= 0"}
	}
	return nil
}

// Timing holds per-stage wall-clock durations in nanoseconds.
type Timing struct {
	PreprocessNs int64 `json:"preprocess_ns" yaml:"preprocess_ns"`
	EdgesNs      int64 `json:"edges_ns" yaml:"edges_ns"`
	ContourNs    int64 `json:"contour_ns" yaml:"contour_ns"`
	MaskNs       int64 `json:"mask_ns" yaml:"mask_ns"`
	RefineNs     int64 `json:"refine_ns" yaml:"refine_ns"`
	ComposeNs    int64 `json:"compose_ns" yaml:"compose_ns"`
	TotalNs      int64 `json:"total_ns" yaml:"total_ns"`
}

// Result is everything Process produces for one image. All images share the
// working image's bounds except Original.
type Result struct {
	Original     image.Image
	Resized      *image.NRGBA
	Surface      *image.Gray // grayscale after smoothing and contrast equalisation
	Edges        *image.Gray
	ClosedEdges  *image.Gray
	Contour      contour.Contour // nil when no subject boundary was found
	ContourArea  float64
	Mask         *image.Gray
	Band         *image.Gray
	CombinedMask *image.Gray
	Sticker      *image.NRGBA
	Transparent  *image.NRGBA
	Coverage     float64

	Params Params
	// Refined is true when the refined mask replaced the contour mask.
	Refined bool
	Timing  Timing
}

// Width returns the working width.
func (r *Result) Width() int { return r.Resized.Bounds().Dx() }

// Height returns the working height.
func (r *Result) Height() int { return r.Resized.Bounds().Dy() }

// SubjectFound reports whether a contour was selected.
func (r *Result) SubjectFound() bool { return r.Contour != nil }
