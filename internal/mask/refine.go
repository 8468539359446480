package mask

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/sticker/internal/vision"
)

// Trimap labels understood by refiners. They match the values OpenCV's
// GrabCut uses for its mask so either backend can read the same seed.
const (
	LabelBackground         uint8 = 0
	LabelForeground         uint8 = 1
	LabelProbableBackground uint8 = 2
	LabelProbableForeground uint8 = 3
)

// Backend names accepted by NewRefiner.
const (
	BackendNative = vision.BackendNative
	BackendOpenCV = vision.BackendOpenCV
)

// ErrNoBackend is returned when a refinement backend is not compiled in.
var ErrNoBackend = vision.ErrUnavailable

// ErrEmptySeed is returned when the seed leaves no foreground or no
// background samples to learn colour models from.
var ErrEmptySeed = errors.New("seed mask has no foreground or no background pixels")

// RefineConfig controls colour-model segmentation.
type RefineConfig struct {
	Backend    string  `json:"backend" yaml:"backend" mapstructure:"backend"`
	Iterations int     `json:"iterations" yaml:"iterations" mapstructure:"iterations"`
	Components int     `json:"components" yaml:"components" mapstructure:"components"`
	Gamma      float64 `json:"gamma" yaml:"gamma" mapstructure:"gamma"`
}

// DefaultRefineConfig returns five iterations of five-component models.
func DefaultRefineConfig() RefineConfig {
	return RefineConfig{
		Backend:    BackendNative,
		Iterations: 5,
		Components: 5,
		Gamma:      50,
	}
}

func (c RefineConfig) withDefaults() RefineConfig {
	d := DefaultRefineConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Iterations <= 0 {
		c.Iterations = d.Iterations
	}
	if c.Components <= 0 {
		c.Components = d.Components
	}
	if c.Gamma <= 0 {
		c.Gamma = d.Gamma
	}
	return c
}

// Refiner improves a binary seed mask using the colours of the image it was
// derived from. Implementations return a new 0/255 mask with the bounds of
// seed and never modify their inputs.
type Refiner interface {
	Refine(ctx context.Context, img *image.NRGBA, seed *image.Gray) (*image.Gray, error)
	Name() string
}

// NewRefiner returns the refiner for cfg.Backend.
func NewRefiner(cfg RefineConfig) (Refiner, error) {
	cfg = cfg.withDefaults()
	switch strings.ToLower(cfg.Backend) {
	case BackendNative:
		return &grabCut{cfg: cfg}, nil
	case BackendOpenCV:
		if !vision.Available() {
			return nil, ErrNoBackend
		}
		return &openCVRefiner{cfg: cfg}, nil
	default:
		return nil, ValidateBackend(cfg.Backend)
	}
}

// ValidateBackend reports whether name selects a known backend. An empty
// name selects the default. It does not check that the backend is compiled in.
func ValidateBackend(name string) error {
	switch strings.ToLower(name) {
	case "", BackendNative, BackendOpenCV:
		return nil
	}
	return fmt.Errorf("unknown refinement backend %q", name)
}

// SeedTrimap converts a binary mask into probable-foreground and
// probable-background labels.
func SeedTrimap(seed *image.Gray) []uint8 {
	b := seed.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]uint8, w*h)
	for y := range h {
		row := seed.Pix[y*seed.Stride : y*seed.Stride+w]
		for x, v := range row {
			if v == 255 {
				out[y*w+x] = LabelProbableForeground
			} else {
				out[y*w+x] = LabelProbableBackground
			}
		}
	}
	return out
}

// TrimapToMask maps foreground and probable-foreground labels to 255.
func TrimapToMask(labels []uint8, r image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for i, l := range labels {
		if l == LabelForeground || l == LabelProbableForeground {
			m.Pix[i] = 255
		}
	}
	return m
}

// safeRefine runs r and converts a panic inside it into an error.
func safeRefine(ctx context.Context, r Refiner, img *image.NRGBA, seed *image.Gray) (out *image.Gray, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("%s refinement panicked: %v", r.Name(), p)
		}
	}()
	return r.Refine(ctx, img, seed)
}
