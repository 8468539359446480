// Package edges turns a preprocessed grayscale surface into a binary edge map
// and closes small gaps so that the subject outline forms a single loop.
package edges

import (
	"image"
	"log/slog"

	"github.com/MeKo-Tech/sticker/internal/morphology"
	"github.com/MeKo-Tech/sticker/internal/vision"
)

// Config holds gap-closing parameters.
type Config struct {
	KernelSize       int `json:"kernel_size"       yaml:"kernel_size"       mapstructure:"kernel_size"`
	CloseIterations  int `json:"close_iterations"  yaml:"close_iterations"  mapstructure:"close_iterations"`
	DilateIterations int `json:"dilate_iterations" yaml:"dilate_iterations" mapstructure:"dilate_iterations"`

	// Backend selects the detector and morphology implementation; set from
	// the pipeline.
	Backend string `json:"-" yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns a 5x5 elliptical element, 3 closing iterations and
// 2 extra dilations.
func DefaultConfig() Config {
	return Config{KernelSize: 5, CloseIterations: 3, DilateIterations: 2}
}

// Extractor detects and closes edges.
type Extractor struct {
	cfg    Config
	kernel morphology.Kernel
}

// New creates an Extractor. Non-positive sizes fall back to defaults; zero
// iteration counts are kept and skip that step.
func New(cfg Config) *Extractor {
	if cfg.KernelSize <= 0 {
		cfg.KernelSize = DefaultConfig().KernelSize
	}
	cfg.CloseIterations = max(cfg.CloseIterations, 0)
	cfg.DilateIterations = max(cfg.DilateIterations, 0)
	return &Extractor{cfg: cfg, kernel: morphology.Ellipse(cfg.KernelSize, cfg.KernelSize)}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Detect returns the hysteresis edge map of surface.
func (e *Extractor) Detect(surface *image.Gray, low, high int) *image.Gray {
	if vision.UseOpenCV(e.cfg.Backend) {
		out, err := vision.Canny(surface, low, high)
		if err == nil {
			return out
		}
		slog.Warn("opencv edge detection failed, using native", "error", err)
	}
	return Canny(surface, low, high)
}

// Close merges small boundary gaps: a morphological close followed by a
// further dilation that thickens the outline.
func (e *Extractor) Close(edges *image.Gray) *image.Gray {
	if vision.UseOpenCV(e.cfg.Backend) {
		out, err := e.closeOpenCV(edges)
		if err == nil {
			return out
		}
		slog.Warn("opencv edge closing failed, using native", "error", err)
	}
	closed := morphology.Apply(edges, morphology.Config{
		Operation:  morphology.OpClose,
		Kernel:     e.kernel,
		Iterations: e.cfg.CloseIterations,
	})
	return morphology.Apply(closed, morphology.Config{
		Operation:  morphology.OpDilate,
		Kernel:     e.kernel,
		Iterations: e.cfg.DilateIterations,
	})
}

func (e *Extractor) closeOpenCV(edges *image.Gray) (*image.Gray, error) {
	closed, err := vision.Close(edges, e.cfg.KernelSize, e.cfg.CloseIterations)
	if err != nil {
		return nil, err
	}
	return vision.Dilate(closed, e.cfg.KernelSize, e.cfg.DilateIterations)
}

// Extract runs Detect then Close and returns both maps.
func (e *Extractor) Extract(surface *image.Gray, low, high int) (edgeMap, closed *image.Gray) {
	edgeMap = e.Detect(surface, low, high)
	return edgeMap, e.Close(edgeMap)
}
