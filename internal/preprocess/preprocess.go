// Package preprocess normalizes decoded photos into the working surface used
// for edge detection: a size-bounded, noise-reduced, contrast-equalized
// grayscale image.
package preprocess

import (
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/sticker/internal/utils"
	"github.com/MeKo-Tech/sticker/internal/vision"
	"github.com/disintegration/imaging"
)

// Config holds the preprocessing parameters.
type Config struct {
	MaxWidth  int `json:"max_width"  yaml:"max_width"  mapstructure:"max_width"`
	MaxHeight int `json:"max_height" yaml:"max_height" mapstructure:"max_height"`

	BilateralDiameter int     `json:"bilateral_diameter" yaml:"bilateral_diameter" mapstructure:"bilateral_diameter"`
	SigmaColor        float64 `json:"sigma_color"        yaml:"sigma_color"        mapstructure:"sigma_color"`
	SigmaSpace        float64 `json:"sigma_space"        yaml:"sigma_space"        mapstructure:"sigma_space"`

	ClipLimit float64 `json:"clip_limit" yaml:"clip_limit" mapstructure:"clip_limit"`
	TileGrid  int     `json:"tile_grid"  yaml:"tile_grid"  mapstructure:"tile_grid"`

	// Backend selects the filter implementation; set from the pipeline.
	Backend string `json:"-" yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns the standard working-surface settings: an 800x800
// bound, a 9-pixel bilateral filter with sigmas of 75 and CLAHE with clip
// limit 2 on an 8x8 grid.
func DefaultConfig() Config {
	return Config{
		MaxWidth:          800,
		MaxHeight:         800,
		BilateralDiameter: 9,
		SigmaColor:        75,
		SigmaSpace:        75,
		ClipLimit:         2.0,
		TileGrid:          8,
	}
}

// Preprocessor turns colour photos into working images and edge surfaces.
// It holds no mutable state and is safe for concurrent use.
type Preprocessor struct {
	cfg Config
}

// New creates a Preprocessor. Zero or negative fields fall back to defaults.
func New(cfg Config) *Preprocessor {
	def := DefaultConfig()
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = def.MaxHeight
	}
	if cfg.BilateralDiameter <= 0 {
		cfg.BilateralDiameter = def.BilateralDiameter
	}
	if cfg.SigmaColor <= 0 {
		cfg.SigmaColor = def.SigmaColor
	}
	if cfg.SigmaSpace <= 0 {
		cfg.SigmaSpace = def.SigmaSpace
	}
	if cfg.TileGrid <= 0 {
		cfg.TileGrid = def.TileGrid
	}
	return &Preprocessor{cfg: cfg}
}

// Config returns the effective configuration.
func (p *Preprocessor) Config() Config { return p.cfg }

// WorkingSize returns the dimensions Resize produces for a w x h input.
func (p *Preprocessor) WorkingSize(w, h int) (int, int) {
	scale := math.Min(float64(p.cfg.MaxWidth)/float64(w), float64(p.cfg.MaxHeight)/float64(h))
	if scale >= 1 {
		return w, h
	}
	return max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
}

// Resize bounds img to the configured maximum with area averaging and
// returns an opaque zero-origin copy. Images already within bounds keep their
// size.
func (p *Preprocessor) Resize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	nw, nh := p.WorkingSize(b.Dx(), b.Dy())
	if nw == b.Dx() && nh == b.Dy() {
		return utils.ToOpaqueNRGBA(img)
	}
	slog.Debug("Downscaling input", "from_width", b.Dx(), "from_height", b.Dy(), "to_width", nw, "to_height", nh)
	return utils.ToOpaqueNRGBA(imaging.Resize(img, nw, nh, imaging.Box))
}

// Prepare converts the working image to the surface fed to edge detection:
// grayscale, bilateral smoothing, then CLAHE.
func (p *Preprocessor) Prepare(working image.Image) *image.Gray {
	gray := utils.ToGray(working)
	if vision.UseOpenCV(p.cfg.Backend) {
		out, err := p.prepareOpenCV(gray)
		if err == nil {
			return out
		}
		slog.Warn("opencv preprocessing failed, using native", "error", err)
	}
	smoothed := Bilateral(gray, p.cfg.BilateralDiameter, p.cfg.SigmaColor, p.cfg.SigmaSpace)
	return CLAHE(smoothed, p.cfg.ClipLimit, p.cfg.TileGrid, p.cfg.TileGrid)
}

func (p *Preprocessor) prepareOpenCV(gray *image.Gray) (*image.Gray, error) {
	smoothed, err := vision.Bilateral(gray, p.cfg.BilateralDiameter, p.cfg.SigmaColor, p.cfg.SigmaSpace)
	if err != nil {
		return nil, err
	}
	return vision.CLAHE(smoothed, p.cfg.ClipLimit, p.cfg.TileGrid)
}
