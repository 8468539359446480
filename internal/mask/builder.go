// Package mask turns a subject contour into a binary foreground mask and
// optionally refines it with colour-model graph-cut segmentation.
package mask

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"github.com/anthonynsimon/bild/blur"
	"golang.org/x/image/vector"

	"github.com/MeKo-Tech/sticker/internal/contour"
	"github.com/MeKo-Tech/sticker/internal/morphology"
	"github.com/MeKo-Tech/sticker/internal/utils"
	"github.com/MeKo-Tech/sticker/internal/vision"
)

// Config holds the mask construction parameters.
type Config struct {
	// Padding is the diameter of the elliptical dilation applied after
	// smoothing. Zero disables padding.
	Padding int `json:"padding" yaml:"padding" mapstructure:"padding"`
	// BlurRadius is the Gaussian radius used to soften the polygon edge.
	// A radius of 3 gives a 7-tap kernel.
	BlurRadius float64 `json:"blur_radius" yaml:"blur_radius" mapstructure:"blur_radius"`
	// Threshold re-binarizes the blurred mask: values above it are kept.
	Threshold uint8 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`

	Refine RefineConfig `json:"refine" yaml:"refine" mapstructure:"refine"`

	// Backend selects the implementation of smoothing and dilation. It is
	// set from the pipeline backend.
	Backend string `json:"-" yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns the standard mask parameters.
func DefaultConfig() Config {
	return Config{
		Padding:    15,
		BlurRadius: 3,
		Threshold:  127,
		Refine:     DefaultRefineConfig(),
	}
}

// Builder creates subject masks.
type Builder struct {
	cfg     Config
	refiner Refiner
}

// NewBuilder validates cfg and prepares the configured refiner.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.Padding < 0 {
		return nil, fmt.Errorf("padding must be >= 0, got %d", cfg.Padding)
	}
	if cfg.BlurRadius < 0 {
		return nil, fmt.Errorf("blur radius must be >= 0, got %g", cfg.BlurRadius)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if err := vision.Require(cfg.Backend); err != nil {
		return nil, err
	}
	r, err := NewRefiner(cfg.Refine)
	if err != nil {
		return nil, err
	}
	cfg.Refine = cfg.Refine.withDefaults()
	return &Builder{cfg: cfg, refiner: r}, nil
}

// Config returns the effective configuration.
func (b *Builder) Config() Config { return b.cfg }

// Refiner returns the refiner used by Refine.
func (b *Builder) Refiner() Refiner { return b.refiner }

// FullFrame returns a mask with every pixel of r set.
func (b *Builder) FullFrame(r image.Rectangle) *image.Gray {
	m := utils.NewMask(r)
	utils.FillMask(m, 255)
	return m
}

// FromContour fills c on a canvas the size of r, smooths the edge, and
// dilates the result by padding. The returned mask is strictly 0 or 255.
func (b *Builder) FromContour(r image.Rectangle, c contour.Contour, padding int) *image.Gray {
	m := fillPolygon(r, c)
	if vision.UseOpenCV(b.cfg.Backend) {
		out, err := b.smoothAndPadOpenCV(m, padding)
		if err == nil {
			return out
		}
		slog.Warn("opencv mask smoothing failed, using native", "error", err)
	}

	if b.cfg.BlurRadius > 0 {
		blurred := blur.Gaussian(m, b.cfg.BlurRadius)
		for y := range m.Rect.Dy() {
			for x := range m.Rect.Dx() {
				v := uint8(0)
				if blurred.Pix[y*blurred.Stride+4*x] > b.cfg.Threshold {
					v = 255
				}
				m.Pix[y*m.Stride+x] = v
			}
		}
	}

	if padding > 0 {
		m = morphology.Dilate(m, morphology.Ellipse(padding, padding), 1)
	}
	return m
}

func (b *Builder) smoothAndPadOpenCV(m *image.Gray, padding int) (*image.Gray, error) {
	var err error
	if b.cfg.BlurRadius > 0 {
		if m, err = vision.SmoothMask(m, b.cfg.BlurRadius, b.cfg.Threshold); err != nil {
			return nil, err
		}
	}
	if padding > 0 {
		if m, err = vision.Dilate(m, padding, 1); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Refine runs the configured refiner on seed. Any failure, including a
// panic inside the backend, is returned as an error; callers decide whether
// to fall back to the seed.
func (b *Builder) Refine(ctx context.Context, working *image.NRGBA, seed *image.Gray) (*image.Gray, error) {
	out, err := safeRefine(ctx, b.refiner, working, seed)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RefineOrKeep refines seed and returns the seed unchanged when refinement
// fails for any reason other than cancellation. The boolean reports whether
// the refined mask was used.
func (b *Builder) RefineOrKeep(ctx context.Context, working *image.NRGBA, seed *image.Gray) (*image.Gray, bool, error) {
	out, err := b.Refine(ctx, working, seed)
	if err == nil {
		return out, true, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, false, err
	}
	slog.Debug("mask refinement failed, keeping contour mask", "backend", b.refiner.Name(), "error", err)
	return seed, false, nil
}

// fillPolygon rasterizes the interior of c plus its outline onto a zeroed
// mask. Vertices are pixel centres; a pixel is set when at least half of it
// is covered.
func fillPolygon(r image.Rectangle, c contour.Contour) *image.Gray {
	w, h := r.Dx(), r.Dy()
	m := utils.NewMask(r)
	if len(c) == 0 {
		return m
	}

	if len(c) >= 3 {
		z := vector.NewRasterizer(w, h)
		z.DrawOp = draw.Src
		z.MoveTo(float32(c[0].X)+0.5, float32(c[0].Y)+0.5)
		for _, p := range c[1:] {
			z.LineTo(float32(p.X)+0.5, float32(p.Y)+0.5)
		}
		z.ClosePath()
		cov := image.NewAlpha(image.Rect(0, 0, w, h))
		z.Draw(cov, cov.Bounds(), image.Opaque, image.Point{})
		for i, a := range cov.Pix {
			if a >= 128 {
				m.Pix[i] = 255
			}
		}
	}

	utils.DrawPolygon(m, c, color.Gray{Y: 255}, 1)
	return m
}
