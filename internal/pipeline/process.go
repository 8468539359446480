package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/MeKo-Tech/sticker/internal/compose"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

// Process turns img into a sticker. Output depends only on img, params and
// the pipeline configuration. The context is checked before each stage.
func (p *Pipeline) Process(ctx context.Context, img image.Image, params Params) (*Result, error) {
	if p == nil || p.Preprocessor == nil || p.Edges == nil || p.Masks == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Padding == 0 {
		params.Padding = p.Masks.Config().Padding
	}
	if err := utils.ValidateImage(img); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	slog.Debug("Starting sticker processing", "width", bounds.Dx(), "height", bounds.Dy(),
		"style", string(params.Style), "refine", params.UseRefinement)

	res := &Result{Original: img, Params: params}
	totalStart := time.Now()

	// Working image and edge surface
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res.Resized = p.Preprocessor.Resize(img)
	res.Surface = p.Preprocessor.Prepare(res.Resized)
	res.Timing.PreprocessNs = time.Since(start).Nanoseconds()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start = time.Now()
	res.Edges, res.ClosedEdges = p.Edges.Extract(res.Surface, params.LowThreshold, params.HighThreshold)
	res.Timing.EdgesNs = time.Since(start).Nanoseconds()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start = time.Now()
	res.Contour, res.ContourArea = p.Contours.Largest(res.ClosedEdges)
	res.Timing.ContourNs = time.Since(start).Nanoseconds()

	// Subject mask
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start = time.Now()
	working := res.Resized.Bounds()
	if res.Contour == nil {
		slog.Debug("No subject contour found, using full frame")
		res.Mask = p.Masks.FullFrame(working)
		res.Timing.MaskNs = time.Since(start).Nanoseconds()
	} else {
		res.Mask = p.Masks.FromContour(working, res.Contour, params.Padding)
		res.Timing.MaskNs = time.Since(start).Nanoseconds()

		if params.UseRefinement {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			start = time.Now()
			refined, ok, err := p.Masks.RefineOrKeep(ctx, res.Resized, res.Mask)
			if err != nil {
				return nil, err
			}
			res.Mask, res.Refined = refined, ok
			res.Timing.RefineNs = time.Since(start).Nanoseconds()
		}
	}

	// Styling and composition
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start = time.Now()
	styled, err := compose.Stylize(res.Resized, params.Style)
	if err != nil {
		return nil, &utils.ImageProcessingError{Operation: "stylize", Err: err}
	}
	out := compose.Apply(styled, res.Mask, params.BorderThickness)
	res.Band = out.Band
	res.Sticker = out.Sticker
	res.CombinedMask = out.Combined
	res.Transparent = compose.Transparent(out.Sticker, out.Combined)
	res.Timing.ComposeNs = time.Since(start).Nanoseconds()

	res.Coverage = Coverage(res.Mask)
	res.Timing.TotalNs = time.Since(totalStart).Nanoseconds()

	if p.Profiler != nil {
		p.Profiler.Record(res.Timing)
	}

	slog.Debug("Sticker processing completed",
		"working_width", res.Width(), "working_height", res.Height(),
		"contour_points", len(res.Contour), "coverage", res.Coverage,
		"refined", res.Refined, "duration_ms", res.Timing.TotalNs/1_000_000)
	return res, nil
}

// ProcessFile loads path and runs Process on it. Load failures are reported
// as ImageProcessingError with operation "load".
func (p *Pipeline) ProcessFile(ctx context.Context, path string, params Params) (*Result, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		var ipe *utils.ImageProcessingError
		if errors.As(err, &ipe) {
			return nil, err
		}
		return nil, &utils.ImageProcessingError{Operation: "load", Err: fmt.Errorf("%s: %w", path, err)}
	}
	return p.Process(ctx, img, params)
}

// ProcessImages processes images sequentially with the default parameters.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image) ([]*Result, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	out := make([]*Result, len(images))
	for i, img := range images {
		res, err := p.Process(ctx, img, p.cfg.Defaults)
		if err != nil {
			return out, fmt.Errorf("image %d: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}

// Coverage returns the share of set mask pixels as a percentage rounded to
// two decimals.
func Coverage(mask *image.Gray) float64 {
	b := mask.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	pct := float64(utils.CountNonZero(mask)) / float64(total) * 100
	return math.Round(pct*100) / 100
}
