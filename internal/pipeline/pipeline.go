package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MeKo-Tech/sticker/internal/contour"
	"github.com/MeKo-Tech/sticker/internal/edges"
	"github.com/MeKo-Tech/sticker/internal/mask"
	"github.com/MeKo-Tech/sticker/internal/preprocess"
	"github.com/MeKo-Tech/sticker/internal/vision"
)

// Config holds configuration for the sticker pipeline and its stages.
type Config struct {
	// Backend runs preprocessing, edges, contours and mask smoothing on
	// "native" Go code or on "opencv". OpenCV needs the gocv build tag.
	Backend    string
	Preprocess preprocess.Config
	Edges      edges.Config
	Mask       mask.Config
	Defaults   Params // used by ProcessImage and the parallel helpers

	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with stage defaults. The
// backend is OpenCV in builds tagged gocv and native otherwise.
func DefaultConfig() Config {
	cfg := Config{
		Backend:    vision.Default(),
		Preprocess: preprocess.DefaultConfig(),
		Edges:      edges.DefaultConfig(),
		Mask:       mask.DefaultConfig(),
		Defaults:   DefaultParams(),
		Parallel:   DefaultParallelConfig(),
	}
	cfg.Mask.Refine.Backend = cfg.Backend
	return cfg
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from an existing configuration.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithBackend selects the image-processing backend for every stage,
// including refinement.
func (b *Builder) WithBackend(name string) *Builder {
	if name != "" {
		b.cfg.Backend = name
		b.cfg.Mask.Refine.Backend = name
	}
	return b
}

// WithMaxDimensions sets the working-size bound.
func (b *Builder) WithMaxDimensions(w, h int) *Builder {
	if w > 0 {
		b.cfg.Preprocess.MaxWidth = w
	}
	if h > 0 {
		b.cfg.Preprocess.MaxHeight = h
	}
	return b
}

// WithBilateral configures the edge-preserving smoothing filter.
func (b *Builder) WithBilateral(diameter int, sigmaColor, sigmaSpace float64) *Builder {
	if diameter > 0 {
		b.cfg.Preprocess.BilateralDiameter = diameter
	}
	if sigmaColor > 0 {
		b.cfg.Preprocess.SigmaColor = sigmaColor
	}
	if sigmaSpace > 0 {
		b.cfg.Preprocess.SigmaSpace = sigmaSpace
	}
	return b
}

// WithCLAHE sets the contrast equalisation clip limit and tile grid.
func (b *Builder) WithCLAHE(clipLimit float64, tiles int) *Builder {
	if clipLimit > 0 {
		b.cfg.Preprocess.ClipLimit = clipLimit
	}
	if tiles > 0 {
		b.cfg.Preprocess.TileGrid = tiles
	}
	return b
}

// WithEdgeClosing sets how many close and extra dilate passes bridge edge gaps.
func (b *Builder) WithEdgeClosing(closeIterations, dilateIterations int) *Builder {
	if closeIterations >= 0 {
		b.cfg.Edges.CloseIterations = closeIterations
	}
	if dilateIterations >= 0 {
		b.cfg.Edges.DilateIterations = dilateIterations
	}
	return b
}

// WithMaskBlur sets the Gaussian radius used to smooth the contour mask.
func (b *Builder) WithMaskBlur(radius float64) *Builder {
	if radius >= 0 {
		b.cfg.Mask.BlurRadius = radius
	}
	return b
}

// WithMaskPadding sets the dilation radius used when a request leaves
// padding at zero.
func (b *Builder) WithMaskPadding(n int) *Builder {
	if n > 0 {
		b.cfg.Mask.Padding = n
	}
	return b
}

// WithRefinementBackend selects the segmentation backend ("native" or "opencv").
func (b *Builder) WithRefinementBackend(name string) *Builder {
	if name != "" {
		b.cfg.Mask.Refine.Backend = name
	}
	return b
}

// WithRefinementIterations sets the number of segmentation iterations.
func (b *Builder) WithRefinementIterations(n int) *Builder {
	if n > 0 {
		b.cfg.Mask.Refine.Iterations = n
	}
	return b
}

// WithDefaults replaces the parameters used when none are passed explicitly.
func (b *Builder) WithDefaults(p Params) *Builder {
	b.cfg.Defaults = p
	return b
}

// WithParallelWorkers sets the number of parallel workers for batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for batch processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	if err := vision.ValidateBackend(b.cfg.Backend); err != nil {
		return err
	}
	pc := b.cfg.Preprocess
	if pc.MaxWidth <= 0 || pc.MaxHeight <= 0 {
		return fmt.Errorf("max dimensions must be > 0, got %dx%d", pc.MaxWidth, pc.MaxHeight)
	}
	if pc.BilateralDiameter <= 0 {
		return errors.New("bilateral diameter must be > 0")
	}
	if pc.ClipLimit <= 0 || pc.TileGrid <= 0 {
		return errors.New("CLAHE clip limit and tile grid must be > 0")
	}
	if b.cfg.Edges.KernelSize <= 0 {
		return errors.New("edge closing kernel size must be > 0")
	}
	if b.cfg.Mask.BlurRadius < 0 {
		return errors.New("mask blur radius must be >= 0")
	}
	if err := b.cfg.Defaults.Validate(); err != nil {
		return fmt.Errorf("default parameters: %w", err)
	}
	return nil
}

// Pipeline wires the stages together. It holds no per-call state and is
// safe for concurrent use.
type Pipeline struct {
	cfg          Config
	Preprocessor *preprocess.Preprocessor
	Edges        *edges.Extractor
	Contours     *contour.Selector
	Masks        *mask.Builder
	Profiler     *Profiler
}

// Build initializes the pipeline stages.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := vision.Require(b.cfg.Backend); err != nil {
		return nil, fmt.Errorf("backend %q: %w", b.cfg.Backend, err)
	}
	backend := vision.Normalize(b.cfg.Backend)

	maskCfg := b.cfg.Mask
	maskCfg.Backend = backend
	masks, err := mask.NewBuilder(maskCfg)
	if err != nil {
		return nil, fmt.Errorf("init mask builder: %w", err)
	}
	preCfg := b.cfg.Preprocess
	preCfg.Backend = backend
	pre := preprocess.New(preCfg)
	edgeCfg := b.cfg.Edges
	edgeCfg.Backend = backend
	ext := edges.New(edgeCfg)

	cfg := b.cfg
	cfg.Backend = backend
	cfg.Preprocess = pre.Config()
	cfg.Edges = ext.Config()
	cfg.Mask = masks.Config()
	return &Pipeline{
		cfg:          cfg,
		Preprocessor: pre,
		Edges:        ext,
		Contours:     contour.NewSelector(backend),
		Masks:        masks,
		Profiler:     &Profiler{},
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Info returns a map with key pipeline properties.
func (p *Pipeline) Info() map[string]any {
	pc := p.cfg.Preprocess
	info := map[string]any{
		"backend":        p.cfg.Backend,
		"max_dimensions": fmt.Sprintf("%dx%d", pc.MaxWidth, pc.MaxHeight),
		"bilateral": map[string]any{
			"diameter":    pc.BilateralDiameter,
			"sigma_color": pc.SigmaColor,
			"sigma_space": pc.SigmaSpace,
		},
		"clahe": map[string]any{
			"clip_limit": pc.ClipLimit,
			"tile_grid":  pc.TileGrid,
		},
		"edges": map[string]any{
			"kernel_size":       p.cfg.Edges.KernelSize,
			"close_iterations":  p.cfg.Edges.CloseIterations,
			"dilate_iterations": p.cfg.Edges.DilateIterations,
		},
		"refinement": map[string]any{
			"backend":    p.Masks.Refiner().Name(),
			"iterations": p.cfg.Mask.Refine.Iterations,
			"components": p.cfg.Mask.Refine.Components,
		},
		"defaults": p.cfg.Defaults,
		"parallel": map[string]any{
			"max_workers":           p.cfg.Parallel.MaxWorkers,
			"has_progress_callback": p.cfg.Parallel.ProgressCallback != nil,
		},
	}
	if p.Profiler != nil {
		info["profile"] = p.Profiler.Snapshot()
	}
	return info
}

var defaultPipeline = sync.OnceValues(func() (*Pipeline, error) {
	return NewBuilder().Build()
})

// Default returns a shared pipeline built from DefaultConfig.
func Default() (*Pipeline, error) { return defaultPipeline() }
