package mask

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
)

// minDensity bounds mixture densities away from zero before taking logs.
const minDensity = 1e-300

// grabCut is the built-in refiner: iterated graph-cut segmentation with
// Gaussian mixture colour models for foreground and background.
type grabCut struct {
	cfg RefineConfig
}

func (g *grabCut) Name() string { return BackendNative }

func (g *grabCut) Refine(ctx context.Context, img *image.NRGBA, seed *image.Gray) (*image.Gray, error) {
	if img.Bounds().Size() != seed.Bounds().Size() {
		return nil, fmt.Errorf("image %v and seed %v differ in size", img.Bounds().Size(), seed.Bounds().Size())
	}
	b := seed.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptySeed
	}

	colors := pixelColors(img)
	labels := SeedTrimap(seed)
	if err := g.segment(ctx, colors, labels, w, h); err != nil {
		return nil, err
	}
	return TrimapToMask(labels, b), nil
}

// segment updates the probable labels in place.
func (g *grabCut) segment(ctx context.Context, colors []rgb, labels []uint8, w, h int) error {
	fgModel, bgModel, err := initialModels(colors, labels, g.cfg.Components)
	if err != nil {
		return err
	}

	n := w * h
	beta := contrastBeta(colors, w, h)
	nw := neighbourWeights(colors, w, h, beta, g.cfg.Gamma)
	hard := 8*g.cfg.Gamma + 1
	comp := make([]int, n)

	for it := range g.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}

		fgAcc := newAccumulator(g.cfg.Components)
		bgAcc := newAccumulator(g.cfg.Components)
		for i, c := range colors {
			if isForeground(labels[i]) {
				comp[i] = fgModel.mostLikely(c)
				fgAcc.add(comp[i], c)
			} else {
				comp[i] = bgModel.mostLikely(c)
				bgAcc.add(comp[i], c)
			}
		}
		if fgModel, err = fgAcc.fit(); err != nil {
			return fmt.Errorf("iteration %d: foreground model: %w", it+1, err)
		}
		if bgModel, err = bgAcc.fit(); err != nil {
			return fmt.Errorf("iteration %d: background model: %w", it+1, err)
		}

		gr := newGraph(n, 10*n)
		for i, c := range colors {
			var fromSource, toSink float64
			switch labels[i] {
			case LabelBackground:
				fromSource, toSink = 0, hard
			case LabelForeground:
				fromSource, toSink = hard, 0
			default:
				fromSource = -math.Log(max(bgModel.density(c), minDensity))
				toSink = -math.Log(max(fgModel.density(c), minDensity))
			}
			gr.addTerminal(i, fromSource, toSink)

			x, y := i%w, i/w
			if x > 0 {
				gr.addEdge(i, i-1, nw.left[i])
			}
			if x > 0 && y > 0 {
				gr.addEdge(i, i-w-1, nw.upLeft[i])
			}
			if y > 0 {
				gr.addEdge(i, i-w, nw.up[i])
			}
			if x < w-1 && y > 0 {
				gr.addEdge(i, i-w+1, nw.upRight[i])
			}
		}
		flow := gr.maxFlow()

		changed := 0
		for i, fg := range gr.sourceSide() {
			l := labels[i]
			if l == LabelBackground || l == LabelForeground {
				continue
			}
			next := LabelProbableBackground
			if fg {
				next = LabelProbableForeground
			}
			if next != l {
				changed++
				labels[i] = next
			}
		}
		slog.Debug("grabcut iteration", "iteration", it+1, "flow", flow, "changed", changed)
	}
	return nil
}

func isForeground(l uint8) bool {
	return l == LabelForeground || l == LabelProbableForeground
}

// initialModels fits both colour models from a binary split of the samples
// on each side of the seed.
func initialModels(colors []rgb, labels []uint8, k int) (fg, bg *mixture, err error) {
	var fgSamples, bgSamples []rgb
	for i, c := range colors {
		if isForeground(labels[i]) {
			fgSamples = append(fgSamples, c)
		} else {
			bgSamples = append(bgSamples, c)
		}
	}
	if len(fgSamples) == 0 || len(bgSamples) == 0 {
		return nil, nil, ErrEmptySeed
	}

	fit := func(samples []rgb) (*mixture, error) {
		assign, err := splitClusters(samples, k)
		if err != nil {
			return nil, err
		}
		acc := newAccumulator(k)
		for i, c := range samples {
			acc.add(assign[i], c)
		}
		return acc.fit()
	}
	if fg, err = fit(fgSamples); err != nil {
		return nil, nil, fmt.Errorf("foreground model: %w", err)
	}
	if bg, err = fit(bgSamples); err != nil {
		return nil, nil, fmt.Errorf("background model: %w", err)
	}
	return fg, bg, nil
}

func pixelColors(img *image.NRGBA) []rgb {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]rgb, w*h)
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+4*w]
		for x := range w {
			out[y*w+x] = rgb{float64(row[4*x]), float64(row[4*x+1]), float64(row[4*x+2])}
		}
	}
	return out
}

func sqDist(a, b rgb) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}

// contrastBeta returns 1/(2<‖Δc‖²>) over the left, upper-left, upper and
// upper-right neighbour pairs, or 0 for an image without any contrast.
func contrastBeta(colors []rgb, w, h int) float64 {
	var sum float64
	for y := range h {
		for x := range w {
			i := y*w + x
			c := colors[i]
			if x > 0 {
				sum += sqDist(c, colors[i-1])
			}
			if x > 0 && y > 0 {
				sum += sqDist(c, colors[i-w-1])
			}
			if y > 0 {
				sum += sqDist(c, colors[i-w])
			}
			if x < w-1 && y > 0 {
				sum += sqDist(c, colors[i-w+1])
			}
		}
	}
	pairs := float64(4*w*h - 3*w - 3*h + 2)
	if sum <= 1e-12 || pairs <= 0 {
		return 0
	}
	return 1 / (2 * sum / pairs)
}

type nWeights struct {
	left, upLeft, up, upRight []float64
}

// neighbourWeights computes the smoothness term for each pixel's
// already-visited neighbours. Diagonal weights are scaled by 1/√2.
func neighbourWeights(colors []rgb, w, h int, beta, gamma float64) nWeights {
	n := w * h
	nw := nWeights{
		left:    make([]float64, n),
		upLeft:  make([]float64, n),
		up:      make([]float64, n),
		upRight: make([]float64, n),
	}
	diag := gamma / math.Sqrt2
	for y := range h {
		for x := range w {
			i := y*w + x
			c := colors[i]
			if x > 0 {
				nw.left[i] = gamma * math.Exp(-beta*sqDist(c, colors[i-1]))
			}
			if x > 0 && y > 0 {
				nw.upLeft[i] = diag * math.Exp(-beta*sqDist(c, colors[i-w-1]))
			}
			if y > 0 {
				nw.up[i] = gamma * math.Exp(-beta*sqDist(c, colors[i-w]))
			}
			if x < w-1 && y > 0 {
				nw.upRight[i] = diag * math.Exp(-beta*sqDist(c, colors[i-w+1]))
			}
		}
	}
	return nw
}
