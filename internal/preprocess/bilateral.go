package preprocess

import (
	"image"
	"math"
)

// Bilateral applies an edge-preserving bilateral filter to src.
//
// Each output pixel is the weighted mean of the neighbours inside a disc of
// radius diameter/2, weighted by exp(-d²/2σs²) for spatial distance d and
// exp(-Δ²/2σc²) for intensity difference Δ. Borders are mirrored without
// repeating the edge pixel (reflect-101).
func Bilateral(src *image.Gray, diameter int, sigmaColor, sigmaSpace float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	if sigmaColor <= 0 {
		sigmaColor = 1
	}
	if sigmaSpace <= 0 {
		sigmaSpace = 1
	}
	radius := diameter / 2
	if diameter <= 0 {
		radius = int(math.Round(sigmaSpace * 1.5))
	}
	radius = max(radius, 1)

	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)

	var colorWeight [256]float64
	for i := range colorWeight {
		colorWeight[i] = math.Exp(float64(i*i) * colorCoeff)
	}

	type tap struct {
		dx, dy int
		weight float64
	}
	taps := make([]tap, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r := math.Sqrt(float64(dx*dx + dy*dy))
			if r > float64(radius) {
				continue
			}
			taps = append(taps, tap{dx: dx, dy: dy, weight: math.Exp(r * r * spaceCoeff)})
		}
	}

	at := func(x, y int) uint8 {
		return src.Pix[reflect101(y, h)*src.Stride+reflect101(x, w)]
	}
	for y := range h {
		for x := range w {
			center := int(src.Pix[y*src.Stride+x])
			var sum, wsum float64
			for _, t := range taps {
				v := int(at(x+t.dx, y+t.dy))
				d := v - center
				if d < 0 {
					d = -d
				}
				wt := t.weight * colorWeight[d]
				sum += wt * float64(v)
				wsum += wt
			}
			dst.Pix[y*dst.Stride+x] = clampUint8(math.RoundToEven(sum / wsum))
		}
	}
	return dst
}

// reflect101 maps an out-of-range coordinate back into [0, n) by mirroring
// around the edge pixels without repeating them (…2 1 | 0 1 2 … n-1 | n-2…).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

func clampUint8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
