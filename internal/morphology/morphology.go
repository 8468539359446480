// Package morphology implements binary morphology on single-channel masks.
//
// Masks are *image.Gray values where any non-zero pixel is set; every
// operation returns a new zero-origin mask holding only 0 and 255. Pixels
// outside the image never influence the result, so dilation does not grow
// from the border and erosion does not eat into it.
package morphology

import (
	"image"
)

// Op represents the type of morphological operation to perform.
type Op int

const (
	OpNone Op = iota
	OpDilate
	OpErode
	OpOpen  // erode then dilate
	OpClose // dilate then erode
)

func (o Op) String() string {
	switch o {
	case OpDilate:
		return "dilate"
	case OpErode:
		return "erode"
	case OpOpen:
		return "open"
	case OpClose:
		return "close"
	default:
		return "none"
	}
}

// Config holds configuration for a morphological operation.
type Config struct {
	Operation  Op
	Kernel     Kernel
	Iterations int
}

// Apply runs cfg on src. For OpOpen and OpClose the iteration count applies
// to each half, so closing with 3 iterations is three dilations followed by
// three erosions.
func Apply(src *image.Gray, cfg Config) *image.Gray {
	n := cfg.Iterations
	if cfg.Operation == OpNone || n <= 0 {
		return binarize(src)
	}
	switch cfg.Operation {
	case OpDilate:
		return Dilate(src, cfg.Kernel, n)
	case OpErode:
		return Erode(src, cfg.Kernel, n)
	case OpOpen:
		return Dilate(Erode(src, cfg.Kernel, n), cfg.Kernel, n)
	case OpClose:
		return Erode(Dilate(src, cfg.Kernel, n), cfg.Kernel, n)
	}
	return binarize(src)
}

// Dilate sets every pixel that the kernel, placed at that pixel, overlaps
// with at least one set source pixel. Applied iterations times.
func Dilate(src *image.Gray, k Kernel, iterations int) *image.Gray {
	out := binarize(src)
	for range max(iterations, 1) {
		out = morph(out, k, true)
	}
	return out
}

// Erode keeps a pixel only when every in-bounds cell under the kernel is set.
// Applied iterations times.
func Erode(src *image.Gray, k Kernel, iterations int) *image.Gray {
	out := binarize(src)
	for range max(iterations, 1) {
		out = morph(out, k, false)
	}
	return out
}

// Close is Dilate followed by Erode with the same kernel and count.
func Close(src *image.Gray, k Kernel, iterations int) *image.Gray {
	return Apply(src, Config{Operation: OpClose, Kernel: k, Iterations: iterations})
}

// morph evaluates one dilation (dilate=true) or erosion pass using per-row
// prefix counts, so the cost per pixel is one lookup per kernel row.
func morph(src *image.Gray, k Kernel, dilate bool) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	// prefix[y*(w+1)+x] = number of set pixels in row y, columns [0, x)
	prefix := make([]int32, h*(w+1))
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		base := y * (w + 1)
		for x, v := range row {
			c := prefix[base+x]
			if v != 0 {
				c++
			}
			prefix[base+x+1] = c
		}
	}

	for y := range h {
		for x := range w {
			hit := !dilate
			for i, s := range k.rows {
				if s.end <= s.start {
					continue
				}
				yy := y + i - k.Anchor.Y
				if yy < 0 || yy >= h {
					continue
				}
				lo := max(x+s.start-k.Anchor.X, 0)
				hi := min(x+s.end-1-k.Anchor.X, w-1)
				if lo > hi {
					continue
				}
				base := yy * (w + 1)
				count := int(prefix[base+hi+1] - prefix[base+lo])
				if dilate && count > 0 {
					hit = true
					break
				}
				if !dilate && count < hi-lo+1 {
					hit = false
					break
				}
			}
			if hit {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// binarize copies src into a zero-origin mask of 0/255 values.
func binarize(src *image.Gray) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		srow := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		drow := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x, v := range srow {
			if v != 0 {
				drow[x] = 255
			}
		}
	}
	return out
}

// Threshold returns a mask with 255 where src > t and 0 elsewhere.
func Threshold(src *image.Gray, t uint8) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		srow := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		drow := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x, v := range srow {
			if v > t {
				drow[x] = 255
			}
		}
	}
	return out
}

// Subtract returns a AND NOT b. Both masks must share dimensions.
func Subtract(a, b *image.Gray) *image.Gray {
	return combine(a, b, func(x, y bool) bool { return x && !y })
}

// Or returns a OR b.
func Or(a, b *image.Gray) *image.Gray {
	return combine(a, b, func(x, y bool) bool { return x || y })
}

// And returns a AND b.
func And(a, b *image.Gray) *image.Gray {
	return combine(a, b, func(x, y bool) bool { return x && y })
}

func combine(a, b *image.Gray, f func(bool, bool) bool) *image.Gray {
	ab, bb := a.Bounds(), b.Bounds()
	w, h := min(ab.Dx(), bb.Dx()), min(ab.Dy(), bb.Dy())
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		arow := a.Pix[y*a.Stride : y*a.Stride+w]
		brow := b.Pix[y*b.Stride : y*b.Stride+w]
		drow := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range w {
			if f(arow[x] != 0, brow[x] != 0) {
				drow[x] = 255
			}
		}
	}
	return out
}
