package edges

import (
	"image"
)

// tan(22.5°) in Q15 fixed point.
const tg22 = 13573

// Canny runs Canny edge detection on an already smoothed grayscale surface.
//
// The surface is not blurred again here; callers are expected to have done
// their own noise suppression.
//
// # Algorithm
//
//  1. Gradients: 3x3 Sobel operators with replicated borders.
//     magnitude = |Gx| + |Gy| on the 0-255 intensity scale.
//
//  2. Non-maximum suppression: the gradient direction is quantized into
//     horizontal, vertical and the two diagonals using integer tan(22.5°) and
//     tan(67.5°) comparisons. A pixel survives when its magnitude exceeds
//     the previous neighbour along that direction and is at least the next
//     one (strictly greater than both on diagonals). Neighbours outside the
//     image count as zero.
//
//  3. Hysteresis:
//     - magnitude > high: definite edge
//     - magnitude > low and 8-connected (through other candidates) to a
//     definite edge: edge
//     - everything else: not an edge
//
// Returns a zero-origin mask with 255 on edges and 0 elsewhere. Equal
// thresholds are accepted; validation of low < high belongs to the caller.
func Canny(src *image.Gray, low, high int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	if low > high {
		low, high = high, low
	}

	dx, dy := sobel(src, w, h)

	// magnitude with a one-pixel zero frame so neighbour reads never branch
	mw := w + 2
	mag := make([]int32, mw*(h+2))
	for y := range h {
		for x := range w {
			i := y*w + x
			mag[(y+1)*mw+x+1] = abs32(dx[i]) + abs32(dy[i])
		}
	}

	const (
		none = iota
		weak
		strong
	)
	state := make([]uint8, w*h)
	stack := make([]int, 0, 1024)

	for y := range h {
		for x := range w {
			i := y*w + x
			j := (y+1)*mw + x + 1
			m := mag[j]
			if int(m) <= low {
				continue
			}

			xs, ys := int64(dx[i]), int64(dy[i])
			ax := xs
			if ax < 0 {
				ax = -ax
			}
			ay := ys
			if ay < 0 {
				ay = -ay
			}
			ay <<= 15
			tg22x := ax * tg22

			var local bool
			switch {
			case ay < tg22x:
				local = m > mag[j-1] && m >= mag[j+1]
			case ay > tg22x+(ax<<16):
				local = m > mag[j-mw] && m >= mag[j+mw]
			default:
				s := 1
				if (xs < 0) != (ys < 0) {
					s = -1
				}
				local = m > mag[j-mw-s] && m > mag[j+mw+s]
			}
			if !local {
				continue
			}
			if int(m) > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out.Pix[(i/w)*out.Stride+i%w] = 255
		cx, cy := i%w, i/w
		for ny := cy - 1; ny <= cy+1; ny++ {
			if ny < 0 || ny >= h {
				continue
			}
			for nx := cx - 1; nx <= cx+1; nx++ {
				if nx < 0 || nx >= w {
					continue
				}
				k := ny*w + nx
				if state[k] == weak {
					state[k] = strong
					stack = append(stack, k)
				}
			}
		}
	}
	return out
}

// sobel returns the horizontal and vertical 3x3 Sobel responses of src with
// replicated borders.
func sobel(src *image.Gray, w, h int) ([]int32, []int32) {
	dx := make([]int32, w*h)
	dy := make([]int32, w*h)
	px := func(x, y int) int32 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return int32(src.Pix[y*src.Stride+x])
	}
	for y := range h {
		for x := range w {
			tl, tc, tr := px(x-1, y-1), px(x, y-1), px(x+1, y-1)
			ml, mr := px(x-1, y), px(x+1, y)
			bl, bc, br := px(x-1, y+1), px(x, y+1), px(x+1, y+1)
			dx[y*w+x] = (tr + 2*mr + br) - (tl + 2*ml + bl)
			dy[y*w+x] = (bl + 2*bc + br) - (tl + 2*tc + tr)
		}
	}
	return dx, dy
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
