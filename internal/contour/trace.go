package contour

import "image"

// traceBoundary follows the outer border of the component with the given
// label using Moore-neighbour tracing, clockwise on screen. start must be the
// component's first pixel in raster order, so its west, north-west, north
// and north-east neighbours are all background.
//
// Tracing stops once the start pixel is left through the same neighbour as
// on the first step, which also handles components that revisit the start
// pixel (pinch points). The returned points are pixel coordinates of every
// boundary step, not yet compressed.
func traceBoundary(labels []int32, w, h int, label int32, start image.Point) []image.Point {
	isLabel := func(p image.Point) bool {
		if p.X < 0 || p.Y < 0 || p.X >= w || p.Y >= h {
			return false
		}
		return labels[p.Y*w+p.X] == label
	}

	// next scans the neighbours of c clockwise starting after backDir and
	// returns the first set one with the direction of the last clear neighbour
	// visited, which becomes the new backtrack.
	next := func(c image.Point, backDir int) (image.Point, int, bool) {
		for k := 1; k <= 8; k++ {
			d := (backDir + k) % 8
			p := c.Add(dirs8[d])
			if isLabel(p) {
				prev := (backDir + k - 1) % 8
				// express the backtrack relative to p instead of c
				back := c.Add(dirs8[prev]).Sub(p)
				return p, dirIndex(back), true
			}
		}
		return image.Point{}, 0, false
	}

	pts := []image.Point{start}
	second, back, ok := next(start, 4) // backtrack starts west of start
	if !ok {
		return pts
	}

	cur := second
	maxSteps := 4*w*h + 8
	for range maxSteps {
		if cur == start {
			n, _, _ := next(cur, back)
			if n == second {
				break
			}
		}
		pts = append(pts, cur)
		n, nb, _ := next(cur, back)
		cur, back = n, nb
	}
	return pts
}

// dirIndex maps a unit offset to its index in dirs8. Offsets that are not
// neighbours (which cannot happen for a traced backtrack) map to west.
func dirIndex(d image.Point) int {
	for i, v := range dirs8 {
		if v == d {
			return i
		}
	}
	return 4
}

// compress keeps only the vertices where the step direction changes,
// treating pts as a closed loop.
func compress(pts []image.Point) []image.Point {
	n := len(pts)
	if n < 3 {
		return pts
	}
	out := make([]image.Point, 0, n/2+1)
	for i := range n {
		prev := pts[(i+n-1)%n]
		cur := pts[i]
		nxt := pts[(i+1)%n]
		if cur.Sub(prev) != nxt.Sub(cur) {
			out = append(out, cur)
		}
	}
	if len(out) == 0 {
		return pts[:1]
	}
	return out
}
