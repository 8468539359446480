package morphology

import (
	"image"
	"math"
)

// span is a half-open run [start, end) of set kernel cells on one row.
type span struct {
	start int
	end   int
}

// Kernel is a binary structuring element. Each row holds at most one
// contiguous run of set cells, which covers rectangles and ellipses.
type Kernel struct {
	Width  int
	Height int
	Anchor image.Point
	rows   []span
}

// Rect returns a fully set width x height kernel anchored at its centre.
func Rect(width, height int) Kernel {
	width, height = max(width, 1), max(height, 1)
	k := Kernel{Width: width, Height: height, Anchor: image.Pt(width/2, height/2), rows: make([]span, height)}
	for i := range k.rows {
		k.rows[i] = span{0, width}
	}
	return k
}

// Ellipse returns the elliptical kernel inscribed in a width x height box,
// anchored at (width/2, height/2). Row extents follow the usual raster
// ellipse: for row offset dy from the centre, dx = round(c*sqrt(1-dy²/r²))
// with r = height/2 and c = width/2. Even sizes are allowed, which makes the
// element one cell wider on the low side of the anchor.
func Ellipse(width, height int) Kernel {
	width, height = max(width, 1), max(height, 1)
	if width == 1 && height == 1 {
		return Rect(1, 1)
	}
	r := height / 2
	c := width / 2
	invR2 := 0.0
	if r > 0 {
		invR2 = 1 / float64(r*r)
	}
	k := Kernel{Width: width, Height: height, Anchor: image.Pt(c, r), rows: make([]span, height)}
	for i := range height {
		dy := i - r
		if dy < -r || dy > r {
			continue
		}
		dx := int(math.RoundToEven(float64(c) * math.Sqrt(float64(r*r-dy*dy)*invR2)))
		k.rows[i] = span{start: max(c-dx, 0), end: min(c+dx+1, width)}
	}
	return k
}

// Contains reports whether cell (x, y) of the kernel is set.
func (k Kernel) Contains(x, y int) bool {
	if y < 0 || y >= len(k.rows) {
		return false
	}
	s := k.rows[y]
	return x >= s.start && x < s.end
}

// Count returns the number of set cells.
func (k Kernel) Count() int {
	n := 0
	for _, s := range k.rows {
		n += s.end - s.start
	}
	return n
}
