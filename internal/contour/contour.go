// Package contour finds the outer boundaries of foreground regions in a
// binary edge map and selects the one enclosing the largest area.
package contour

import (
	"cmp"
	"image"
	"log/slog"
	"slices"

	"github.com/MeKo-Tech/sticker/internal/utils"
	"github.com/MeKo-Tech/sticker/internal/vision"
)

// Contour is a closed polygon given by its pixel-coordinate vertices.
// Runs of pixels in the same direction are compressed to their end points.
type Contour []image.Point

// Area returns the polygon area enclosed by the contour's vertices.
func (c Contour) Area() float64 { return utils.PolygonArea(c) }

// Bounds returns the bounding rectangle of the contour.
func (c Contour) Bounds() image.Rectangle { return utils.BoundingRect(c) }

// FindExternal returns the outer boundary of every 8-connected foreground
// region of bin that is not enclosed by another region. Contours are ordered
// by the raster position (row, then column) of their region's first pixel.
func FindExternal(bin *image.Gray) []Contour {
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	comps, labels := labelComponents(bin)
	markExternal(comps, labels, w, h)

	var out []Contour
	for _, st := range comps {
		if !st.external {
			continue
		}
		pts := traceBoundary(labels, w, h, st.label, st.first)
		out = append(out, Contour(compress(pts)))
	}
	return out
}

// Largest returns the external contour of bin with the greatest area and
// that area, or nil when bin has no foreground. When areas tie exactly the
// contour found first in raster order wins.
func Largest(bin *image.Gray) (Contour, float64) {
	return largestOf(FindExternal(bin))
}

func largestOf(cs []Contour) (Contour, float64) {
	var (
		best     Contour
		bestArea float64
	)
	for _, c := range cs {
		a := c.Area()
		if best == nil || a > bestArea {
			best, bestArea = c, a
		}
	}
	return best, bestArea
}

// Selector finds external contours with the configured backend.
type Selector struct {
	backend string
}

// NewSelector returns a Selector for backend. The name must already have
// passed vision.Require.
func NewSelector(backend string) *Selector { return &Selector{backend: backend} }

// Backend returns the backend name the Selector was created with.
func (s *Selector) Backend() string { return vision.Normalize(s.backend) }

// FindExternal is FindExternal on the selected backend. OpenCV contours are
// reordered by their topmost-leftmost point so ties break the same way.
func (s *Selector) FindExternal(bin *image.Gray) []Contour {
	if s == nil || !vision.UseOpenCV(s.backend) {
		return FindExternal(bin)
	}
	pts, err := vision.FindExternal(bin)
	if err != nil {
		slog.Warn("opencv contour search failed, using native", "error", err)
		return FindExternal(bin)
	}
	out := make([]Contour, 0, len(pts))
	for _, p := range pts {
		if len(p) > 0 {
			out = append(out, Contour(p))
		}
	}
	slices.SortStableFunc(out, func(a, b Contour) int {
		pa, pb := rasterFirst(a), rasterFirst(b)
		return cmp.Or(cmp.Compare(pa.Y, pb.Y), cmp.Compare(pa.X, pb.X))
	})
	return out
}

// Largest is Largest on the selected backend.
func (s *Selector) Largest(bin *image.Gray) (Contour, float64) {
	return largestOf(s.FindExternal(bin))
}

func rasterFirst(c Contour) image.Point {
	first := c[0]
	for _, p := range c[1:] {
		if p.Y < first.Y || (p.Y == first.Y && p.X < first.X) {
			first = p
		}
	}
	return first
}
