package contour

import (
	"image"
)

// compStats represents statistics for a connected component.
type compStats struct {
	label    int32
	count    int
	first    image.Point // first pixel in raster order
	minX     int
	minY     int
	maxX     int
	maxY     int
	external bool
}

var (
	// 8-neighbourhood, used for foreground connectivity
	dirs8 = [8]image.Point{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	// 4-neighbourhood, used for background connectivity
	dirs4 = [4]image.Point{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
)

// labelComponents finds 8-connected components of the non-zero pixels of bin.
// Labels start at 1 and increase in raster order of each component's first
// pixel; background pixels keep label 0.
func labelComponents(bin *image.Gray) ([]compStats, []int32) {
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	labels := make([]int32, w*h)
	var comps []compStats
	queue := make([]int, 0, 256)

	for y := range h {
		for x := range w {
			idx := y*w + x
			if bin.Pix[y*bin.Stride+x] == 0 || labels[idx] != 0 {
				continue
			}
			label := int32(len(comps) + 1)
			st := compStats{label: label, first: image.Pt(x, y), minX: x, minY: y, maxX: x, maxY: y}
			labels[idx] = label
			queue = append(queue[:0], idx)
			for len(queue) > 0 {
				ci := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				cx, cy := ci%w, ci/w
				updateComponentStats(&st, cx, cy)
				for _, d := range dirs8 {
					nx, ny := cx+d.X, cy+d.Y
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if labels[ni] == 0 && bin.Pix[ny*bin.Stride+nx] != 0 {
						labels[ni] = label
						queue = append(queue, ni)
					}
				}
			}
			comps = append(comps, st)
		}
	}
	return comps, labels
}

// updateComponentStats updates the component statistics with a new pixel.
func updateComponentStats(st *compStats, cx, cy int) {
	st.count++
	st.minX = min(st.minX, cx)
	st.minY = min(st.minY, cy)
	st.maxX = max(st.maxX, cx)
	st.maxY = max(st.maxY, cy)
}

// markExternal flags the components whose outer border faces the background
// region connected to the image frame. Components sitting inside a hole of
// another component stay unflagged. Background connectivity is 4-way, the
// dual of 8-way foreground connectivity.
func markExternal(comps []compStats, labels []int32, w, h int) {
	if len(comps) == 0 {
		return
	}
	outside := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))
	seed := func(x, y int) {
		i := y*w + x
		if labels[i] == 0 && !outside[i] {
			outside[i] = true
			queue = append(queue, i)
		}
	}
	for x := range w {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := range h {
		seed(0, y)
		seed(w-1, y)
	}
	for len(queue) > 0 {
		ci := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		cx, cy := ci%w, ci/w
		for _, d := range dirs4 {
			nx, ny := cx+d.X, cy+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			seed(nx, ny)
		}
	}

	for y := range h {
		for x := range w {
			l := labels[y*w+x]
			if l == 0 || comps[l-1].external {
				continue
			}
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				comps[l-1].external = true
				continue
			}
			for _, d := range dirs4 {
				if outside[(y+d.Y)*w+x+d.X] {
					comps[l-1].external = true
					break
				}
			}
		}
	}
}
