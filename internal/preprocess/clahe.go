package preprocess

import (
	"image"
	"math"
)

const histSize = 256

// CLAHE performs contrast-limited adaptive histogram equalization.
//
// The image is split into tilesX x tilesY tiles. When the size is not a
// multiple of the grid the image is extended at the right and bottom by
// reflection before the per-tile histograms are taken. Histogram bins are
// clipped at clipLimit*tileArea/256 (at least 1) and the excess is spread
// evenly. Every output pixel interpolates bilinearly between the lookup tables
// of the four nearest tile centres. clipLimit <= 0 disables clipping.
func CLAHE(src *image.Gray, clipLimit float64, tilesX, tilesY int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	tilesX, tilesY = max(tilesX, 1), max(tilesY, 1)

	extW, extH := w, h
	if w%tilesX != 0 || h%tilesY != 0 {
		extW = w + tilesX - w%tilesX
		extH = h + tilesY - h%tilesY
	}
	tileW, tileH := extW/tilesX, extH/tilesY
	tileArea := tileW * tileH

	limit := 0
	if clipLimit > 0 {
		limit = max(int(clipLimit*float64(tileArea)/histSize), 1)
	}
	lutScale := float64(histSize-1) / float64(tileArea)

	at := func(x, y int) uint8 {
		return src.Pix[reflect101(y, h)*src.Stride+reflect101(x, w)]
	}

	luts := make([][histSize]uint8, tilesX*tilesY)
	var hist [histSize]int
	for ty := range tilesY {
		for tx := range tilesX {
			clear(hist[:])
			for y := ty * tileH; y < (ty+1)*tileH; y++ {
				for x := tx * tileW; x < (tx+1)*tileW; x++ {
					hist[at(x, y)]++
				}
			}
			if limit > 0 {
				clipHistogram(&hist, limit)
			}
			lut := &luts[ty*tilesX+tx]
			sum := 0
			for i := range hist {
				sum += hist[i]
				lut[i] = clampUint8(math.RoundToEven(float64(sum) * lutScale))
			}
		}
	}

	invTW := 1 / float64(tileW)
	invTH := 1 / float64(tileH)

	type axis struct {
		lo, hi int
		frac   float64
	}
	xs := make([]axis, w)
	for x := range w {
		f := float64(x)*invTW - 0.5
		t1 := int(math.Floor(f))
		xs[x] = axis{lo: max(t1, 0), hi: min(t1+1, tilesX-1), frac: f - float64(t1)}
	}

	for y := range h {
		f := float64(y)*invTH - 0.5
		t1 := int(math.Floor(f))
		ya := f - float64(t1)
		ty1, ty2 := max(t1, 0), min(t1+1, tilesY-1)
		row1 := luts[ty1*tilesX : (ty1+1)*tilesX]
		row2 := luts[ty2*tilesX : (ty2+1)*tilesX]
		for x := range w {
			v := src.Pix[y*src.Stride+x]
			ax := xs[x]
			top := float64(row1[ax.lo][v])*(1-ax.frac) + float64(row1[ax.hi][v])*ax.frac
			bottom := float64(row2[ax.lo][v])*(1-ax.frac) + float64(row2[ax.hi][v])*ax.frac
			dst.Pix[y*dst.Stride+x] = clampUint8(math.RoundToEven(top*(1-ya) + bottom*ya))
		}
	}
	return dst
}

// clipHistogram caps every bin at limit and redistributes the excess: an
// equal share to all bins, then the remainder one count at a time at a fixed
// stride from bin 0.
func clipHistogram(hist *[histSize]int, limit int) {
	clipped := 0
	for i := range hist {
		if hist[i] > limit {
			clipped += hist[i] - limit
			hist[i] = limit
		}
	}
	batch := clipped / histSize
	residual := clipped - batch*histSize
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(histSize/residual, 1)
		for i := 0; i < histSize && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}
}
