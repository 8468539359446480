//go:build gocv

package vision

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Available reports whether OpenCV is linked into this build.
func Available() bool { return true }

// Bilateral applies OpenCV's edge-preserving bilateral filter.
func Bilateral(src *image.Gray, d int, sigmaColor, sigmaSpace float64) (*image.Gray, error) {
	return apply(src, func(m gocv.Mat, dst *gocv.Mat) {
		gocv.BilateralFilter(m, dst, d, sigmaColor, sigmaSpace)
	})
}

// CLAHE equalizes contrast on a tiles x tiles grid with the given clip limit.
func CLAHE(src *image.Gray, clipLimit float64, tiles int) (*image.Gray, error) {
	return apply(src, func(m gocv.Mat, dst *gocv.Mat) {
		c := gocv.NewCLAHEWithParams(clipLimit, image.Pt(tiles, tiles))
		defer c.Close()
		c.Apply(m, dst)
	})
}

// Canny returns the hysteresis edge map of src as 0/255 pixels.
func Canny(src *image.Gray, low, high int) (*image.Gray, error) {
	return apply(src, func(m gocv.Mat, dst *gocv.Mat) {
		gocv.Canny(m, dst, float32(low), float32(high))
	})
}

// Close dilates then erodes src iterations times with a size x size
// elliptical element.
func Close(src *image.Gray, size, iterations int) (*image.Gray, error) {
	return morph(src, size, iterations, iterations)
}

// Dilate grows src iterations times with a size x size elliptical element.
func Dilate(src *image.Gray, size, iterations int) (*image.Gray, error) {
	return morph(src, size, iterations, 0)
}

// SmoothMask blurs a binary mask with a Gaussian of the given radius and
// re-binarizes it: values above threshold become 255.
func SmoothMask(src *image.Gray, radius float64, threshold uint8) (*image.Gray, error) {
	k := 2*int(math.Ceil(radius)) + 1
	return apply(src, func(m gocv.Mat, dst *gocv.Mat) {
		gocv.GaussianBlur(m, dst, image.Pt(k, k), radius, radius, gocv.BorderDefault)
		gocv.Threshold(*dst, dst, float32(threshold), 255, gocv.ThresholdBinary)
	})
}

// FindExternal returns the outer contours of the non-zero regions of src,
// with straight runs compressed to their end points.
func FindExternal(src *image.Gray) ([][]image.Point, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, nil
	}
	m, err := grayMat(src)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	contours := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	out := make([][]image.Point, 0, contours.Size())
	for i := range contours.Size() {
		out = append(out, contours.At(i).ToPoints())
	}
	return out, nil
}

// GrabCut segments img starting from a trimap using OpenCV's labels
// (0 background, 1 foreground, 2 probable background, 3 probable
// foreground) and returns the final labels.
func GrabCut(img *image.NRGBA, labels []uint8, iterations int) ([]uint8, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if len(labels) != w*h {
		return nil, fmt.Errorf("vision: %d labels for %dx%d image", len(labels), w, h)
	}

	bgr := make([]byte, 0, w*h*3)
	for y := range h {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		row := img.Pix[off : off+4*w]
		for x := range w {
			bgr = append(bgr, row[4*x+2], row[4*x+1], row[4*x])
		}
	}
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, bgr)
	if err != nil {
		return nil, fmt.Errorf("vision: wrap image: %w", err)
	}
	defer src.Close()

	mask, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, append([]uint8(nil), labels...))
	if err != nil {
		return nil, fmt.Errorf("vision: wrap labels: %w", err)
	}
	defer mask.Close()

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(src, &mask, image.Rect(0, 0, w, h), &bgdModel, &fgdModel, iterations, gocv.GCInitWithMask)

	out := mask.ToBytes()
	if len(out) != w*h {
		return nil, fmt.Errorf("vision: grabcut returned %d labels for %dx%d image", len(out), w, h)
	}
	return out, nil
}

func morph(src *image.Gray, size, dilations, erosions int) (*image.Gray, error) {
	return apply(src, func(m gocv.Mat, dst *gocv.Mat) {
		kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(size, size))
		defer kernel.Close()
		m.CopyTo(dst)
		for range dilations {
			gocv.Dilate(*dst, dst, kernel)
		}
		for range erosions {
			gocv.Erode(*dst, dst, kernel)
		}
	})
}

// apply runs op on a copy of src and converts the single-channel result back.
func apply(src *image.Gray, op func(m gocv.Mat, dst *gocv.Mat)) (*image.Gray, error) {
	b := src.Bounds()
	if b.Empty() {
		return image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy())), nil
	}
	m, err := grayMat(src)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	op(m, &dst)
	return matGray(dst, b.Dx(), b.Dy())
}

func grayMat(src *image.Gray) (gocv.Mat, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	buf := make([]byte, w*h)
	for y := range h {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(buf[y*w:(y+1)*w], src.Pix[off:off+w])
	}
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("vision: wrap gray image: %w", err)
	}
	return m, nil
}

func matGray(m gocv.Mat, w, h int) (*image.Gray, error) {
	if m.Rows() != h || m.Cols() != w || m.Channels() != 1 {
		return nil, fmt.Errorf("vision: result is %dx%dx%d, want %dx%dx1", m.Cols(), m.Rows(), m.Channels(), w, h)
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	copy(out.Pix, m.ToBytes())
	return out, nil
}
