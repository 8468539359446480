package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ErrEmptyImage is wrapped by ValidateImage for nil or zero-area inputs.
var ErrEmptyImage = errors.New("image is nil or has zero area")

// ValidateImage rejects nil and zero-area images.
func ValidateImage(img image.Image) error {
	if img == nil {
		return &ImageProcessingError{Operation: "validate", Err: ErrEmptyImage}
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return &ImageProcessingError{Operation: "validate", Err: fmt.Errorf("%w: %dx%d", ErrEmptyImage, b.Dx(), b.Dy())}
	}
	return nil
}

// ToOpaqueNRGBA copies img into a zero-origin NRGBA with every alpha set to 255.
// Colour channels are kept as stored, matching a decoder that drops alpha.
func ToOpaqueNRGBA(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// GrayscaleNRGBA returns the luma of img (0.299R + 0.587G + 0.114B) broadcast
// to three channels.
func GrayscaleNRGBA(img image.Image) *image.NRGBA {
	return imaging.Grayscale(img)
}

// ToGray returns the single-channel luma of img.
func ToGray(img image.Image) *image.Gray {
	g := GrayscaleNRGBA(img)
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i, j := 0, 0; j < len(out.Pix); i, j = i+4, j+1 {
		out.Pix[j] = g.Pix[i]
	}
	return out
}

// NewMask allocates a zeroed single-channel mask covering r.
func NewMask(r image.Rectangle) *image.Gray {
	return image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
}

// FillMask sets every pixel of m to v.
func FillMask(m *image.Gray, v uint8) {
	for i := range m.Pix {
		m.Pix[i] = v
	}
}

// CloneGray returns a deep copy of g.
func CloneGray(g *image.Gray) *image.Gray {
	out := &image.Gray{Pix: make([]uint8, len(g.Pix)), Stride: g.Stride, Rect: g.Rect}
	copy(out.Pix, g.Pix)
	return out
}

// CountNonZero returns the number of non-zero pixels in g.
func CountNonZero(g *image.Gray) int {
	n := 0
	b := g.Bounds()
	for y := range b.Dy() {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for _, v := range row {
			if v != 0 {
				n++
			}
		}
	}
	return n
}
