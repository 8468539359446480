//go:build !gocv

package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/sticker/internal/vision"
)

func TestPrepare_OpenCVFallsBackToNative(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := range 30 {
		for x := range 40 {
			src.SetNRGBA(x, y, color.NRGBA{uint8(x * 6), uint8(y * 8), 90, 255})
		}
	}
	cfg := DefaultConfig()
	want := New(cfg).Prepare(src)
	cfg.Backend = vision.BackendOpenCV
	got := New(cfg).Prepare(src)
	assert.Equal(t, want.Pix, got.Pix)
}
