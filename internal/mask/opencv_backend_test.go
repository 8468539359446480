//go:build gocv

package mask

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/vision"
)

func TestOpenCVRefiner_SeparatesSubjectFromBackground(t *testing.T) {
	r, err := NewRefiner(RefineConfig{Backend: BackendOpenCV})
	require.NoError(t, err)
	assert.Equal(t, BackendOpenCV, r.Name())

	img, seed := redSquareScene()
	out, err := r.Refine(context.Background(), img, seed)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), out.GrayAt(30, 20).Y)
	assert.Equal(t, uint8(0), out.GrayAt(15, 5).Y)
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
}

func TestOpenCVRefiner_EmptySeed(t *testing.T) {
	r, err := NewRefiner(RefineConfig{Backend: BackendOpenCV})
	require.NoError(t, err)
	img, seed := redSquareScene()
	for i := range seed.Pix {
		seed.Pix[i] = 0
	}
	_, err = r.Refine(context.Background(), img, seed)
	require.ErrorIs(t, err, ErrEmptySeed)
}

func TestFromContour_OpenCVMatchesNativeShape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = vision.BackendOpenCV
	ocv, err := NewBuilder(cfg)
	require.NoError(t, err)
	native := newTestBuilder(t)

	r := image.Rect(0, 0, 60, 40)
	c := square(15, 10, 45, 30)
	got := ocv.FromContour(r, c, 5)
	want := native.FromContour(r, c, 5)
	assertBinary(t, got)
	assert.Equal(t, r, got.Bounds())

	diff := 0
	for i := range got.Pix {
		if got.Pix[i] != want.Pix[i] {
			diff++
		}
	}
	// Kernel rounding differs only along the boundary.
	assert.Less(t, diff, len(got.Pix)/20)
	assert.Equal(t, uint8(255), got.GrayAt(30, 20).Y)
	assert.Equal(t, uint8(0), got.GrayAt(0, 0).Y)
}
