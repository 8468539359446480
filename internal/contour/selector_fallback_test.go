//go:build !gocv

package contour

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/sticker/internal/vision"
)

func TestSelector_OpenCVFallsBackToNative(t *testing.T) {
	g := threeRegions()
	assert.Equal(t, FindExternal(g), NewSelector(vision.BackendOpenCV).FindExternal(g))
}
