package pipeline

import (
	"image"
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverlayColor(t *testing.T) {
	c, err := ParseOverlayColor("")
	require.NoError(t, err)
	r, g, b := c.RGB255()
	assert.Equal(t, [3]uint8{0, 255, 0}, [3]uint8{r, g, b})

	_, err = ParseOverlayColor("green")
	assert.Error(t, err)
}

func TestRenderMaskOverlay(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{101, 101, 101, 255})
	img.SetNRGBA(1, 0, color.NRGBA{101, 101, 101, 255})
	m := image.NewGray(image.Rect(0, 0, 2, 1))
	m.Pix[0] = 255

	tint, err := colorful.Hex(DefaultOverlayColor)
	require.NoError(t, err)
	out := RenderMaskOverlay(img, m, tint, DefaultOverlayAlpha)

	// 0.7*101 + 0.3*255 = 147.2 in green, 0.7*101 = 70.7 elsewhere
	assert.Equal(t, color.NRGBA{71, 147, 71, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{71, 71, 71, 255}, out.NRGBAAt(1, 0))
}

func TestRenderSteps(t *testing.T) {
	res := processedSample(t)
	steps, err := Steps(res)
	require.NoError(t, err)
	require.Len(t, steps, 6)
	assert.Equal(t, CaptionEdges, steps[1].Caption)
	assert.Equal(t, CaptionOverlay, steps[4].Caption)

	sheet, err := RenderSteps(res)
	require.NoError(t, err)
	assert.Equal(t, 3*160, sheet.Bounds().Dx())
	assert.Equal(t, 2*(120+captionHeight), sheet.Bounds().Dy())

	// top-left panel is the working image
	assert.Equal(t, res.Resized.NRGBAAt(5, 5), sheet.NRGBAAt(5, 5))

	// captions draw dark pixels into the white strip below the first panel
	dark := 0
	for y := 120; y < 120+captionHeight; y++ {
		for x := range 160 {
			if sheet.NRGBAAt(x, y).R < 128 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)

	_, err = RenderSteps(nil)
	assert.Error(t, err)
}

func TestRenderContactSheet_SkipsMissingPanels(t *testing.T) {
	a := image.NewGray(image.Rect(0, 0, 10, 8))
	sheet := RenderContactSheet([]Step{{"a", a}, {"missing", nil}}, 4)
	assert.Equal(t, image.Rect(0, 0, 20, 8+captionHeight), sheet.Bounds())
	// the missing cell stays white
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, sheet.NRGBAAt(15, 4))
}
