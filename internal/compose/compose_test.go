package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/utils"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func rectMask(w, h int, r image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func TestParseStyle(t *testing.T) {
	cases := map[string]Style{
		"normal":          StyleNormal,
		"":                StyleNormal,
		"Black and White": StyleBlackAndWhite,
		"bw":              StyleBlackAndWhite,
		"black-and-white": StyleBlackAndWhite,
		" grayscale ":     StyleBlackAndWhite,
	}
	for in, want := range cases {
		got, err := ParseStyle(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStyle("sepia")
	assert.Error(t, err)
}

func TestStyleLabel(t *testing.T) {
	assert.Equal(t, "Normal", StyleNormal.Label())
	assert.Equal(t, "Black & White", StyleBlackAndWhite.Label())
	assert.True(t, StyleNormal.Valid())
	assert.False(t, Style("sepia").Valid())
	assert.Equal(t, []Style{StyleNormal, StyleBlackAndWhite}, Styles())
}

func TestStylize(t *testing.T) {
	img := solid(3, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	normal, err := Stylize(img, StyleNormal)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, normal.Pix)
	assert.NotSame(t, img, normal)

	bw, err := Stylize(img, StyleBlackAndWhite)
	require.NoError(t, err)
	// 0.299*200 + 0.587*100 + 0.114*50 = 124.2
	assert.Equal(t, color.NRGBA{124, 124, 124, 255}, bw.NRGBAAt(1, 1))

	_, err = Stylize(img, Style("sepia"))
	assert.Error(t, err)
}

func TestExtractForeground(t *testing.T) {
	img := solid(4, 4, color.NRGBA{10, 20, 30, 255})
	m := rectMask(4, 4, image.Rect(1, 1, 3, 3))
	fg := ExtractForeground(img, m)
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, fg.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, fg.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, fg.NRGBAAt(3, 3))
}

func TestBorderBand(t *testing.T) {
	m := rectMask(30, 30, image.Rect(10, 10, 20, 20))
	band := BorderBand(m, 3)

	for i := range m.Pix {
		require.False(t, m.Pix[i] != 0 && band.Pix[i] != 0, "band overlaps mask at %d", i)
	}
	// an even 6x6 ellipse reaches two pixels to the left and three to the right
	assert.Equal(t, uint8(255), band.GrayAt(8, 15).Y)
	assert.Equal(t, uint8(0), band.GrayAt(7, 15).Y)
	assert.Equal(t, uint8(255), band.GrayAt(22, 15).Y)
	assert.Equal(t, uint8(0), band.GrayAt(23, 15).Y)
	assert.Equal(t, uint8(0), band.GrayAt(15, 15).Y)
	assert.Greater(t, utils.CountNonZero(band), 0)
}

func TestBorderBand_ThickerIsWider(t *testing.T) {
	m := rectMask(60, 60, image.Rect(25, 25, 35, 35))
	thin := utils.CountNonZero(BorderBand(m, 2))
	thick := utils.CountNonZero(BorderBand(m, 8))
	assert.Greater(t, thick, thin)
}

func TestBorderBand_EmptyMask(t *testing.T) {
	band := BorderBand(image.NewGray(image.Rect(0, 0, 8, 8)), 4)
	assert.Zero(t, utils.CountNonZero(band))
}

func TestFillBandAndCompose(t *testing.T) {
	img := solid(20, 20, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	m := rectMask(20, 20, image.Rect(8, 8, 12, 12))
	out := Apply(img, m, 2)

	assert.Equal(t, color.NRGBA{200, 10, 10, 255}, out.Sticker.NRGBAAt(9, 9))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.Sticker.NRGBAAt(7, 9))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, out.Sticker.NRGBAAt(0, 0))

	for i := range m.Pix {
		if m.Pix[i] != 0 {
			require.Equal(t, uint8(255), out.Combined.Pix[i])
		}
	}
	assert.Equal(t, utils.CountNonZero(m)+utils.CountNonZero(out.Band), utils.CountNonZero(out.Combined))
}

func TestComposeSaturates(t *testing.T) {
	fg := solid(1, 1, color.NRGBA{200, 100, 0, 255})
	fill := solid(1, 1, color.NRGBA{100, 100, 100, 255})
	m := rectMask(1, 1, image.Rect(0, 0, 1, 1))
	s, combined := Compose(fg, fill, m, image.NewGray(m.Rect))
	assert.Equal(t, color.NRGBA{255, 200, 100, 255}, s.NRGBAAt(0, 0))
	assert.Equal(t, uint8(255), combined.Pix[0])
}

func TestTransparent(t *testing.T) {
	s := solid(2, 1, color.NRGBA{1, 2, 3, 255})
	combined := image.NewGray(image.Rect(0, 0, 2, 1))
	combined.Pix[1] = 255
	tr := Transparent(s, combined)
	assert.Equal(t, color.NRGBA{1, 2, 3, 0}, tr.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{1, 2, 3, 255}, tr.NRGBAAt(1, 0))
}

func TestApply_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("band is disjoint from mask and combined covers both", prop.ForAll(
		func(x0, y0, rw, rh, thickness int) bool {
			const size = 48
			r := image.Rect(x0, y0, min(x0+rw, size), min(y0+rh, size))
			m := rectMask(size, size, r)
			out := Apply(solid(size, size, color.NRGBA{90, 60, 30, 255}), m, thickness)
			for i := range m.Pix {
				inMask, inBand := m.Pix[i] != 0, out.Band.Pix[i] != 0
				if inMask && inBand {
					return false
				}
				if (inMask || inBand) != (out.Combined.Pix[i] == 255) {
					return false
				}
				if out.Sticker.Pix[4*i+3] != 255 {
					return false
				}
			}
			tr := Transparent(out.Sticker, out.Combined)
			for i, v := range out.Combined.Pix {
				if tr.Pix[4*i+3] != v {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 40),
		gen.IntRange(0, 40),
		gen.IntRange(1, 30),
		gen.IntRange(1, 30),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}
