// Package compose renders the final sticker: it applies the colour style,
// cuts the subject out with its mask, surrounds it with a solid border band
// and produces opaque and alpha-channel outputs.
package compose

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MeKo-Tech/sticker/internal/morphology"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

// Style selects how the subject's colours are rendered.
type Style string

const (
	StyleNormal        Style = "normal"
	StyleBlackAndWhite Style = "black and white"
)

// BorderColor is the fill of the sticker border.
var BorderColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Styles lists the supported styles in display order.
func Styles() []Style { return []Style{StyleNormal, StyleBlackAndWhite} }

// ParseStyle accepts the canonical names plus a few common spellings
// ("bw", "black-and-white", "grayscale"). Matching ignores case.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal", "color", "colour":
		return StyleNormal, nil
	case "black and white", "black-and-white", "black_and_white", "bw", "grayscale", "greyscale":
		return StyleBlackAndWhite, nil
	}
	return "", fmt.Errorf("unknown style %q", s)
}

// Valid reports whether s is one of the supported styles.
func (s Style) Valid() bool { return s == StyleNormal || s == StyleBlackAndWhite }

// Label returns the display name, e.g. "Black & White".
func (s Style) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), " and ", " & "))
}

// Stylize returns a new image rendered in style. Black and white broadcasts
// the luma (0.299R + 0.587G + 0.114B) to all three channels.
func Stylize(img *image.NRGBA, style Style) (*image.NRGBA, error) {
	switch style {
	case StyleNormal:
		return utils.ToOpaqueNRGBA(img), nil
	case StyleBlackAndWhite:
		return utils.ToOpaqueNRGBA(utils.GrayscaleNRGBA(img)), nil
	}
	return nil, fmt.Errorf("unknown style %q", style)
}

// ExtractForeground keeps the pixels of img selected by mask and paints the
// rest opaque black.
func ExtractForeground(img *image.NRGBA, mask *image.Gray) *image.NRGBA {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		src := img.Pix[y*img.Stride : y*img.Stride+4*w]
		dst := out.Pix[y*out.Stride : y*out.Stride+4*w]
		m := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x := range w {
			if m[x] != 0 {
				copy(dst[4*x:4*x+3], src[4*x:4*x+3])
			}
			dst[4*x+3] = 0xff
		}
	}
	return out
}

// BorderBand returns the ring of pixels within an elliptical reach of
// 2·thickness around mask, excluding the mask itself.
func BorderBand(mask *image.Gray, thickness int) *image.Gray {
	grown := morphology.Dilate(mask, morphology.Ellipse(2*thickness, 2*thickness), 1)
	return morphology.Subtract(grown, mask)
}

// FillBand paints c wherever band is set and leaves the rest black.
func FillBand(band *image.Gray, c color.NRGBA) *image.NRGBA {
	b := band.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		dst := out.Pix[y*out.Stride : y*out.Stride+4*w]
		m := band.Pix[y*band.Stride : y*band.Stride+w]
		for x := range w {
			if m[x] != 0 {
				dst[4*x], dst[4*x+1], dst[4*x+2] = c.R, c.G, c.B
			}
			dst[4*x+3] = 0xff
		}
	}
	return out
}

// Compose adds the border fill to the foreground with per-channel
// saturation and returns the sticker together with mask ∪ band.
func Compose(fg, fill *image.NRGBA, mask, band *image.Gray) (*image.NRGBA, *image.Gray) {
	b := fg.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		a := fg.Pix[y*fg.Stride : y*fg.Stride+4*w]
		f := fill.Pix[y*fill.Stride : y*fill.Stride+4*w]
		dst := out.Pix[y*out.Stride : y*out.Stride+4*w]
		for i := 0; i < 4*w; i += 4 {
			for c := range 3 {
				dst[i+c] = uint8(min(int(a[i+c])+int(f[i+c]), 255))
			}
			dst[i+3] = 0xff
		}
	}
	return out, morphology.Or(mask, band)
}

// Transparent returns sticker with its alpha channel replaced by combined.
func Transparent(sticker *image.NRGBA, combined *image.Gray) *image.NRGBA {
	b := combined.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		src := sticker.Pix[y*sticker.Stride : y*sticker.Stride+4*w]
		dst := out.Pix[y*out.Stride : y*out.Stride+4*w]
		m := combined.Pix[y*combined.Stride : y*combined.Stride+w]
		for x := range w {
			copy(dst[4*x:4*x+3], src[4*x:4*x+3])
			dst[4*x+3] = m[x]
		}
	}
	return out
}

// Output bundles everything Apply produces.
type Output struct {
	Foreground *image.NRGBA
	Band       *image.Gray
	Sticker    *image.NRGBA
	Combined   *image.Gray
}

// Apply cuts styled out with mask and surrounds it with a white border of
// the given thickness.
func Apply(styled *image.NRGBA, mask *image.Gray, thickness int) Output {
	fg := ExtractForeground(styled, mask)
	band := BorderBand(mask, thickness)
	sticker, combined := Compose(fg, FillBand(band, BorderColor), mask, band)
	return Output{Foreground: fg, Band: band, Sticker: sticker, Combined: combined}
}
