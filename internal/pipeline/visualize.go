package pipeline

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay defaults: mask pixels are tinted green with weight 0.3.
const (
	DefaultOverlayColor = "#00ff00"
	DefaultOverlayAlpha = 0.3
)

// Step captions used by RenderSteps.
const (
	CaptionOriginal = "Original"
	CaptionEdges    = "1. Edge Detection (Canny)"
	CaptionClosed   = "2. Closed Edges"
	CaptionMask     = "3. Person Mask"
	CaptionOverlay  = "4. Mask Overlay"
	CaptionSticker  = "Sticker"
)

const captionHeight = 18

// ParseOverlayColor parses a hex colour such as "#00ff00".
func ParseOverlayColor(hex string) (colorful.Color, error) {
	if hex == "" {
		hex = DefaultOverlayColor
	}
	return colorful.Hex(hex)
}

// RenderMaskOverlay blends working toward tint by alpha: mask pixels mix
// with tint, all others mix with black, so the subject stands out.
func RenderMaskOverlay(working *image.NRGBA, mask *image.Gray, tint colorful.Color, alpha float64) *image.NRGBA {
	b := working.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	black := colorful.Color{}
	for y := range h {
		src := working.Pix[y*working.Stride : y*working.Stride+4*w]
		dst := out.Pix[y*out.Stride : y*out.Stride+4*w]
		m := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x := range w {
			c := colorful.Color{
				R: float64(src[4*x]) / 255,
				G: float64(src[4*x+1]) / 255,
				B: float64(src[4*x+2]) / 255,
			}
			target := black
			if m[x] != 0 {
				target = tint
			}
			dst[4*x], dst[4*x+1], dst[4*x+2] = c.BlendRgb(target, alpha).Clamped().RGB255()
			dst[4*x+3] = 0xff
		}
	}
	return out
}

// Step is one captioned panel of a contact sheet.
type Step struct {
	Caption string
	Image   image.Image
}

// Steps returns the processing panels of res in display order.
func Steps(res *Result) ([]Step, error) {
	if res == nil || res.Resized == nil || res.Mask == nil {
		return nil, errors.New("incomplete result")
	}
	tint, _ := ParseOverlayColor(DefaultOverlayColor)
	return []Step{
		{CaptionOriginal, res.Resized},
		{CaptionEdges, res.Edges},
		{CaptionClosed, res.ClosedEdges},
		{CaptionMask, res.Mask},
		{CaptionOverlay, RenderMaskOverlay(res.Resized, res.Mask, tint, DefaultOverlayAlpha)},
		{CaptionSticker, res.Sticker},
	}, nil
}

// RenderSteps lays the processing panels of res out in a grid of three
// columns, each panel captioned underneath.
func RenderSteps(res *Result) (*image.NRGBA, error) {
	steps, err := Steps(res)
	if err != nil {
		return nil, err
	}
	return RenderContactSheet(steps, 3), nil
}

// RenderContactSheet draws steps on a white canvas in a grid with the given
// number of columns. Cells are sized to the largest panel.
func RenderContactSheet(steps []Step, columns int) *image.NRGBA {
	columns = max(1, min(columns, len(steps)))
	cellW, cellH := 0, 0
	for _, s := range steps {
		if s.Image == nil {
			continue
		}
		cellW = max(cellW, s.Image.Bounds().Dx())
		cellH = max(cellH, s.Image.Bounds().Dy())
	}
	rows := (len(steps) + columns - 1) / columns
	sheet := image.NewNRGBA(image.Rect(0, 0, columns*cellW, rows*(cellH+captionHeight)))
	draw.Draw(sheet, sheet.Bounds(), image.White, image.Point{}, draw.Src)

	for i, s := range steps {
		x0 := (i % columns) * cellW
		y0 := (i / columns) * (cellH + captionHeight)
		if s.Image != nil {
			r := image.Rect(x0, y0, x0+s.Image.Bounds().Dx(), y0+s.Image.Bounds().Dy())
			draw.Draw(sheet, r, s.Image, s.Image.Bounds().Min, draw.Src)
		}
		drawCaption(sheet, s.Caption, x0+2, y0+cellH+captionHeight-5)
	}
	return sheet
}

func drawCaption(dst draw.Image, text string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
