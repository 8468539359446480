package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/sticker/internal/compose"
	"github.com/MeKo-Tech/sticker/internal/pipeline"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

// Report figure captions, in page order.
const (
	CaptionOriginal       = "Original Input Image"
	CaptionEdges          = "Edge Detection Output (Canny Edge Detector)"
	CaptionClosed         = "Closed Edges after Morphological Operations"
	CaptionNormal         = "Final Normal Sticker Output"
	CaptionBlackAndWhite  = "Final Black and White Sticker Output"
	figureMargin          = 12
	figureCaptionHeight   = 24
	figureCaptionBaseline = 16
)

// Figure is one report page: an image and its caption.
type Figure struct {
	Caption string
	Image   image.Image
}

// ReportFigures lists the figures for one photo processed in the normal
// and the black and white style. Both results must come from the same
// input.
func ReportFigures(normal, bw *pipeline.Result) ([]Figure, error) {
	if normal == nil || bw == nil {
		return nil, errors.New("report needs a normal and a black and white result")
	}
	if normal.Params.Style != compose.StyleNormal || bw.Params.Style != compose.StyleBlackAndWhite {
		return nil, fmt.Errorf("unexpected styles %q and %q", normal.Params.Style, bw.Params.Style)
	}
	if normal.Resized == nil || normal.Edges == nil || normal.ClosedEdges == nil || normal.Sticker == nil || bw.Sticker == nil {
		return nil, errors.New("incomplete result")
	}
	return []Figure{
		{CaptionOriginal, normal.Resized},
		{CaptionEdges, normal.Edges},
		{CaptionClosed, normal.ClosedEdges},
		{CaptionNormal, normal.Sticker},
		{CaptionBlackAndWhite, bw.Sticker},
	}, nil
}

// FigureCaption numbers a caption, starting at 1.
func FigureCaption(n int, caption string) string {
	return fmt.Sprintf("Figure %d: %s", n, caption)
}

// RenderFigure draws figure n centred on a white page with its numbered
// caption below. The page is widened to fit the caption.
func RenderFigure(n int, f Figure) *image.NRGBA {
	caption := FigureCaption(n, f.Caption)
	textW := font.MeasureString(basicfont.Face7x13, caption).Ceil()

	var ib image.Rectangle
	if f.Image != nil {
		ib = f.Image.Bounds()
	}
	w := max(ib.Dx(), textW) + 2*figureMargin
	h := ib.Dy() + figureCaptionHeight + 2*figureMargin

	page := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(page, page.Bounds(), image.White, image.Point{}, draw.Src)
	if f.Image != nil {
		x0 := (w - ib.Dx()) / 2
		r := image.Rect(x0, figureMargin, x0+ib.Dx(), figureMargin+ib.Dy())
		draw.Draw(page, r, f.Image, ib.Min, draw.Over)
	}

	d := &font.Drawer{
		Dst:  page,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P((w-textW)/2, figureMargin+ib.Dy()+figureCaptionBaseline),
	}
	d.DrawString(caption)
	return page
}

// WriteReport writes a PDF with one page per figure to w.
func WriteReport(w io.Writer, figures []Figure) error {
	if len(figures) == 0 {
		return errors.New("no figures")
	}

	readers := make([]io.Reader, len(figures))
	for i, f := range figures {
		data, err := utils.PNGBytes(RenderFigure(i+1, f))
		if err != nil {
			return fmt.Errorf("figure %d: %w", i+1, err)
		}
		readers[i] = bytes.NewReader(data)
	}

	if err := api.ImportImages(nil, w, readers, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("failed to write PDF report: %w", err)
	}
	return nil
}

// WriteReportFile writes the report to path.
func WriteReportFile(path string, figures []Figure) error {
	f, err := os.Create(path) //nolint:gosec // G304: output path chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := WriteReport(f, figures); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
