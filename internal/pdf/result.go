package pdf

import (
	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

// PageResult holds the stickers made from the images of one page.
type PageResult struct {
	PageNumber int           `json:"page_number" yaml:"page_number"`
	Images     []ImageResult `json:"images"      yaml:"images"`
}

// ImageResult is the sticker made from one embedded image. Result is not
// serialised; Summary carries the reportable fields.
type ImageResult struct {
	ImageIndex int              `json:"image_index" yaml:"image_index"`
	Summary    pipeline.Summary `json:"summary"     yaml:"summary"`
	Result     *pipeline.Result `json:"-"           yaml:"-"`
}

// DocumentResult is the outcome of processing every image of a PDF.
type DocumentResult struct {
	Filename    string         `json:"filename"     yaml:"filename"`
	TotalPages  int            `json:"total_pages"  yaml:"total_pages"`
	TotalImages int            `json:"total_images" yaml:"total_images"`
	Pages       []PageResult   `json:"pages"        yaml:"pages"`
	Processing  ProcessingInfo `json:"processing"   yaml:"processing"`
}

// ProcessingInfo contains timing and performance information.
type ProcessingInfo struct {
	ExtractionTimeMs int64 `json:"extraction_time_ms" yaml:"extraction_time_ms"`
	StickerTimeMs    int64 `json:"sticker_time_ms"    yaml:"sticker_time_ms"`
	TotalTimeMs      int64 `json:"total_time_ms"      yaml:"total_time_ms"`
}

// Summaries lists the image summaries in page order.
func (d *DocumentResult) Summaries() []pipeline.Summary {
	var out []pipeline.Summary
	for _, p := range d.Pages {
		for _, img := range p.Images {
			out = append(out, img.Summary)
		}
	}
	return out
}

// Results lists the pipeline results in page order.
func (d *DocumentResult) Results() []*pipeline.Result {
	var out []*pipeline.Result
	for _, p := range d.Pages {
		for _, img := range p.Images {
			out = append(out, img.Result)
		}
	}
	return out
}
