package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

// ProcessorConfig configures PDF input processing.
type ProcessorConfig struct {
	Workers          int // 0 = runtime.NumCPU()
	Credentials      Credentials
	ContinueOnError  bool
	ProgressCallback pipeline.ProgressCallback
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{}
}

// Processor turns every image embedded in a PDF into a sticker.
type Processor struct {
	pipeline *pipeline.Pipeline
	config   ProcessorConfig
}

// NewProcessor creates a processor running images through p.
func NewProcessor(p *pipeline.Pipeline, config ProcessorConfig) *Processor {
	return &Processor{pipeline: p, config: config}
}

// ProcessFile extracts the images on the pages in pageRange (all pages when
// empty) and processes each with params. Pages without images are omitted.
func (p *Processor) ProcessFile(ctx context.Context, filename, pageRange string, params pipeline.Params) (*DocumentResult, error) {
	if p.pipeline == nil {
		return nil, errors.New("pipeline not initialized")
	}
	start := time.Now()

	working, cleanup, err := Decrypt(filename, p.config.Credentials)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pageImages, err := ExtractImages(working, pageRange)
	if err != nil {
		return nil, err
	}
	extractTime := time.Since(start)

	items := Flatten(pageImages)
	if len(items) == 0 {
		return nil, fmt.Errorf("no images found in %s", filepath.Base(filename))
	}
	slog.Debug("Extracted PDF images", "file", filename, "pages", len(pageImages), "images", len(items))

	imgs := make([]image.Image, len(items))
	for i, it := range items {
		imgs[i] = it.Image
	}

	failures := make(map[int]error)
	cfg := pipeline.ParallelConfig{
		MaxWorkers:       p.config.Workers,
		ProgressCallback: p.config.ProgressCallback,
		ErrorHandler:     func(i int, err error) { failures[i] = err },
	}

	stickerStart := time.Now()
	results, err := p.pipeline.ProcessImagesParallel(ctx, imgs, params, cfg)
	if err != nil && (results == nil || !p.config.ContinueOnError) {
		return nil, fmt.Errorf("failed to process %s: %w", filepath.Base(filename), err)
	}

	doc := &DocumentResult{
		Filename:    filename,
		TotalImages: len(items),
		Processing: ProcessingInfo{
			ExtractionTimeMs: extractTime.Milliseconds(),
			StickerTimeMs:    time.Since(stickerStart).Milliseconds(),
		},
	}

	for i, it := range items {
		if len(doc.Pages) == 0 || doc.Pages[len(doc.Pages)-1].PageNumber != it.Page {
			doc.Pages = append(doc.Pages, PageResult{PageNumber: it.Page})
		}
		name := imageName(filename, it)
		ir := ImageResult{ImageIndex: it.Index, Result: results[i]}
		if ferr, failed := failures[i]; failed {
			ir.Summary = pipeline.FailedSummary(name, ferr)
			slog.Warn("PDF image failed", "page", it.Page, "index", it.Index, "error", ferr)
		} else {
			ir.Summary = pipeline.Summarize(name, results[i])
		}
		page := &doc.Pages[len(doc.Pages)-1]
		page.Images = append(page.Images, ir)
	}
	doc.TotalPages = len(doc.Pages)
	doc.Processing.TotalTimeMs = time.Since(start).Milliseconds()
	return doc, nil
}

// imageName labels an extracted image as <file>#p<page>-<index>.
func imageName(filename string, it PageImage) string {
	return fmt.Sprintf("%s#p%d-%d", filepath.Base(filename), it.Page, it.Index)
}
