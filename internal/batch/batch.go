// Package batch turns directories and file lists into stickers with a worker
// pool and writes the resulting images and summaries.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

// ProcessBatch processes a batch of images with the given configuration.
// Without ContinueOnError the first failing image aborts the batch.
func ProcessBatch(ctx context.Context, imagePaths []string, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}

	files, err := discoverImageFiles(imagePaths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}
	if err := config.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sticker parameters: %w", err)
	}

	var progressCallback pipeline.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		w := config.Progress
		if w == nil {
			w = os.Stderr
		}
		progressCallback = pipeline.NewConsoleProgressCallback(w, "Processing: ").
			WithUpdateInterval(config.ProgressInterval)
	}

	pl, err := buildPipeline(config, progressCallback)
	if err != nil {
		return nil, fmt.Errorf("failed to build sticker pipeline: %w", err)
	}

	errs := make([]error, len(files))
	pc := parallelConfig(pl, errs)

	slog.Debug("Starting sticker batch", "images", len(files), "workers", pc.MaxWorkers)
	startTime := time.Now()
	results, err := pl.ProcessFilesParallel(ctx, files, config.Params, pc)
	duration := time.Since(startTime)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("batch processing cancelled: %w", ctxErr)
	}
	if err != nil && !config.ContinueOnError {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}
	if results == nil {
		results = make([]*pipeline.Result, len(files))
	}

	res := &Result{
		Results:     results,
		Errors:      errs,
		ImagePaths:  files,
		Duration:    duration,
		WorkerCount: min(pc.MaxWorkers, len(files)),
	}
	if config.OutputDir != "" {
		writeAll(res, config.OutputDir, config.Outputs)
	}
	for i, e := range res.Errors {
		if e != nil {
			slog.Warn("Sticker failed", "file", files[i], "error", e)
		}
	}
	return res, nil
}
