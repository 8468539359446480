package batch

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Core sticker settings
	Params   pipeline.Params
	Pipeline pipeline.Config

	// Output settings
	OutputDir  string
	Outputs    OutputOptions
	Format     string
	OutputFile string

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
	// Progress is where the console progress bar goes (default os.Stderr).
	Progress io.Writer
}

// DefaultConfig returns a recursive batch with one worker per CPU that writes
// the sticker, transparent and mask images.
func DefaultConfig() *Config {
	return &Config{
		Params:           pipeline.DefaultParams(),
		Pipeline:         pipeline.DefaultConfig(),
		Outputs:          OutputOptions{Transparent: true, Mask: true},
		Format:           "text",
		Workers:          runtime.NumCPU(),
		Recursive:        true,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Result holds the result of batch processing. Results, Errors and
// ImagePaths are index-aligned; a failed image has a nil result.
type Result struct {
	Results     []*pipeline.Result
	Errors      []error
	Written     []Outputs
	ImagePaths  []string
	Duration    time.Duration
	WorkerCount int
}

// Failed returns the number of images that could not be processed.
func (r *Result) Failed() int {
	n := 0
	for _, err := range r.Errors {
		if err != nil {
			n++
		}
	}
	return n
}

// Summaries returns one summary per input image, failures included.
func (r *Result) Summaries() []pipeline.Summary {
	out := make([]pipeline.Summary, len(r.ImagePaths))
	for i, path := range r.ImagePaths {
		if i < len(r.Errors) && r.Errors[i] != nil {
			out[i] = pipeline.FailedSummary(path, r.Errors[i])
			continue
		}
		var res *pipeline.Result
		if i < len(r.Results) {
			res = r.Results[i]
		}
		out[i] = pipeline.Summarize(path, res)
	}
	return out
}

// Stats summarises throughput and mean coverage.
func (r *Result) Stats() pipeline.ParallelStats {
	return pipeline.CalculateParallelStats(r.Results, r.Duration, r.WorkerCount)
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
	} else {
		_, _ = fmt.Fprint(w, output)
	}

	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", len(r.ImagePaths))
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", stats.ProcessedImages)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.FailedImages)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", stats.ThroughputPerSec)
	_, _ = fmt.Fprintf(w, "  Mean coverage: %.2f%%\n", stats.MeanCoverage)
}
