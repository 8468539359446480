package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int                        // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback           // Optional progress reporting
	ErrorHandler     func(index int, err error) // Optional per-item error handler
}

// DefaultParallelConfig returns one worker per CPU and no callbacks.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type job struct {
	index int
}

type jobResult struct {
	index  int
	result *Result
	err    error
}

// processFunc produces the result for item i.
type processFunc func(ctx context.Context, i int) (*Result, error)

// ProcessImagesParallel processes images with a worker pool. Results keep
// input order; failed items are nil and the first failure is returned as
// "image N: ...".
func (p *Pipeline) ProcessImagesParallel(ctx context.Context, images []image.Image, params Params, cfg ParallelConfig) ([]*Result, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.Masks == nil {
		return nil, errors.New("pipeline not initialized")
	}
	fn := func(ctx context.Context, i int) (*Result, error) {
		return p.Process(ctx, images[i], params)
	}
	return runParallel(ctx, len(images), nil, fn, cfg)
}

// ProcessFilesParallel loads and processes paths with a worker pool.
func (p *Pipeline) ProcessFilesParallel(ctx context.Context, paths []string, params Params, cfg ParallelConfig) ([]*Result, error) {
	if len(paths) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.Masks == nil {
		return nil, errors.New("pipeline not initialized")
	}
	fn := func(ctx context.Context, i int) (*Result, error) {
		return p.ProcessFile(ctx, paths[i], params)
	}
	name := func(i int) string { return filepath.Base(paths[i]) }
	return runParallel(ctx, len(paths), name, fn, cfg)
}

func runParallel(ctx context.Context, n int, name func(int) string, fn processFunc, cfg ParallelConfig) ([]*Result, error) {
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)

	if cfg.ProgressCallback != nil {
		cfg.ProgressCallback.OnStart(n)
		defer cfg.ProgressCallback.OnComplete()
	}

	jobs := make(chan job)
	results := make(chan jobResult, n)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, fn)
		}()
	}

	go func() {
		defer close(jobs)
		for i := range n {
			select {
			case jobs <- job{index: i}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*Result, n)
	errs := make([]error, n)
	done, failed := 0, 0
	for r := range results {
		ordered[r.index], errs[r.index] = r.result, r.err
		done++
		if r.err != nil {
			failed++
		}
		if cfg.ProgressCallback != nil {
			ev := ProgressEvent{Index: r.index, Done: done, Failed: failed, Total: n, Err: r.err}
			if name != nil {
				ev.Name = name(r.index)
			}
			if r.result != nil {
				ev.Coverage = r.result.Coverage
			}
			cfg.ProgressCallback.OnProgress(ev)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		ordered[i] = nil
		if firstErr == nil {
			firstErr = fmt.Errorf("image %d: %w", i, err)
		}
		if cfg.ErrorHandler != nil {
			cfg.ErrorHandler(i, err)
		}
	}
	return ordered, firstErr
}

func worker(ctx context.Context, jobs <-chan job, results chan<- jobResult, fn processFunc) {
	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			res, err := fn(ctx, j.index)
			results <- jobResult{index: j.index, result: res, err: err}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats holds statistics about parallel processing performance.
type ParallelStats struct {
	TotalImages      int           `json:"total_images"         yaml:"total_images"`
	ProcessedImages  int           `json:"processed_images"     yaml:"processed_images"`
	FailedImages     int           `json:"failed_images"        yaml:"failed_images"`
	WorkerCount      int           `json:"worker_count"         yaml:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"    yaml:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns" yaml:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"   yaml:"throughput_per_sec"`
	MeanCoverage     float64       `json:"mean_coverage"        yaml:"mean_coverage"`
}

// CalculateParallelStats summarises a finished run. Nil results count as
// failures.
func CalculateParallelStats(results []*Result, duration time.Duration, workerCount int) ParallelStats {
	st := ParallelStats{
		TotalImages:   len(results),
		WorkerCount:   workerCount,
		TotalDuration: duration,
	}
	var coverage float64
	for _, r := range results {
		if r == nil {
			st.FailedImages++
			continue
		}
		st.ProcessedImages++
		coverage += r.Coverage
	}
	if st.ProcessedImages > 0 {
		st.AveragePerImage = duration / time.Duration(st.ProcessedImages)
		st.MeanCoverage = coverage / float64(st.ProcessedImages)
		if duration > 0 {
			st.ThroughputPerSec = float64(st.ProcessedImages) / duration.Seconds()
		}
	}
	return st
}
