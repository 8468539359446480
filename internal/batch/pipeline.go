package batch

import (
	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

// buildPipeline creates a sticker pipeline from the batch configuration.
func buildPipeline(config *Config, progressCallback pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilderFromConfig(config.Pipeline).
		WithDefaults(config.Params).
		WithParallelWorkers(config.Workers)
	if progressCallback != nil {
		b = b.WithProgressCallback(progressCallback)
	}
	return b.Build()
}

// parallelConfig derives the worker pool settings from the pipeline and
// records per-image errors into errs.
func parallelConfig(pl *pipeline.Pipeline, errs []error) pipeline.ParallelConfig {
	pc := pl.Config().Parallel
	pc.ErrorHandler = func(index int, err error) {
		errs[index] = err
	}
	return pc
}
