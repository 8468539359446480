package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/testutil"
)

type recordingProgress struct {
	mu       sync.Mutex
	total    int
	events   []ProgressEvent
	complete bool
}

func (r *recordingProgress) OnStart(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
}

func (r *recordingProgress) OnProgress(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingProgress) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = true
}

func uniformImages(sizes ...int) []image.Image {
	out := make([]image.Image, len(sizes))
	for i, s := range sizes {
		out[i] = testutil.CreateTestImage(s, s, color.White)
	}
	return out
}

func TestDefaultParallelConfig(t *testing.T) {
	cfg := DefaultParallelConfig()
	assert.Positive(t, cfg.MaxWorkers)
	assert.Nil(t, cfg.ProgressCallback)
	assert.Nil(t, cfg.ErrorHandler)
}

func TestProcessImagesParallel_EmptyInput(t *testing.T) {
	p := newTestPipeline(t)
	results, err := p.ProcessImagesParallel(context.Background(), nil, DefaultParams(), DefaultParallelConfig())
	assert.ErrorContains(t, err, "no images provided")
	assert.Nil(t, results)
}

func TestProcessImagesParallel_NilPipeline(t *testing.T) {
	var p *Pipeline
	_, err := p.ProcessImagesParallel(context.Background(), uniformImages(10), DefaultParams(), DefaultParallelConfig())
	assert.ErrorContains(t, err, "pipeline not initialized")
}

func TestProcessImagesParallel_KeepsOrder(t *testing.T) {
	p := newTestPipeline(t)
	sizes := []int{20, 48, 32, 24, 40}
	for _, workers := range []int{1, 3, 8} {
		cfg := DefaultParallelConfig()
		cfg.MaxWorkers = workers
		results, err := p.ProcessImagesParallel(context.Background(), uniformImages(sizes...), DefaultParams(), cfg)
		require.NoError(t, err)
		require.Len(t, results, len(sizes))
		for i, r := range results {
			require.NotNil(t, r)
			assert.Equal(t, sizes[i], r.Width(), "workers=%d index=%d", workers, i)
		}
	}
}

func TestProcessImagesParallel_Progress(t *testing.T) {
	p := newTestPipeline(t)
	rec := &recordingProgress{}
	cfg := DefaultParallelConfig()
	cfg.MaxWorkers = 2
	cfg.ProgressCallback = rec

	_, err := p.ProcessImagesParallel(context.Background(), uniformImages(16, 16, 16), DefaultParams(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, rec.total)
	assert.True(t, rec.complete)
	require.Len(t, rec.events, 3)
	for i, ev := range rec.events {
		assert.Equal(t, i+1, ev.Done)
		assert.Equal(t, 3, ev.Total)
		assert.InDelta(t, 100.0, ev.Coverage, 1e-9)
	}
}

func TestProcessImagesParallel_Errors(t *testing.T) {
	p := newTestPipeline(t)
	images := uniformImages(16, 16, 16)
	images[1] = image.NewNRGBA(image.Rectangle{})

	var handled []int
	var mu sync.Mutex
	rec := &recordingProgress{}
	cfg := DefaultParallelConfig()
	cfg.MaxWorkers = 2
	cfg.ProgressCallback = rec
	cfg.ErrorHandler = func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, i)
	}

	results, err := p.ProcessImagesParallel(context.Background(), images, DefaultParams(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image 1:")
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
	assert.Equal(t, []int{1}, handled)
	assert.Equal(t, 1, rec.events[len(rec.events)-1].Failed)
}

func TestProcessImagesParallel_Cancelled(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.ProcessImagesParallel(ctx, uniformImages(16, 16, 16, 16), DefaultParams(), DefaultParallelConfig())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProcessFilesParallel(t *testing.T) {
	p := newTestPipeline(t)
	dir := t.TempDir()
	paths := testutil.WriteScenes(t, dir, 3)
	paths = append(paths, filepath.Join(dir, "missing.png"))

	rec := &recordingProgress{}
	cfg := DefaultParallelConfig()
	cfg.MaxWorkers = 2
	cfg.ProgressCallback = rec
	params := DefaultParams()
	params.UseRefinement = false

	results, err := p.ProcessFilesParallel(context.Background(), paths, params, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image 3:")
	for i := range 3 {
		require.NotNil(t, results[i])
		assert.True(t, results[i].SubjectFound())
	}
	assert.Nil(t, results[3])

	names := map[string]bool{}
	for _, ev := range rec.events {
		names[ev.Name] = true
	}
	assert.True(t, names["missing.png"])
	assert.True(t, names["scene_01.png"])
}

func TestCalculateParallelStats(t *testing.T) {
	results := []*Result{{Coverage: 20}, nil, {Coverage: 40}}
	st := CalculateParallelStats(results, 2*time.Second, 4)
	assert.Equal(t, 3, st.TotalImages)
	assert.Equal(t, 2, st.ProcessedImages)
	assert.Equal(t, 1, st.FailedImages)
	assert.Equal(t, 4, st.WorkerCount)
	assert.Equal(t, time.Second, st.AveragePerImage)
	assert.InDelta(t, 1.0, st.ThroughputPerSec, 1e-9)
	assert.InDelta(t, 30.0, st.MeanCoverage, 1e-9)

	empty := CalculateParallelStats(nil, time.Second, 1)
	assert.Zero(t, empty.ThroughputPerSec)
}
