package pipeline

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/compose"
	"github.com/MeKo-Tech/sticker/internal/testutil"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewBuilder().Build()
	require.NoError(t, err)
	return p
}

func smallScene() *image.NRGBA {
	cfg := testutil.DefaultSceneConfig()
	cfg.Size = testutil.SmallSize
	return testutil.GenerateScene(cfg)
}

func TestThresholdsForSensitivity(t *testing.T) {
	tests := []struct {
		s         int
		low, high int
	}{
		{1, 120, 220},
		{5, 200, 300},
		{10, 300, 400},
		{0, 120, 220},
		{42, 300, 400},
	}
	for _, tt := range tests {
		low, high := ThresholdsForSensitivity(tt.s)
		assert.Equal(t, tt.low, low, "sensitivity %d", tt.s)
		assert.Equal(t, tt.high, high, "sensitivity %d", tt.s)
	}
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{"unknown style", func(p *Params) { p.Style = "sepia" }, "style"},
		{"zero border", func(p *Params) { p.BorderThickness = 0 }, "border_thickness"},
		{"zero low", func(p *Params) { p.LowThreshold = 0 }, "low_threshold"},
		{"high equals low", func(p *Params) { p.HighThreshold = p.LowThreshold }, "high_threshold"},
		{"high below low", func(p *Params) { p.HighThreshold = 10 }, "high_threshold"},
		{"negative padding", func(p *Params) { p.Padding = -1 }, "padding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			var pe *ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
			assert.Contains(t, err.Error(), "invalid "+tt.field)
		})
	}
}

func TestCoverage(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range 33 {
		m.Pix[i] = 255
	}
	assert.InDelta(t, 33.0, Coverage(m), 1e-9)

	m = image.NewGray(image.Rect(0, 0, 3, 3))
	m.Pix[4] = 255
	assert.InDelta(t, 11.11, Coverage(m), 1e-9)

	assert.InDelta(t, 0.0, Coverage(image.NewGray(image.Rect(0, 0, 0, 0))), 1e-9)
}

func TestProcess_UniformImageUsesFullFrame(t *testing.T) {
	p := newTestPipeline(t)
	img := testutil.CreateTestImage(64, 48, color.RGBA{128, 128, 128, 255})

	res, err := p.Process(context.Background(), img, DefaultParams())
	require.NoError(t, err)

	assert.False(t, res.SubjectFound())
	assert.False(t, res.Refined)
	assert.InDelta(t, 100.0, res.Coverage, 1e-9)
	assert.Equal(t, 0, utils.CountNonZero(res.Band))
	assert.Equal(t, image.Rect(0, 0, 64, 48), res.Sticker.Bounds())
	for i := 3; i < len(res.Transparent.Pix); i += 4 {
		require.Equal(t, uint8(255), res.Transparent.Pix[i])
	}
	assert.Equal(t, res.Resized.Pix, res.Sticker.Pix)
	require.NoError(t, ValidateResult(res))
}

func TestProcess_SmallScene(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Process(context.Background(), smallScene(), DefaultParams())
	require.NoError(t, err)

	assert.True(t, res.SubjectFound())
	assert.Positive(t, res.ContourArea)
	assert.Greater(t, res.Coverage, 0.0)
	assert.Less(t, res.Coverage, 100.0)
	assert.Equal(t, 160, res.Width())
	assert.Equal(t, 120, res.Height())
	assert.Positive(t, res.Timing.TotalNs)
	require.NoError(t, ValidateResult(res))

	// the centre of the subject is kept with its own colour
	c := res.Sticker.NRGBAAt(80, 60)
	assert.Equal(t, color.NRGBA{40, 60, 160, 255}, c)
	// the frame corner is outside mask and border
	assert.Equal(t, uint8(0), res.Transparent.NRGBAAt(0, 0).A)
}

func TestProcess_BlackAndWhiteSticker(t *testing.T) {
	p := newTestPipeline(t)
	params := DefaultParams()
	params.Style = compose.StyleBlackAndWhite
	params.UseRefinement = false

	res, err := p.Process(context.Background(), smallScene(), params)
	require.NoError(t, err)
	for i := 0; i < len(res.Sticker.Pix); i += 4 {
		px := res.Sticker.Pix[i : i+3]
		require.Equal(t, px[0], px[1])
		require.Equal(t, px[1], px[2])
	}
}

func TestProcess_Downscales(t *testing.T) {
	cfg := testutil.DefaultSceneConfig()
	cfg.Size = testutil.LargeSize
	params := DefaultParams()
	params.UseRefinement = false

	res, err := newTestPipeline(t).Process(context.Background(), testutil.GenerateScene(cfg), params)
	require.NoError(t, err)
	assert.Equal(t, 800, res.Width())
	assert.Equal(t, 600, res.Height())
	assert.Equal(t, image.Rect(0, 0, 1600, 1200), res.Original.Bounds())
	assert.Equal(t, res.Resized.Bounds(), res.Transparent.Bounds())
}

func TestProcess_InvalidParams(t *testing.T) {
	params := DefaultParams()
	params.LowThreshold = 300
	_, err := newTestPipeline(t).Process(context.Background(), smallScene(), params)
	var pe *ParamError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "high_threshold", pe.Field)
}

func TestProcess_ZeroPaddingUsesMaskConfig(t *testing.T) {
	p := newTestPipeline(t)
	params := Params{
		Style:           compose.StyleNormal,
		BorderThickness: 15,
		UseRefinement:   true,
		LowThreshold:    120,
		HighThreshold:   220,
	}
	res, err := p.Process(context.Background(), smallScene(), params)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Params.Padding)
	assert.True(t, res.SubjectFound())

	params.Padding = 15
	explicit, err := p.Process(context.Background(), smallScene(), params)
	require.NoError(t, err)
	assert.Equal(t, explicit.Mask.Pix, res.Mask.Pix)
}

func TestProcess_ZeroPaddingFollowsBuilder(t *testing.T) {
	p, err := NewBuilder().WithMaskPadding(9).Build()
	require.NoError(t, err)
	params := DefaultParams()
	params.Padding = 0
	params.UseRefinement = false

	res, err := p.Process(context.Background(), smallScene(), params)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Params.Padding)

	params.Padding = 9
	explicit, err := p.Process(context.Background(), smallScene(), params)
	require.NoError(t, err)
	assert.Equal(t, explicit.Mask.Pix, res.Mask.Pix)
}

func TestProcess_InvalidImage(t *testing.T) {
	p := newTestPipeline(t)
	for name, img := range map[string]image.Image{
		"nil":   nil,
		"empty": image.NewNRGBA(image.Rect(0, 0, 0, 10)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Process(context.Background(), img, DefaultParams())
			var ipe *utils.ImageProcessingError
			require.ErrorAs(t, err, &ipe)
			assert.Equal(t, "validate", ipe.Operation)
			assert.ErrorIs(t, err, utils.ErrEmptyImage)
		})
	}
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestPipeline(t).Process(ctx, smallScene(), DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_NotInitialized(t *testing.T) {
	var p *Pipeline
	_, err := p.Process(context.Background(), smallScene(), DefaultParams())
	assert.ErrorContains(t, err, "pipeline not initialized")
}

func TestProcess_RecordsProfile(t *testing.T) {
	p := newTestPipeline(t)
	params := DefaultParams()
	params.UseRefinement = false
	for range 2 {
		_, err := p.Process(context.Background(), smallScene(), params)
		require.NoError(t, err)
	}
	snap := p.Profiler.Snapshot()
	assert.Equal(t, int64(2), snap["images"])
	assert.Contains(t, snap, "total_ms_per_image")
}

func TestProcessFile(t *testing.T) {
	p := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "scene.png")
	testutil.SaveImage(t, smallScene(), path)

	res, err := p.ProcessFile(context.Background(), path, DefaultParams())
	require.NoError(t, err)
	assert.True(t, res.SubjectFound())

	_, err = p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"), DefaultParams())
	var ipe *utils.ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)
}

func TestProcessImages(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.ProcessImages(context.Background(), nil)
	require.Error(t, err)

	out, err := p.ProcessImages(context.Background(), []image.Image{
		testutil.CreateTestImage(32, 32, color.White),
		testutil.CreateTestImage(40, 24, color.Black),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 40, out[1].Width())
}

// The reference scenario: a 400x600 high-contrast portrait processed with
// the default parameters.
func TestProcess_PortraitScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size refinement is slow")
	}
	img := testutil.GenerateScene(testutil.DefaultSceneConfig())
	res, err := newTestPipeline(t).Process(context.Background(), img, DefaultParams())
	require.NoError(t, err)

	assert.True(t, res.SubjectFound())
	assert.NotEmpty(t, res.Contour)
	assert.GreaterOrEqual(t, res.Coverage, 15.0)
	assert.LessOrEqual(t, res.Coverage, 60.0)
	assert.Equal(t, res.Resized.Bounds(), res.Sticker.Bounds())
	assert.Equal(t, res.Resized.Bounds(), res.Transparent.Bounds())
	require.NoError(t, ValidateResult(res))
}
