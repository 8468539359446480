package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/sticker/internal/compose"
	"github.com/MeKo-Tech/sticker/internal/contour"
	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

// mockResult builds a minimal result carrying only what summaries read.
func mockResult(coverage float64) *pipeline.Result {
	p := pipeline.DefaultParams()
	p.Style = compose.StyleBlackAndWhite
	return &pipeline.Result{
		Contour:  contour.Contour{{X: 1, Y: 1}, {X: 5, Y: 1}, {X: 5, Y: 5}},
		Coverage: coverage,
		Params:   p,
	}
}

func sampleBatch() *Result {
	return &Result{
		Results:     []*pipeline.Result{mockResult(42.5), nil},
		Errors:      []error{nil, errors.New("decode failed")},
		ImagePaths:  []string{"/in/a.png", "/in/b.png"},
		Duration:    2 * time.Second,
		WorkerCount: 2,
	}
}

func TestFormatResults_Text(t *testing.T) {
	out, err := sampleBatch().FormatResults("text")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "/in/a.png: ")
	assert.Contains(t, lines[0], "coverage 42.50%")
	assert.Contains(t, lines[0], "style Black & White")
	assert.Equal(t, "/in/b.png: error: decode failed", lines[1])
	assert.Equal(t, "1 processed, 1 failed, mean coverage 42.50%", lines[2])

	def, err := sampleBatch().FormatResults("")
	require.NoError(t, err)
	assert.Equal(t, out, def)
}

func TestFormatResults_JSON(t *testing.T) {
	out, err := sampleBatch().FormatResults("json")
	require.NoError(t, err)

	var doc struct {
		Images []pipeline.Summary     `json:"images"`
		Stats  pipeline.ParallelStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Images, 2)
	assert.Equal(t, "/in/a.png", doc.Images[0].File)
	assert.InDelta(t, 42.5, doc.Images[0].Coverage, 1e-9)
	assert.Equal(t, 3, doc.Images[0].ContourPoints)
	assert.Equal(t, "decode failed", doc.Images[1].Error)
	assert.Equal(t, 1, doc.Stats.FailedImages)
	assert.InDelta(t, 0.5, doc.Stats.ThroughputPerSec, 1e-9)
}

func TestFormatResults_YAML(t *testing.T) {
	out, err := sampleBatch().FormatResults("yaml")
	require.NoError(t, err)

	var doc batchDocument
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Images, 2)
	assert.Equal(t, "Black & White", doc.Images[0].StyleLabel)
	assert.Equal(t, 1, doc.Stats.ProcessedImages)
}

func TestFormatResults_CSV(t *testing.T) {
	out, err := sampleBatch().FormatResults("csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "file,width,height,coverage"))
	assert.True(t, strings.HasPrefix(lines[1], "/in/a.png,"))
	assert.True(t, strings.HasSuffix(lines[2], ",decode failed"))
}

func TestFormatResults_Unsupported(t *testing.T) {
	_, err := sampleBatch().FormatResults("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestSaveResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleBatch().SaveResults(&buf, "text", "", false))
	assert.Contains(t, buf.String(), "/in/a.png")

	buf.Reset()
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, sampleBatch().SaveResults(&buf, "json", path, false))
	assert.Equal(t, "Results written to "+path+"\n", buf.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	buf.Reset()
	require.NoError(t, sampleBatch().SaveResults(&buf, "json", path, true))
	assert.Empty(t, buf.String())

	err = sampleBatch().SaveResults(&buf, "xml", "", false)
	require.Error(t, err)
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	sampleBatch().PrintStats(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Total images: 2")
	assert.Contains(t, out, "Processed: 1")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Mean coverage: 42.50%")

	buf.Reset()
	sampleBatch().PrintStats(&buf, true)
	assert.Empty(t, buf.String())
}
