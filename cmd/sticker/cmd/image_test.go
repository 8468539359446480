package cmd

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
	"github.com/MeKo-Tech/sticker/internal/testutil"
)

func TestImageCommandHelp(t *testing.T) {
	out, _, err := executeCommand(t, "image", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Make a sticker from each image file")
	assert.Contains(t, out, "--border")
	assert.Contains(t, out, "--output-dir")
}

func TestImageCommandRequiresFile(t *testing.T) {
	_, _, err := executeCommand(t, "image")
	require.Error(t, err)
}

func TestImageCommandWithNonExistentFile(t *testing.T) {
	_, _, err := executeCommand(t, "image", "/non/existent/file.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process /non/existent/file.jpg")
}

func TestImageCommandText(t *testing.T) {
	paths := testutil.WriteScenes(t, t.TempDir(), 2)

	out, _, err := executeCommand(t, "image", paths[0], paths[1])
	require.NoError(t, err)
	assert.Contains(t, out, "scene_01.png")
	assert.Contains(t, out, "scene_02.png")
	assert.Contains(t, out, "subject found")
}

func TestImageCommandJSON(t *testing.T) {
	paths := testutil.WriteScenes(t, t.TempDir(), 1)

	out, _, err := executeCommand(t, "image", paths[0], "--format", "json", "--style", "bw", "--border", "10")
	require.NoError(t, err)

	var s pipeline.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "scene_01.png", s.File)
	assert.Equal(t, "black and white", s.Style)
	assert.Equal(t, 10, s.Border)
	assert.True(t, s.SubjectFound)
	assert.Greater(t, s.Coverage, 0.0)
}

func TestImageCommandThresholds(t *testing.T) {
	paths := testutil.WriteScenes(t, t.TempDir(), 1)

	out, _, err := executeCommand(t, "image", paths[0], "--format", "json", "--sensitivity", "3")
	require.NoError(t, err)
	var s pipeline.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 160, s.LowThreshold)
	assert.Equal(t, 260, s.HighThreshold)

	out, _, err = executeCommand(t, "image", paths[0], "--format", "json", "--sensitivity", "3", "--low", "90")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 90, s.LowThreshold)
	assert.Equal(t, 260, s.HighThreshold)
}

func TestImageCommandOutputDir(t *testing.T) {
	paths := testutil.WriteScenes(t, t.TempDir(), 1)
	outDir := t.TempDir()

	_, _, err := executeCommand(t, "image", paths[0], "--output-dir", outDir, "--steps")
	require.NoError(t, err)

	for _, name := range []string{"scene_01_sticker.png", "scene_01_transparent.png", "scene_01_mask.png", "scene_01_steps.png"} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}

	sticker := testutil.LoadImage(t, filepath.Join(outDir, "scene_01_sticker.png"))
	assert.Equal(t, image.Pt(testutil.SmallSize.Width, testutil.SmallSize.Height), sticker.Bounds().Size())
}

func TestImageCommandSkipsOptionalOutputs(t *testing.T) {
	paths := testutil.WriteScenes(t, t.TempDir(), 1)
	outDir := t.TempDir()

	_, _, err := executeCommand(t, "image", paths[0], "-d", outDir, "--transparent=false", "--mask=false")
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "scene_01_sticker.png", entries[0].Name())
}

func TestImageCommandOutputFile(t *testing.T) {
	paths := testutil.WriteScenes(t, t.TempDir(), 1)
	file := filepath.Join(t.TempDir(), "summary.csv")

	out, stderr, err := executeCommand(t, "image", paths[0], "--format", "csv", "--output", file)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Results written to "+file)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "file,width,height"))
	assert.True(t, strings.HasPrefix(lines[1], "scene_01.png,"))
}

func TestImageCommandInvalidFlags(t *testing.T) {
	paths := testutil.WriteScenes(t, t.TempDir(), 1)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"border", []string{"--border", "99"}, "invalid border thickness"},
		{"style", []string{"--style", "sepia"}, "invalid sticker style"},
		{"sensitivity", []string{"--sensitivity", "12"}, "invalid edge sensitivity"},
		{"format", []string{"--format", "xml"}, "invalid output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"image", paths[0]}, tt.args...)
			_, _, err := executeCommand(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
