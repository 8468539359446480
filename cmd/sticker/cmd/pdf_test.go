package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/pdf"
	"github.com/MeKo-Tech/sticker/internal/testutil"
)

// writeScenePDF writes a PDF with one scene image on each of n pages.
func writeScenePDF(t *testing.T, n int) string {
	t.Helper()
	cfg := testutil.DefaultSceneConfig()
	cfg.Size = testutil.SmallSize

	figures := make([]pdf.Figure, n)
	for i := range figures {
		figures[i] = pdf.Figure{Caption: "Scene", Image: testutil.GenerateScene(cfg)}
	}
	path := filepath.Join(t.TempDir(), "album.pdf")
	require.NoError(t, pdf.WriteReportFile(path, figures))
	return path
}

func TestPDFCommandJSON(t *testing.T) {
	path := writeScenePDF(t, 2)

	out, _, err := executeCommand(t, "pdf", path, "--format", "json")
	require.NoError(t, err)

	var docs []pdf.DocumentResult
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, 2, docs[0].TotalPages)
	assert.Equal(t, 2, docs[0].TotalImages)
	assert.Equal(t, 1, docs[0].Pages[0].PageNumber)
	assert.Equal(t, "album.pdf#p1-0", docs[0].Pages[0].Images[0].Summary.File)
}

func TestPDFCommandPagesAndOutputDir(t *testing.T) {
	path := writeScenePDF(t, 3)
	outDir := t.TempDir()

	out, _, err := executeCommand(t, "pdf", path, "--pages", "2", "-d", outDir, "--mask=false", "--transparent=false")
	require.NoError(t, err)
	assert.Contains(t, out, "album.pdf#p2-0")
	assert.NotContains(t, out, "album.pdf#p1-0")

	assert.FileExists(t, filepath.Join(outDir, "album_p2_0_sticker.png"))
	assert.NoFileExists(t, filepath.Join(outDir, "album_p1_0_sticker.png"))
}

func TestPDFCommandEncrypted(t *testing.T) {
	plain := writeScenePDF(t, 1)
	locked := filepath.Join(t.TempDir(), "locked.pdf")
	conf := model.NewDefaultConfiguration()
	conf.UserPW = "user"
	conf.OwnerPW = "owner"
	require.NoError(t, api.EncryptFile(plain, locked, conf))

	_, _, err := executeCommand(t, "pdf", locked)
	require.ErrorIs(t, err, pdf.ErrPasswordRequired)

	out, _, err := executeCommand(t, "pdf", locked, "--password", "user", "--owner-password", "owner", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "locked.pdf#p1-0")
}

func TestPDFCommandErrors(t *testing.T) {
	_, _, err := executeCommand(t, "pdf", filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)

	path := writeScenePDF(t, 1)
	_, _, err = executeCommand(t, "pdf", path, "--pages", "0-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page range")
}
