package server

import (
	"bytes"
	"context"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
	"github.com/MeKo-Tech/sticker/internal/testutil"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

// mockPipeline lets tests replace the processing step.
type mockPipeline struct {
	process func(ctx context.Context, img image.Image, params pipeline.Params) (*pipeline.Result, error)
	calls   int
	last    pipeline.Params
}

func (m *mockPipeline) Process(ctx context.Context, img image.Image, params pipeline.Params) (*pipeline.Result, error) {
	m.calls++
	m.last = params
	return m.process(ctx, img, params)
}

func (m *mockPipeline) Info() map[string]any {
	return map[string]any{"mock": true}
}

// newTestServer returns a server on the real pipeline.
func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.PipelineConfig = pipeline.DefaultConfig()
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

// scenePNG encodes a small subject-on-background photo.
func scenePNG(t *testing.T) []byte {
	t.Helper()
	cfg := testutil.DefaultSceneConfig()
	cfg.Size = testutil.SmallSize
	data, err := utils.PNGBytes(testutil.GenerateScene(cfg))
	require.NoError(t, err)
	return data
}

// multipartRequest builds a POST with the image under field "image" plus
// form fields.
func multipartRequest(t *testing.T, target string, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
