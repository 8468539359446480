package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/compose"
)

// mockWebSocketConn records written frames.
type mockWebSocketConn struct {
	mu       sync.Mutex
	messages [][]byte
}

func (m *mockWebSocketConn) WriteMessage(_ int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockWebSocketConn) responses(t *testing.T) []WebSocketStickerResponse {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WebSocketStickerResponse, 0, len(m.messages))
	for _, msg := range m.messages {
		var resp WebSocketStickerResponse
		require.NoError(t, json.Unmarshal(msg, &resp))
		out = append(out, resp)
	}
	return out
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestWebSocketStickerRequest_Values(t *testing.T) {
	req := WebSocketStickerRequest{Style: "bw", Border: intPtr(12), Refine: boolPtr(false), Padding: intPtr(4)}
	v := req.values()
	assert.Equal(t, "bw", v["style"])
	assert.Equal(t, "12", v["border"])
	assert.Equal(t, "false", v["refine"])
	assert.Equal(t, "4", v["padding"])
	_, ok := v["low"]
	assert.False(t, ok)
}

func TestHandleWebSocketMessage_Success(t *testing.T) {
	s := newTestServer(t, Config{})
	data, err := json.Marshal(WebSocketStickerRequest{
		Image: scenePNG(t), Filename: "cat.png", Style: "bw", Border: intPtr(8), Refine: boolPtr(false),
	})
	require.NoError(t, err)

	conn := &mockWebSocketConn{}
	s.handleWebSocketMessage(context.Background(), conn, data)

	responses := conn.responses(t)
	require.Len(t, responses, 3)
	assert.Equal(t, "processing", responses[0].Status)
	assert.Equal(t, "processing", responses[1].Status)
	assert.InDelta(t, 0.5, responses[1].Progress, 1e-9)

	final := responses[2]
	assert.Equal(t, "completed", final.Status)
	assert.Equal(t, "sticker_response", final.Type)
	assert.Equal(t, responses[0].RequestID, final.RequestID)
	require.NotNil(t, final.Result)
	assert.Equal(t, "cat.png", final.Result.Summary.File)
	assert.Equal(t, string(compose.StyleBlackAndWhite), final.Result.Summary.Style)
	assert.Equal(t, 8, final.Result.Summary.Border)
	assert.NotEmpty(t, final.Result.Images.Sticker)
	assert.Empty(t, final.Result.Images.Steps)
}

func TestHandleWebSocketMessage_Errors(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name      string
		payload   string
		errorType string
		contains  string
	}{
		{"malformed json", "{not json", "invalid_request", "Failed to parse request"},
		{"no image", `{"style":"normal"}`, "invalid_request", "No image data provided"},
		{"bad border", `{"image":"aGVsbG8=","border":50}`, "invalid_parameter", "border"},
		{"bad image", `{"image":"aGVsbG8="}`, "image_error", "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockWebSocketConn{}
			s.handleWebSocketMessage(context.Background(), conn, []byte(tt.payload))

			responses := conn.responses(t)
			require.NotEmpty(t, responses)
			last := responses[len(responses)-1]
			assert.Equal(t, "error", last.Status)
			assert.Equal(t, tt.errorType, last.ErrorType)
			assert.Contains(t, last.Error, tt.contains)
			assert.Nil(t, last.Result)
		})
	}
}

func TestStickerWebSocketHandler_NoPipeline(t *testing.T) {
	w := httptest.NewRecorder()
	(&Server{}).stickerWebSocketHandler(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStickerWebSocketHandler_EndToEnd(t *testing.T) {
	s := newTestServer(t, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	require.NoError(t, conn.WriteJSON(WebSocketStickerRequest{Image: scenePNG(t), Refine: boolPtr(false), Steps: true}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))

	var final WebSocketStickerResponse
	for final.Status != "completed" && final.Status != "error" {
		final = WebSocketStickerResponse{}
		require.NoError(t, conn.ReadJSON(&final))
	}
	require.Equal(t, "completed", final.Status, final.Error)
	require.NotNil(t, final.Result)
	assert.True(t, final.Result.Summary.SubjectFound)
	assert.NotEmpty(t, final.Result.Images.Steps)
}
