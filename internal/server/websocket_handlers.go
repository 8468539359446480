package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketStickerRequest is one request frame. Image holds the encoded
// photo, base64 in JSON. Unset parameters fall back to the server defaults.
type WebSocketStickerRequest struct {
	Image       []byte `json:"image"`
	Filename    string `json:"filename,omitempty"`
	Style       string `json:"style,omitempty"`
	Border      *int   `json:"border,omitempty"`
	Refine      *bool  `json:"refine,omitempty"`
	Sensitivity *int   `json:"sensitivity,omitempty"`
	Low         *int   `json:"low,omitempty"`
	High        *int   `json:"high,omitempty"`
	Padding     *int   `json:"padding,omitempty"`
	Steps       bool   `json:"steps,omitempty"`
}

// values exposes the request parameters to parseParams.
func (req WebSocketStickerRequest) values() map[string]string {
	v := map[string]string{"style": req.Style}
	setInt := func(key string, p *int) {
		if p != nil {
			v[key] = strconv.Itoa(*p)
		}
	}
	setInt("border", req.Border)
	setInt("sensitivity", req.Sensitivity)
	setInt("low", req.Low)
	setInt("high", req.High)
	setInt("padding", req.Padding)
	if req.Refine != nil {
		v["refine"] = strconv.FormatBool(*req.Refine)
	}
	return v
}

// WebSocketStickerResult is the payload of a completed request.
type WebSocketStickerResult struct {
	Summary pipeline.Summary `json:"summary"`
	Images  StickerImages    `json:"images"`
}

// WebSocketStickerResponse is one response frame.
type WebSocketStickerResponse struct {
	Type      string                  `json:"type"`
	Status    string                  `json:"status"` // "processing", "completed", "error"
	Progress  float64                 `json:"progress,omitempty"`
	Result    *WebSocketStickerResult `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
	ErrorType string                  `json:"error_type,omitempty"`
	RequestID string                  `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// lockedWriter serialises writes from the read loop and the pinger.
type lockedWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return l.conn.WriteMessage(messageType, data)
}

// stickerWebSocketHandler upgrades the connection and serves requests
// until the client goes away.
func (s *Server) stickerWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.writeErrorResponse(w, "Sticker pipeline not initialized", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	writer := &lockedWriter{conn: conn}

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writer.mu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
				writer.mu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, writer, data)
		}
	}
}

// handleWebSocketMessage processes one request frame.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	var req WebSocketStickerRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No image data provided")
		return
	}

	values := req.values()
	params, err := parseParams(func(k string) string { return values[k] }, s.defaults)
	if err != nil {
		s.sendWebSocketError(conn, requestID, errorType(err), err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketStickerResponse{
		Type: "sticker_response", Status: "processing", RequestID: requestID,
	})

	img, _, err := utils.DecodeImage(bytes.NewReader(req.Image))
	if err != nil {
		s.sendWebSocketError(conn, requestID, errorType(err), err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketStickerResponse{
		Type: "sticker_response", Status: "processing", Progress: 0.5, RequestID: requestID,
	})

	res, err := s.process(ctx, "websocket", img, params)
	if err != nil {
		s.sendWebSocketError(conn, requestID, errorType(err), err.Error())
		return
	}

	images, err := encodeImages(res, req.Steps)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "internal_error", err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketStickerResponse{
		Type:      "sticker_response",
		Status:    "completed",
		Progress:  1.0,
		RequestID: requestID,
		Result: &WebSocketStickerResult{
			Summary: pipeline.Summarize(req.Filename, res),
			Images:  images,
		},
	})
}

// sendWebSocketResponse sends a response frame.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketStickerResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Warn("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error frame.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketStickerResponse{
		Type:      "sticker_response",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
