package server

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

// stickerPipeline defines the methods needed by the server from a pipeline.
type stickerPipeline interface {
	Process(ctx context.Context, img image.Image, params pipeline.Params) (*pipeline.Result, error)
	Info() map[string]any
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    stickerPipeline
	defaults    pipeline.Params
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	RateLimit      RateLimitConfig
}

// RateLimitConfig holds per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// InfoResponse is returned by /info.
type InfoResponse struct {
	Pipeline map[string]any  `json:"pipeline"`
	Defaults pipeline.Params `json:"defaults"`
	Formats  []string        `json:"formats"`
}

// StickerImages holds PNG encodings; encoding/json writes them as base64.
type StickerImages struct {
	Sticker     []byte `json:"sticker,omitempty"`
	Transparent []byte `json:"transparent,omitempty"`
	Mask        []byte `json:"mask,omitempty"`
	Steps       []byte `json:"steps,omitempty"`
}

// StickerResponse is the JSON body of a processed image.
type StickerResponse struct {
	Success bool             `json:"success"`
	Summary pipeline.Summary `json:"summary"`
	Images  StickerImages    `json:"images"`
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Field   string `json:"field,omitempty"`
}

// NewServer creates a new sticker server instance.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilderFromConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}
	s := newServer(pl, config)
	s.defaults = pl.Config().Defaults
	return s, nil
}

// newServer wires p with the transport settings of config.
func newServer(p stickerPipeline, config Config) *Server {
	s := &Server{
		pipeline:    p,
		defaults:    pipeline.DefaultParams(),
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 20
	}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/info", s.corsMiddleware(s.infoHandler))
	mux.HandleFunc("/sticker", s.corsMiddleware(s.rateLimitMiddleware(s.stickerHandler)))
	mux.HandleFunc("/ws", s.rateLimitMiddleware(s.stickerWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
