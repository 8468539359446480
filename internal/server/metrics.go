package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sticker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Sticker processing metrics
	stickerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_requests_total",
			Help: "Total number of sticker requests",
		},
		[]string{"source", "status"}, // source: http, websocket
	)

	stickerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sticker_processing_duration_seconds",
			Help:    "Sticker pipeline duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	stickerCoverage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sticker_mask_coverage_percent",
			Help:    "Share of the working image covered by the subject mask",
			Buckets: []float64{1, 5, 10, 20, 30, 40, 50, 60, 80, 100},
		},
		[]string{"source"},
	)

	refinementOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_refinement_total",
			Help: "Refinement attempts by whether the refined mask was used",
		},
		[]string{"applied"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sticker_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{10 * 1024, 100 * 1024, 512 * 1024, 1024 * 1024, 5 * 1024 * 1024, 20 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sticker_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
