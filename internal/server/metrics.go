package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafstitch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leafstitch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Stitching metrics
	stitchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafstitch_stitch_requests_total",
			Help: "Total number of stitch requests",
		},
		[]string{"type", "status"}, // type: stitch, detect, score, websocket_stitch
	)

	stitchProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leafstitch_stitch_processing_duration_seconds",
			Help:    "Stitch processing duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"type"},
	)

	stitchSegmentCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leafstitch_stitch_segment_count",
			Help:    "Number of segments per stitch request",
			Buckets: []float64{1, 2, 3, 5, 8, 12, 20, 32},
		},
	)

	compositePixels = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leafstitch_composite_pixels",
			Help:    "Pixel count of produced composites",
			Buckets: prometheus.ExponentialBuckets(100_000, 4, 8),
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leafstitch_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leafstitch_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafstitch_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
