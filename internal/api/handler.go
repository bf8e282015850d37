// Package api implements the HTTP surface: authentication, uploads, job
// status, and the progress WebSocket.
package api

import (
	"log/slog"

	"github.com/nischay-chauhan/video-transcode/internal/auth"
	"github.com/nischay-chauhan/video-transcode/internal/job"
	"github.com/nischay-chauhan/video-transcode/internal/observability/metrics"
	"github.com/nischay-chauhan/video-transcode/internal/queue"
	"github.com/nischay-chauhan/video-transcode/internal/upload"
	"github.com/nischay-chauhan/video-transcode/internal/ws"
)

const defaultMaxUploadBytes = 2 << 30

// HandlerConfig wires the handler's collaborators.
type HandlerConfig struct {
	Registry    job.Registry
	Reassembler *upload.Reassembler
	Queue       queue.Queue
	Hub         *ws.Hub
	Auth        *auth.Service
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
	// OutputDir is where finished encodes are written.
	OutputDir string
	// MaxUploadBytes bounds a single request body. Zero selects the 2 GiB
	// default.
	MaxUploadBytes int64
}

// Handler owns the HTTP endpoints.
type Handler struct {
	registry       job.Registry
	reassembler    *upload.Reassembler
	queue          queue.Queue
	hub            *ws.Hub
	auth           *auth.Service
	metrics        *metrics.Recorder
	logger         *slog.Logger
	outputDir      string
	maxUploadBytes int64
}

// NewHandler initialises a handler from the configuration.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &Handler{
		registry:       cfg.Registry,
		reassembler:    cfg.Reassembler,
		queue:          cfg.Queue,
		hub:            cfg.Hub,
		auth:           cfg.Auth,
		metrics:        cfg.Metrics,
		logger:         logger,
		outputDir:      cfg.OutputDir,
		maxUploadBytes: maxBytes,
	}
}
