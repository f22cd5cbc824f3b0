package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/MeKo-Tech/leafstitch/internal/stitch"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	defaults    stitch.Config
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	jpegQuality int
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	TimeoutSec      int
	ShutdownTimeout int
	JPEGQuality     int
	Pipeline        stitch.Config
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// DetectResponse wraps a midrib detection result.
type DetectResponse struct {
	Success    bool    `json:"success"`
	Y          int     `json:"y,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	BandWidth  int     `json:"band_width,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ScoreResponse wraps an overlap guide score.
type ScoreResponse struct {
	Success bool   `json:"success"`
	Score   int    `json:"score"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the generic JSON error body.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a new stitching server instance.
func NewServer(config Config) (*Server, error) {
	if err := config.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 64
	}
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = 95
	}
	return &Server{
		defaults:    config.Pipeline,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		jpegQuality: config.JPEGQuality,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error { return nil }

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/stitch", s.corsMiddleware(s.stitchHandler))
	mux.HandleFunc("/detect", s.corsMiddleware(s.detectHandler))
	mux.HandleFunc("/score", s.corsMiddleware(s.scoreHandler))
	mux.HandleFunc("/stitch/ws", s.stitchWebSocketHandler)
}

// writeErrorResponse writes a JSON error with the given status code.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: message}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding error response: %v\n", err)
	}
}
