package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
	"github.com/MeKo-Tech/leafstitch/internal/stitch"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketStitchRequest represents a stitch request via WebSocket. Segments
// are base64-encoded image files in capture order.
type WebSocketStitchRequest struct {
	Type     string                 `json:"type"` // "stitch"
	Segments []string               `json:"segments"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// WebSocketStitchResponse represents a stitch response via WebSocket.
// Progress messages carry pair/total; the terminal message carries either
// the composite or an error.
type WebSocketStitchResponse struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"` // "processing", "completed", "error"
	Pair      int     `json:"pair,omitempty"`
	Total     int     `json:"total,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Composite string  `json:"composite,omitempty"` // base64 JPEG
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
}

// stitchWebSocketHandler handles WebSocket connections for stitching with
// live progress streaming.
func (s *Server) stitchWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage processes a WebSocket message.
func (s *Server) handleWebSocketMessage(conn *websocket.Conn, data []byte) {
	var req WebSocketStitchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Type != "stitch" {
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)
	s.sendWebSocketResponse(conn, WebSocketStitchResponse{
		Type:      "stitch_response",
		Status:    "processing",
		RequestID: requestID,
	})
	s.processWebSocketStitch(conn, req, requestID)
}

// processWebSocketStitch decodes the segments, runs the pipeline, and
// streams progress variants before the terminal response.
func (s *Server) processWebSocketStitch(conn *websocket.Conn, req WebSocketStitchRequest, requestID string) {
	if len(req.Segments) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No segment data provided")
		return
	}

	images := make(raster.Sequence, 0, len(req.Segments))
	for i, encoded := range req.Segments {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to decode segment %d: %v", i, err))
			return
		}
		decoded, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Invalid image format for segment %d", i))
			return
		}
		img, err := raster.FromImage(decoded)
		if err != nil {
			s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Invalid segment %d: %v", i, err))
			return
		}
		images = append(images, img)
	}
	stitchSegmentCount.Observe(float64(len(images)))

	pipeline, err := s.pipelineForWebSocket(req.Options)
	if err != nil {
		s.sendWebSocketError(conn, "invalid_request", err.Error())
		return
	}

	start := time.Now()
	var terminal stitch.Outcome
	for outcome := range pipeline.ProcessStream(context.Background(), images) {
		if outcome.Kind == stitch.KindProgress {
			s.sendWebSocketResponse(conn, WebSocketStitchResponse{
				Type:      "stitch_response",
				Status:    "processing",
				Pair:      outcome.Pair,
				Total:     outcome.Total,
				Progress:  float64(outcome.Pair) / float64(outcome.Total),
				RequestID: requestID,
			})
			continue
		}
		terminal = outcome
	}
	duration := time.Since(start)

	if terminal.Kind != stitch.KindSuccess {
		stitchRequestsTotal.WithLabelValues("websocket_stitch", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", terminal.Message)
		return
	}

	stitchRequestsTotal.WithLabelValues("websocket_stitch", "success").Inc()
	stitchProcessingDuration.WithLabelValues("websocket_stitch").Observe(duration.Seconds())
	compositePixels.Observe(float64(terminal.Image.Width()) * float64(terminal.Image.Height()))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, terminal.Image.NRGBA(), &jpeg.Options{Quality: s.jpegQuality}); err != nil {
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Failed to encode composite: %v", err))
		return
	}

	s.sendWebSocketResponse(conn, WebSocketStitchResponse{
		Type:      "stitch_response",
		Status:    "completed",
		Progress:  1.0,
		Width:     terminal.Image.Width(),
		Height:    terminal.Image.Height(),
		Composite: base64.StdEncoding.EncodeToString(buf.Bytes()),
		RequestID: requestID,
	})
}

// pipelineForWebSocket builds a pipeline from server defaults overlaid with
// request options.
func (s *Server) pipelineForWebSocket(options map[string]interface{}) (*stitch.Pipeline, error) {
	b := stitch.NewBuilder().
		WithOverlap(s.defaults.OverlapFraction).
		WithAutoOverlap(s.defaults.AutoOverlap).
		WithMidribAlign(s.defaults.MidribAlign).
		WithSearchTolerance(s.defaults.SearchTolerance).
		WithLimits(s.defaults.MaxSegments, s.defaults.MaxPixels)

	if options == nil {
		return b.Build()
	}

	if v, ok := options["overlap"].(float64); ok {
		if v <= 0 || v >= 1 {
			return nil, fmt.Errorf("invalid overlap fraction: %v", v)
		}
		b = b.WithOverlap(v)
	}
	if v, ok := options["auto_overlap"].(bool); ok {
		b = b.WithAutoOverlap(v)
	}
	if v, ok := options["midrib"].(bool); ok {
		b = b.WithMidribAlign(v)
	}
	if v, ok := options["tolerance"].(float64); ok {
		if v <= 0 || v > 1 {
			return nil, fmt.Errorf("invalid tolerance: %v", v)
		}
		b = b.WithSearchTolerance(v)
	}
	if v, ok := options["offsets"].([]interface{}); ok {
		offsets := make([]int, 0, len(v))
		for _, o := range v {
			n, ok := o.(float64)
			if !ok {
				return nil, fmt.Errorf("invalid offset value: %v", o)
			}
			offsets = append(offsets, int(n))
		}
		b = b.WithManualOffsets(offsets)
	}

	return b.Build()
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketStitchResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	response := WebSocketStitchResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	}

	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket error response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket error message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
