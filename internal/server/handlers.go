package server

import (
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/leafstitch/internal/guide"
	"github.com/MeKo-Tech/leafstitch/internal/midrib"
	"github.com/MeKo-Tech/leafstitch/internal/raster"
	"github.com/MeKo-Tech/leafstitch/internal/stitch"
	"github.com/MeKo-Tech/leafstitch/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, _, _ := version.Info()
	response := HealthResponse{
		Status:  "healthy",
		Version: v,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding health response: %v\n", err)
	}
}

// stitchHandler composites an ordered multipart upload of segment images and
// returns the composite as JPEG.
func (s *Server) stitchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["segments"]
	if len(files) == 0 {
		s.writeErrorResponse(w, "No segment files provided", http.StatusBadRequest)
		return
	}
	stitchSegmentCount.Observe(float64(len(files)))

	images, err := s.decodeSegments(files)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	pipeline, err := s.pipelineForRequest(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	outcome := pipeline.Process(r.Context(), images, nil)
	duration := time.Since(start)

	if outcome.Kind != stitch.KindSuccess {
		stitchRequestsTotal.WithLabelValues("stitch", "error").Inc()
		s.writeErrorResponse(w, outcome.Message, http.StatusUnprocessableEntity)
		return
	}

	stitchRequestsTotal.WithLabelValues("stitch", "success").Inc()
	stitchProcessingDuration.WithLabelValues("stitch").Observe(duration.Seconds())
	compositePixels.Observe(float64(outcome.Image.Width()) * float64(outcome.Image.Height()))

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Composite-Width", strconv.Itoa(outcome.Image.Width()))
	w.Header().Set("X-Composite-Height", strconv.Itoa(outcome.Image.Height()))
	if err := jpeg.Encode(w, outcome.Image.NRGBA(), &jpeg.Options{Quality: s.jpegQuality}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding composite response: %v\n", err)
	}
}

// detectHandler runs midrib detection on a single uploaded image.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	img, err := s.decodeFormImage(r, "image")
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	tolerance := s.defaults.SearchTolerance
	if v := r.FormValue("tolerance"); v != "" {
		tolerance, err = strconv.ParseFloat(v, 64)
		if err != nil || tolerance <= 0 || tolerance > 1 {
			s.writeErrorResponse(w, "Invalid tolerance", http.StatusBadRequest)
			return
		}
	}

	start := time.Now()
	detection := midrib.Detect(img, tolerance)
	stitchRequestsTotal.WithLabelValues("detect", "success").Inc()
	stitchProcessingDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(DetectResponse{
		Success:    true,
		Y:          detection.Y,
		Confidence: detection.Confidence,
		BandWidth:  detection.BandWidth,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding detect response: %v\n", err)
	}
}

// scoreHandler computes the overlap guide score for two uploaded edge strips.
func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	// The previous edge is optional: a first capture has none and must not
	// be blocked by the guide.
	var previous *raster.Image
	if _, ok := r.MultipartForm.File["previous"]; ok {
		img, err := s.decodeFormImage(r, "previous")
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		previous = img
	}

	current, err := s.decodeFormImage(r, "current")
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	score := guide.Score(previous, current)
	stitchRequestsTotal.WithLabelValues("score", "success").Inc()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ScoreResponse{Success: true, Score: score}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding score response: %v\n", err)
	}
}

// decodeSegments decodes the ordered multipart segment files.
func (s *Server) decodeSegments(files []*multipart.FileHeader) (raster.Sequence, error) {
	images := make(raster.Sequence, 0, len(files))
	for i, header := range files {
		uploadSizeBytes.Observe(float64(header.Size))
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open segment %d: %w", i, err)
		}
		decoded, _, err := image.Decode(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("invalid image format for segment %d", i)
		}
		img, err := raster.FromImage(decoded)
		if err != nil {
			return nil, fmt.Errorf("invalid segment %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// decodeFormImage decodes a single named multipart file.
func (s *Server) decodeFormImage(r *http.Request, field string) (*raster.Image, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("no %s file provided", field)
	}
	defer func() { _ = f.Close() }()

	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("invalid image format for %s", field)
	}
	return raster.FromImage(decoded)
}

// pipelineForRequest builds a stitch pipeline from server defaults overlaid
// with per-request form options.
func (s *Server) pipelineForRequest(r *http.Request) (*stitch.Pipeline, error) {
	b := stitch.NewBuilder().
		WithOverlap(s.defaults.OverlapFraction).
		WithAutoOverlap(s.defaults.AutoOverlap).
		WithMidribAlign(s.defaults.MidribAlign).
		WithSearchTolerance(s.defaults.SearchTolerance).
		WithLimits(s.defaults.MaxSegments, s.defaults.MaxPixels)

	if v := r.FormValue("overlap"); v != "" {
		overlap, err := strconv.ParseFloat(v, 64)
		if err != nil || overlap <= 0 || overlap >= 1 {
			return nil, fmt.Errorf("invalid overlap fraction: %q", v)
		}
		b = b.WithOverlap(overlap)
	}
	if v := r.FormValue("auto_overlap"); v != "" {
		b = b.WithAutoOverlap(v == "true" || v == "1")
	}
	if v := r.FormValue("midrib"); v != "" {
		b = b.WithMidribAlign(v == "true" || v == "1")
	}
	if v := r.FormValue("tolerance"); v != "" {
		tolerance, err := strconv.ParseFloat(v, 64)
		if err != nil || tolerance <= 0 || tolerance > 1 {
			return nil, fmt.Errorf("invalid tolerance: %q", v)
		}
		b = b.WithSearchTolerance(tolerance)
	}
	if v := r.FormValue("offsets"); v != "" {
		offsets, err := parseOffsets(v)
		if err != nil {
			return nil, err
		}
		b = b.WithManualOffsets(offsets)
	}

	return b.Build()
}

// parseOffsets parses a comma-separated signed integer list.
func parseOffsets(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	offsets := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid offset value: %q", p)
		}
		offsets = append(offsets, n)
	}
	return offsets, nil
}
