package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
	"github.com/MeKo-Tech/leafstitch/internal/stitch"
	"github.com/MeKo-Tech/leafstitch/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	s, err := NewServer(Config{
		Host:        "localhost",
		Port:        8080,
		CORSOrigin:  "*",
		MaxUploadMB: 16,
		JPEGQuality: 95,
		Pipeline:    stitch.DefaultConfig(),
	})
	require.NoError(t, err)
	return s
}

func encodePNG(t *testing.T, img *raster.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img.NRGBA()))
	return buf.Bytes()
}

// multipartBody builds a multipart form with the given file fields and plain
// form values.
func multipartBody(t *testing.T, files map[string][][]byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, parts := range files {
		for i, data := range parts {
			fw, err := writer.CreateFormFile(field, field+string(rune('a'+i))+".png")
			require.NoError(t, err)
			_, err = fw.Write(data)
			require.NoError(t, err)
		}
	}
	for k, v := range values {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStitchHandler(t *testing.T) {
	s := newTestServer(t)

	segments := [][]byte{
		encodePNG(t, testutil.SolidSegment(100, 80, testutil.LeafTissue)),
		encodePNG(t, testutil.SolidSegment(100, 80, testutil.LeafTissue)),
	}
	body, contentType := multipartBody(t, map[string][][]byte{"segments": segments}, nil)

	req := httptest.NewRequest(http.MethodPost, "/stitch", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.stitchHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	// Two 100px segments at the default 0.10 overlap.
	assert.Equal(t, "190", rec.Header().Get("X-Composite-Width"))
	assert.Equal(t, "80", rec.Header().Get("X-Composite-Height"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestStitchHandler_OverlapOption(t *testing.T) {
	s := newTestServer(t)

	segments := [][]byte{
		encodePNG(t, testutil.SolidSegment(100, 50, testutil.LeafTissue)),
		encodePNG(t, testutil.SolidSegment(100, 50, testutil.LeafTissue)),
	}
	body, contentType := multipartBody(t, map[string][][]byte{"segments": segments},
		map[string]string{"overlap": "0.25"})

	req := httptest.NewRequest(http.MethodPost, "/stitch", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.stitchHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "175", rec.Header().Get("X-Composite-Width"))
}

func TestStitchHandler_Errors(t *testing.T) {
	s := newTestServer(t)

	segment := encodePNG(t, testutil.SolidSegment(50, 50, testutil.LeafTissue))

	tests := []struct {
		name     string
		files    map[string][][]byte
		values   map[string]string
		wantCode int
	}{
		{
			name:     "no segments",
			files:    map[string][][]byte{},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid image data",
			files:    map[string][][]byte{"segments": {[]byte("garbage")}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid overlap",
			files:    map[string][][]byte{"segments": {segment, segment}},
			values:   map[string]string{"overlap": "1.5"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid tolerance",
			files:    map[string][][]byte{"segments": {segment, segment}},
			values:   map[string]string{"tolerance": "abc"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed offsets",
			files:    map[string][][]byte{"segments": {segment, segment}},
			values:   map[string]string{"offsets": "1,x"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "offset count mismatch",
			files:    map[string][][]byte{"segments": {segment, segment}},
			values:   map[string]string{"offsets": "1,2,3"},
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.files, tt.values)
			req := httptest.NewRequest(http.MethodPost, "/stitch", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			s.stitchHandler(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestStitchHandler_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stitch", nil)
	rec := httptest.NewRecorder()
	s.stitchHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDetectHandler(t *testing.T) {
	s := newTestServer(t)

	img := encodePNG(t, testutil.MidribSegment(100, 200, 120, 8))
	body, contentType := multipartBody(t, map[string][][]byte{"image": {img}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.detectHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.InDelta(t, 120, resp.Y, 4)
	assert.Greater(t, resp.Confidence, 0.0)
}

func TestDetectHandler_MissingImage(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, nil, map[string]string{"tolerance": "0.5"})
	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.detectHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectHandler_InvalidTolerance(t *testing.T) {
	s := newTestServer(t)

	img := encodePNG(t, testutil.MidribSegment(50, 100, 50, 6))
	body, contentType := multipartBody(t, map[string][][]byte{"image": {img}},
		map[string]string{"tolerance": "2"})

	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.detectHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreHandler(t *testing.T) {
	s := newTestServer(t)
	edge := encodePNG(t, testutil.GradientSegment(60, 300))

	t.Run("identical edges", func(t *testing.T) {
		body, contentType := multipartBody(t,
			map[string][][]byte{"previous": {edge}, "current": {edge}}, nil)
		req := httptest.NewRequest(http.MethodPost, "/score", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		s.scoreHandler(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp ScoreResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 100, resp.Score)
	})

	t.Run("first capture has no previous", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][][]byte{"current": {edge}}, nil)
		req := httptest.NewRequest(http.MethodPost, "/score", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		s.scoreHandler(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ScoreResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 100, resp.Score)
	})

	t.Run("missing current", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][][]byte{"previous": {edge}}, nil)
		req := httptest.NewRequest(http.MethodPost, "/score", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		s.scoreHandler(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestParseOffsets(t *testing.T) {
	offsets, err := parseOffsets("0, -12, 8")
	require.NoError(t, err)
	assert.Equal(t, []int{0, -12, 8}, offsets)

	_, err = parseOffsets("1,two")
	require.Error(t, err)
}
