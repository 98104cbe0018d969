package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/qrscan-dev/qrscan"
	"github.com/qrscan-dev/qrscan/internal/version"
)

// ScanResponse is the body returned for a completed scan.
type ScanResponse struct {
	SessionID  string `json:"session_id"`
	Data       string `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// scanHandler scans an uploaded image. The image arrives either as the
// multipart form field "image" or as the raw request body.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	session := uuid.New().String()
	start := time.Now()

	body, err := readImageBody(r)
	if err != nil {
		s.writeScanError(w, session, start, http.StatusBadRequest, err)
		return
	}

	result, err := s.scanner.Scan(r.Context(), body, qrscan.Options{Timeout: s.cfg.Timeout})
	if err != nil {
		s.writeScanError(w, session, start, scanStatus(err), err)
		return
	}

	writeJSON(w, http.StatusOK, ScanResponse{
		SessionID:  session,
		Data:       result.Data,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) writeScanError(w http.ResponseWriter, session string, start time.Time, status int, err error) {
	slog.Debug("Scan request failed", "session", session, "status", status, "error", err)
	writeJSON(w, status, ScanResponse{
		SessionID:  session,
		Error:      err.Error(),
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// scanStatus maps scan failures onto HTTP statuses. Not finding a code
// is a valid outcome of a well-formed request, reported as 404.
func scanStatus(err error) int {
	switch {
	case errors.Is(err, qrscan.ErrNoQRCodeFound):
		return http.StatusNotFound
	case errors.Is(err, qrscan.ErrImageLoad), errors.Is(err, qrscan.ErrUnsupportedImageType):
		return http.StatusBadRequest
	case errors.Is(err, qrscan.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func readImageBody(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	if file, _, err := r.FormFile("image"); err == nil {
		defer func() { _ = file.Close() }()
		return io.ReadAll(file)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}
