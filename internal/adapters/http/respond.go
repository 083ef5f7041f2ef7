package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jobrunner/leafsync/internal/adapters/browser"
	"github.com/jobrunner/leafsync/internal/domain"
)

// maxBodyBytes bounds request bodies. Layer documents with large GeoJSON
// payloads stay well below it.
const maxBodyBytes = 8 << 20

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": message,
	})
}

// writeDomainError maps err to a status code and writes it. Server side
// failures are logged.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}

	message := err.Error()
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		message = validationErr.Error()
	}
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	s.writeError(w, status, message)
}

// statusFor maps domain errors to HTTP status codes. Order matters: the
// more specific sentinels wrap the generic ones.
func statusFor(err error) int {
	var validationErr *domain.ValidationError
	var boundaryErr *domain.BoundaryError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, browser.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCallTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &boundaryErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	case errors.Is(err, io.EOF):
		return fmt.Errorf("request body is required: %w", domain.ErrInvalidInput)
	default:
		return fmt.Errorf("decoding request body: %v: %w", err, domain.ErrInvalidInput)
	}
}

// readBody reads a raw request body.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %v: %w", err, domain.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("request body is required: %w", domain.ErrInvalidInput)
	}
	return data, nil
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
