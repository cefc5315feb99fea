package http

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/services"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every failed response. Data carries the
// applied result when only saving failed.
type errorBody struct {
	Error string `json:"error"`
	Data  any    `json:"data,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrImportInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrNetworkFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, r *http.Request, err error, data any) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		log.LogError(r.Context(), logger, "Request failed", err, r.Method+" "+r.URL.Path, nil)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", log.FieldError, err.Error(), log.FieldStatusCode, status)
	}
	body := errorBody{Error: err.Error()}
	if errors.Is(err, core.ErrPersistence) {
		body.Data = data
	}
	writeJSON(w, status, body)
}

// respond writes data with status, or the error mapping when err is set.
func respond(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err != nil {
		writeError(w, r, err, data)
		return
	}
	if data == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, data)
}

// decodeJSON reads a single JSON object from the request body. Malformed
// bodies are validation errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", core.ErrValidation, err)
	}
	return nil
}

// flexString accepts a JSON string or number, for amounts typed into a form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a string or a number")
	}
	*f = flexString(n.String())
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates. An
// empty string is the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD or RFC 3339", core.ErrValidation)
	}
	return t, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// requestID reuses a caller-supplied X-Request-ID when it looks sane.
func requestID(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 64 {
		return id
	}
	return generateRequestID()
}
