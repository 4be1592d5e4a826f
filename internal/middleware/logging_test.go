package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		level  string
	}{
		{"ok", http.StatusOK, "hello", "INFO"},
		{"client error", http.StatusNotFound, "", "WARN"},
		{"server error", http.StatusServiceUnavailable, "", "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			h := chimiddleware.RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})))

			req := httptest.NewRequest(http.MethodGet, "/api/snippets", nil)
			req.Header.Set(chimiddleware.RequestIDHeader, "req-123")
			h.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "GET", entry["method"])
			assert.Equal(t, "/api/snippets", entry["path"])
			assert.EqualValues(t, tt.status, entry["status"])
			assert.EqualValues(t, len(tt.body), entry["bytes"])
			assert.Equal(t, "req-123", entry["request_id"])
		})
	}
}

func TestLogger_DefaultStatusIsOK(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("no explicit WriteHeader"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, http.StatusOK, entry["status"])
	assert.Equal(t, "", entry["request_id"])
}
