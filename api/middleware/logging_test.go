package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("decode log line %q: %v", raw, err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestLoggingRecordsMatchedRoute(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/api/clubs/{clubId}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/clubs/42", nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected a single completion line at info, got %d", len(lines))
	}
	line := lines[0]
	if line["message"] != "request.complete" || line["level"] != "info" {
		t.Fatalf("unexpected line %v", line)
	}
	if line["route"] != "/api/clubs/{clubId}" || line["path"] != "/api/clubs/42" {
		t.Fatalf("expected route pattern and raw path, got %v", line)
	}
	if line["status"] != float64(http.StatusOK) || line["bytes"] != float64(5) {
		t.Fatalf("unexpected status or size in %v", line)
	}
}

func TestLoggingWarnsOnServerErrors(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Level: zerolog.DebugLevel})

	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/nowhere", nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected start and completion lines, got %d", len(lines))
	}
	if lines[0]["message"] != "request.start" {
		t.Fatalf("expected debug start line, got %v", lines[0])
	}
	last := lines[1]
	if last["level"] != "warn" || last["route"] != unmatchedRoute {
		t.Fatalf("unexpected completion line %v", last)
	}
}
