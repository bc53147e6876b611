package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetupWriter(t *testing.T) {
	if w := SetupWriter(Config{Output: "stdout"}); w != os.Stdout {
		t.Error("expected os.Stdout")
	}
	if w := SetupWriter(Config{Output: "stderr"}); w != os.Stderr {
		t.Error("expected os.Stderr")
	}
	if w := SetupWriter(Config{Output: ""}); w != os.Stdout {
		t.Error("expected os.Stdout as default")
	}
	if w := SetupWriter(Config{Output: "file"}); w != os.Stdout {
		t.Error("expected os.Stdout when output is file but filename is empty")
	}
}

func TestNewLogger_TagsServiceName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentd.log")
	logger := NewLogger(Config{Level: "info", Format: "json", Output: "file", Filename: path})
	logger.Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line did not parse as JSON: %v", err)
	}
	if entry["service"] != "agentd" {
		t.Errorf("expected service=agentd, got %v", entry["service"])
	}
}

func TestNewLogger_BuildsWithoutPanicking(t *testing.T) {
	l := NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})
	if l == nil {
		t.Fatal("NewLogger returned nil")
	}
	l.Info("smoke test")
}

func TestNewCorrelationID_Unique(t *testing.T) {
	a, b := NewCorrelationID(), NewCorrelationID()
	if a == b {
		t.Error("expected two distinct correlation IDs")
	}
	if !strings.HasPrefix(a, "req_") {
		t.Errorf("expected req_ prefix, got %s", a)
	}
}

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc-123")
	if got := CorrelationID(ctx); got != "abc-123" {
		t.Errorf("expected abc-123, got %s", got)
	}
}

func TestCorrelationID_EmptyWhenAbsent(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("expected empty string, got %s", got)
	}
}

func TestScoped_AttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithCorrelationID(context.Background(), "scoped-id")
	Scoped(ctx, base).Info("scoped message")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line did not parse as JSON: %v", err)
	}
	if entry["request_id"] != "scoped-id" {
		t.Errorf("expected request_id scoped-id, got %v", entry["request_id"])
	}
}

func TestScoped_PassesThroughWhenNoRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	Scoped(context.Background(), base).Info("unscoped message")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line did not parse as JSON: %v", err)
	}
	if _, exists := entry["request_id"]; exists {
		t.Error("request_id should be absent when context carries none")
	}
}

func TestRequestMiddleware_GeneratesAndEchoesID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var seenID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = CorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	handler := RequestMiddleware(base)(inner)

	req := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenID == "" {
		t.Fatal("expected a correlation ID to be threaded into the request context")
	}
	if rec.Header().Get("X-Request-ID") != seenID {
		t.Error("expected response header to echo the same correlation ID")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line did not parse as JSON: %v", err)
	}
	if entry["method"] != http.MethodGet {
		t.Errorf("expected method GET, got %v", entry["method"])
	}
	if entry["path"] != "/widgets" {
		t.Errorf("expected path /widgets, got %v", entry["path"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("expected status 418, got %v", entry["status"])
	}
	if entry["request_id"] != seenID {
		t.Errorf("expected logged request_id to match %s, got %v", seenID, entry["request_id"])
	}
}

func TestRequestMiddleware_ReusesExistingRequestID(t *testing.T) {
	base := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	var seenID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := RequestMiddleware(base)(inner)

	req := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenID != "caller-supplied" {
		t.Errorf("expected caller-supplied ID to be reused, got %s", seenID)
	}
}

func TestStatusRecorder_DefaultsToOKUntilWritten(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	if sr.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", sr.status)
	}

	sr.WriteHeader(http.StatusNotFound)
	if sr.status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", sr.status)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected underlying recorder status 404, got %d", rec.Code)
	}
}
