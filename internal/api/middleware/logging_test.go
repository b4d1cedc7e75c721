package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccessLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/api/v1/categories", http.StatusOK, slog.LevelInfo},
		{"/api/v1/posts/1", http.StatusNotFound, slog.LevelWarn},
		{"/api/v1/posts/1/replies", http.StatusBadGateway, slog.LevelError},
		{"/health/live", http.StatusOK, slog.LevelDebug},
		{"/health/ready", http.StatusServiceUnavailable, slog.LevelError},
		{"/metrics", http.StatusOK, slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := accessLevel(tt.path, tt.status); got != tt.want {
			t.Errorf("accessLevel(%q, %d) = %v, ожидалось %v", tt.path, tt.status, got, tt.want)
		}
	}
}

// TestRequestLogger_UserAndRequestID — в записи есть request_id и пользователь,
// отмеченный внутренним middleware.
func TestRequestLogger_UserAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		noteUser(r.Context(), "u1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})
	rec := httptest.NewRecorder()
	RequestLogger(logger)(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/posts/1/replies", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("запись лога %q: %v", buf.String(), err)
	}
	if entry["user_id"] != "u1" {
		t.Errorf("user_id = %v, ожидалось u1", entry["user_id"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("request_id пуст")
	}
	if entry["status"] != float64(http.StatusCreated) || entry["bytes"] != float64(2) {
		t.Errorf("status/bytes = %v/%v", entry["status"], entry["bytes"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v", entry["level"])
	}
}

// TestRequestLogger_Anonymous — без пользователя поле user_id не пишется.
func TestRequestLogger_Anonymous(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	RequestLogger(logger)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("запись лога: %v", err)
	}
	if _, ok := entry["user_id"]; ok {
		t.Errorf("user_id не ожидался: %v", entry)
	}
}
