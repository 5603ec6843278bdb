package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNew_LevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")

	log.Info().Msg("quiet")
	log.Warn().Msg("loud")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["service"] != "exstem-cbt" || entry["message"] != "loud" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNew_UnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "chatty", "json")
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
		wantLog   bool
	}{
		{"ok", "/ok", http.StatusOK, "info", true},
		{"client error", "/bad", http.StatusBadRequest, "warn", true},
		{"server error", "/boom", http.StatusInternalServerError, "error", true},
		{"skipped", "/health", http.StatusOK, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := gin.New()
			r.Use(func(c *gin.Context) { c.Set(requestIDKey, "rid-1"); c.Next() })
			r.Use(GinMiddleware(New(&buf, "info", "json"), "/health"))
			r.GET(tt.path, func(c *gin.Context) { c.Status(tt.status) })

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if !tt.wantLog {
				if buf.Len() != 0 {
					t.Fatalf("skipped path logged: %q", buf.String())
				}
				return
			}
			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("decode %q: %v", buf.String(), err)
			}
			if entry["level"] != tt.wantLevel || entry["request_id"] != "rid-1" || entry["status"].(float64) != float64(tt.status) {
				t.Fatalf("entry = %v", entry)
			}
		})
	}
}
