package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"critique-backend/internal/shared/server/respond"
	"critique-backend/internal/shared/telemetry"
)

func TestRecoveryReturnsEnvelopeAndLogsPath(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf, "info")
	t.Cleanup(func() { telemetry.Init("info") })

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/critics", func(c *gin.Context) {
		panic("boom")
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/critics", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body respond.ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "internal" {
		t.Fatalf("unexpected code: %q", body.Error.Code)
	}

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["msg"] == "panic" {
			found = true
			if entry["path"] != "/critics" || entry["error"] != "boom" {
				t.Fatalf("unexpected panic log: %v", entry)
			}
		}
	}
	if !found {
		t.Fatalf("expected panic log line, got %s", buf.String())
	}
}
