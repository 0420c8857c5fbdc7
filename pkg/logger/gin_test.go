package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "local")

	var seen string
	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/x", func(c *gin.Context) {
		seen = RequestID(c.Request.Context())
		From(c.Request.Context()).Debug("inside")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	r.ServeHTTP(w, req)

	if seen != "rid-1" {
		t.Fatalf("expected request id in context, got %q", seen)
	}
	if w.Header().Get(HeaderRequestID) != "rid-1" {
		t.Fatalf("expected request id echoed")
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var summary map[string]any
	if err := json.Unmarshal(lines[1], &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary["request_id"] != "rid-1" || summary["path"] != "/x" || summary["status"] != float64(204) {
		t.Fatalf("unexpected summary: %v", summary)
	}
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(NewWithWriter(&bytes.Buffer{}, "production")))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get(HeaderRequestID) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestMiddleware_ProbePathsLogAtDebug(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(NewWithWriter(&buf, "production")))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected no info summary for probe path, got %s", buf.String())
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	var summary map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary["route"] != "unmatched" || summary["status"] != float64(404) {
		t.Fatalf("unexpected summary: %v", summary)
	}
}

func TestTokenHint(t *testing.T) {
	if TokenHint("short") != "***" {
		t.Fatalf("short tokens must be fully masked")
	}
	if TokenHint("abcdefghijkl") != "abcdefgh..." {
		t.Fatalf("unexpected hint %q", TokenHint("abcdefghijkl"))
	}
}
