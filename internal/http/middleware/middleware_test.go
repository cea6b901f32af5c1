package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mdr-library-backend/internal/platform/ctxutil"
)

func TestRequireAuthor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachRequestContext(), RequireAuthor())
	var seen string
	handler := func(c *gin.Context) {
		seen = ctxutil.AuthorFrom(c.Request.Context())
		c.Status(http.StatusOK)
	}
	r.GET("/x", handler)
	r.POST("/x", handler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET without author: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("POST without author: got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderAuthor, "  alice ")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != "alice" {
		t.Fatalf("POST with author: got %d author=%q", rec.Code, seen)
	}
}

func TestAttachTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get(headerRequestID); got != "req-1" {
		t.Fatalf("request id: got %q", got)
	}
	if rec.Header().Get(headerTraceID) == "" {
		t.Fatalf("trace id header missing")
	}
}
