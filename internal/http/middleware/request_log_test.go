package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clipforge/pipeline/internal/platform/logger"
)

func TestRequestLoggerDoesNotAlterResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusTeapot)
	}
}

func TestRequestLoggerToleratesNilLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestLogger(nil))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
}
