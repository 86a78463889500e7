package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clipforge/pipeline/internal/http/handlers"
)

func TestNewRouterServesHealthcheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler(),
		CORSOrigins:   []string{"http://localhost:3000"},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
}

func TestNewRouterReturnsNotFoundForUnregisteredProjectRoutesWithoutHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := NewRouter(RouterConfig{CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodPost, "/api/projects", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNotFound)
	}
}
