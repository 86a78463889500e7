package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/clipforge/pipeline/internal/http/handlers"
	httpMW "github.com/clipforge/pipeline/internal/http/middleware"
	"github.com/clipforge/pipeline/internal/platform/logger"
)

// RouterConfig bundles the handlers and cross-cutting settings the
// router wires up, mirroring the teacher's RouterConfig shape.
type RouterConfig struct {
	ProjectHandler    *httpH.ProjectHandler
	HealthHandler     *httpH.HealthHandler
	CategoriesHandler *httpH.CategoriesHandler
	Log               *logger.Logger
	CORSOrigins       []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.ProjectHandler != nil {
			api.POST("/projects", cfg.ProjectHandler.Ingest)
			api.POST("/projects/:id/process", cfg.ProjectHandler.Process)
			api.POST("/projects/:id/retry", cfg.ProjectHandler.Retry)
			api.GET("/projects/:id/status", cfg.ProjectHandler.GetStatus)
			api.GET("/projects/:id/clips/:clip_id", cfg.ProjectHandler.GetClip)
			api.GET("/projects/:id/collections/:collection_id", cfg.ProjectHandler.GetCollection)
		}
		if cfg.CategoriesHandler != nil {
			api.GET("/categories", cfg.CategoriesHandler.List)
		}
	}

	return r
}
