// Package app wires the pipeline's collaborators into a runnable HTTP
// service, the same App{Log, Router/Server, Cfg} shape the teacher's
// internal/app.App and internal/inference/app.App use, adapted from a
// DB+service-registry bundle to a stack of five plain collaborators
// (config, provider, media, runner, status).
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clipforge/pipeline/internal/config"
	httpserver "github.com/clipforge/pipeline/internal/http"
	"github.com/clipforge/pipeline/internal/http/handlers"
	"github.com/clipforge/pipeline/internal/llm"
	"github.com/clipforge/pipeline/internal/media"
	"github.com/clipforge/pipeline/internal/pipeline/runner"
	"github.com/clipforge/pipeline/internal/platform/envutil"
	"github.com/clipforge/pipeline/internal/platform/logger"
	"github.com/clipforge/pipeline/internal/status"
)

// App bundles everything main needs to start and gracefully stop the
// service.
type App struct {
	Log    *logger.Logger
	Runner *runner.Runner
	Status *status.Projection

	server *http.Server
}

func New() (*App, error) {
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dataDir := envutil.String("DATA_DIR", "data")
	promptDir := envutil.String("PROMPT_DIR", "prompt")
	projectsRoot := envutil.String("PROJECTS_ROOT", "uploads")

	proc, err := config.LoadProcessing(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load processing config: %w", err)
	}

	categories, err := config.LoadCategories(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	provider := llm.New(llm.Config{
		Provider:   proc.ProviderName,
		BaseURL:    envutil.String("LLM_BASE_URL", ""),
		APIKey:     envutil.String("LLM_API_KEY", ""),
		Model:      proc.ModelName,
		Timeout:    time.Duration(proc.LLMTimeoutSeconds) * time.Second,
		MaxRetries: proc.LLMMaxRetries,
	})

	statusProj := status.NewProjection()
	r := runner.New(runner.Deps{
		ProjectsRoot: projectsRoot,
		Processing:   proc,
		Prompts:      config.Prompts{PromptDir: promptDir},
		Provider:     provider,
		Media:        media.NewProcessor(),
		Status:       statusProj,
		Log:          log,
	})

	projectHandler := handlers.NewProjectHandler(projectsRoot, r, statusProj, log)
	healthHandler := handlers.NewHealthHandler()
	categoriesHandler := handlers.NewCategoriesHandler(categories)

	origins := strings.Split(envutil.String("CORS_ORIGINS", "http://localhost:3000"), ",")
	addr := envutil.String("HTTP_ADDR", ":8080")

	srv := httpserver.NewServer(addr, httpserver.RouterConfig{
		ProjectHandler:    projectHandler,
		HealthHandler:     healthHandler,
		CategoriesHandler: categoriesHandler,
		Log:               log,
		CORSOrigins:       origins,
	})

	return &App{Log: log, Runner: r, Status: statusProj, server: srv}, nil
}

// Run serves until ctx is canceled, then shuts down within a fixed grace
// period — the same select-on-errCh-or-ctx.Done shape as the teacher's
// internal/inference/app.App.Run.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) Close() {
	a.Log.Sync()
}
