package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/clipforge/pipeline/internal/platform/logger"
)

func newTestApp(t *testing.T, handler http.Handler) *App {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return &App{
		Log: log,
		server: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: handler,
		},
	}
}

func TestRunReturnsNilOnGracefulShutdown(t *testing.T) {
	a := newTestApp(t, http.NotFoundHandler())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on graceful shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
