package http

import (
	"net/http"
	"time"
)

// NewServer wraps the gin engine in a stdlib *http.Server so the caller
// can drive graceful shutdown, the same separation the teacher's
// inference/httpapi.NewServer makes between routing and transport.
func NewServer(addr string, cfg RouterConfig) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
