package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bdougie/shotsearch/internal/search"
)

// ReloadFunc rebuilds a snapshot from storage.
type ReloadFunc func(ctx context.Context) (*search.Snapshot, error)

// HealthChecker reports whether the query encoder is reachable.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// New wires the API routes onto an http.Server listening on port.
func New(port string, engine *search.Engine, reload ReloadFunc, health HealthChecker, logger *slog.Logger) *http.Server {
	handlers := NewHandlers(engine, reload, health, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", handlers.HandleSearch)
	mux.HandleFunc("GET /api/filters", handlers.HandleFilters)
	mux.HandleFunc("GET /api/status", handlers.HandleStatus)
	mux.HandleFunc("POST /api/reload", handlers.HandleReload)

	logger.Info("server listening", "addr", "http://localhost:"+port)
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
