// Package server exposes the search engine over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bdougie/shotsearch/internal/catalog"
	"github.com/bdougie/shotsearch/internal/search"
)

const reloadTimeout = 5 * time.Minute

type Handlers struct {
	engine   *search.Engine
	reload   ReloadFunc
	health   HealthChecker
	logger   *slog.Logger
	reloadMu sync.Mutex
}

func NewHandlers(engine *search.Engine, reload ReloadFunc, health HealthChecker, logger *slog.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		reload: reload,
		health: health,
		logger: logger.With("component", "server"),
	}
}

// HandleSearch runs a query. Filter values are repeated parameters:
// /api/search?q=red+car&object=car&object=person&color=Red&brightness=Dark
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := search.Query{
		Text:       params.Get("q"),
		Objects:    params["object"],
		Colors:     params["color"],
		Brightness: params["brightness"],
	}

	res := h.engine.Search(r.Context(), q)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	var cat *catalog.Catalog
	if snap := h.engine.Snapshot(); snap != nil {
		cat = snap.Catalog
	}
	writeJSON(w, http.StatusOK, cat.Options())
}

type statusResponse struct {
	Videos     int    `json:"videos"`
	Shots      int    `json:"shots"`
	Vectors    int    `json:"vectors"`
	Dropped    int    `json:"dropped"`
	Violations int    `json:"violations"`
	BuiltAt    string `json:"builtAt"`
	EncoderOK  bool   `json:"encoderOk"`
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if snap := h.engine.Snapshot(); snap != nil {
		resp.Videos = snap.Catalog.Len()
		resp.Shots = snap.Catalog.ShotCount()
		resp.Vectors = snap.Index.Len()
		resp.Dropped = len(snap.Dropped)
		resp.Violations = len(snap.Violations)
		if !snap.BuiltAt.IsZero() {
			resp.BuiltAt = snap.BuiltAt.UTC().Format(time.RFC3339)
		}
	}
	if h.health != nil {
		resp.EncoderOK = h.health.IsHealthy(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleReload rebuilds the catalog and index and swaps them in. Queries in
// flight finish against the previous snapshot.
func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "reload not configured"})
		return
	}
	if !h.reloadMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "reload already in progress"})
		return
	}
	defer h.reloadMu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	snap, err := h.reload(ctx)
	if err != nil {
		h.logger.Error("reload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reload failed"})
		return
	}
	h.engine.Swap(snap)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "reloaded",
		"videos":  snap.Catalog.Len(),
		"vectors": snap.Index.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
