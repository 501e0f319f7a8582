// Package handler provides HTTP handlers for all API endpoints. Read
// handlers render JSON from the store, cache the rendered bytes, and serve
// conditional requests with weak ETags.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/api/respond"
	"github.com/ibasketcal/ibasketcal/internal/cache"
	"github.com/ibasketcal/ibasketcal/internal/config"
	"github.com/ibasketcal/ibasketcal/internal/query"
	"github.com/ibasketcal/ibasketcal/internal/refresh"
	"github.com/ibasketcal/ibasketcal/internal/store"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store   store.Store
	query   *query.Service
	cache   *cache.Cache
	refresh *refresh.Controller
	cfg     *config.Config
}

// New creates a Handler with shared dependencies.
func New(st store.Store, c *cache.Cache, ctrl *refresh.Controller, cfg *config.Config) *Handler {
	return &Handler{
		store:   st,
		query:   query.New(st),
		cache:   c,
		refresh: ctrl,
		cfg:     cfg,
	}
}

// writeCached serves a JSON read endpoint through the response cache:
// cache hit (with If-None-Match handling), else load, marshal, store, send.
func (h *Handler) writeCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, load func(ctx context.Context) (any, error)) {
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	v, err := load(r.Context())
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to encode response")
		return
	}

	etag := h.cache.Set(key, data, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, ttl, false)
}

// writeQueryError maps read-path errors: client filter faults get 400,
// everything else is the store being unavailable.
func (h *Handler) writeQueryError(w http.ResponseWriter, err error) {
	var invalid *query.InvalidFilterError
	if errors.As(err, &invalid) {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_FILTER",
			"Invalid filter parameter", invalid.Error())
		return
	}
	respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
		"The match store is unavailable")
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status, and entry points.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":     "Israeli Basketball Calendar API",
		"version":  "1.0.0",
		"status":   "running",
		"docs":     "/docs",
		"calendar": "/calendar.ics",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies store connectivity.
// @Summary Store health check
// @Description Verifies connectivity to the configured store backend.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"store":     "disconnected",
			"error":     "Store connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"store":     "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
