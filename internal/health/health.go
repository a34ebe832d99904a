// Package health exposes liveness and readiness endpoints for orchestration
// probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler serves health check endpoints
type Handler struct {
	pool    *pgxpool.Pool
	version string
	timeout time.Duration
}

// NewHandler creates a new health Handler instance
func NewHandler(pool *pgxpool.Pool, version string) *Handler {
	return &Handler{
		pool:    pool,
		version: version,
		timeout: 2 * time.Second,
	}
}

type checkResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]checkResult `json:"checks"`
}

// Healthz reports overall health including the database check
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{
		Status:  "ok",
		Version: h.version,
		Checks:  map[string]checkResult{},
	}

	start := time.Now()
	if err := h.pool.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Checks["database"] = checkResult{Status: "down", Error: err.Error()}
	} else {
		resp.Checks["database"] = checkResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Readyz reports whether the service can accept traffic
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// Livez reports process liveness without touching dependencies
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}
