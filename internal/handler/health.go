package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/baedrik/skulls2/pkg/response"
)

// StartTime tracks when the server started for uptime calculation
var StartTime = time.Now()

// Prober reports whether the engine state is reachable and initialized.
type Prober interface {
	Instantiated(ctx context.Context) (bool, error)
}

// Handler contains the health endpoints and their dependencies.
type Handler struct {
	service string
	version string
	probe   Prober
}

// New creates a new handler. probe may be nil.
func New(service, version string, probe Prober) *Handler {
	return &Handler{service: service, version: version, probe: probe}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (h *Handler) checks(ctx context.Context) []Check {
	checks := []Check{{Name: "api", Status: "ok"}}
	if h.probe == nil {
		return checks
	}
	ok, err := h.probe.Instantiated(ctx)
	switch {
	case err != nil:
		checks = append(checks, Check{Name: "store", Status: "error"})
	case !ok:
		checks = append(checks, Check{Name: "store", Status: "ok"}, Check{Name: "instantiated", Status: "pending"})
	default:
		checks = append(checks, Check{Name: "store", Status: "ok"}, Check{Name: "instantiated", Status: "ok"})
	}
	return checks
}

// Ready handles GET /api/v1/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := h.checks(r.Context())
	allReady := true
	for _, check := range checks {
		if check.Status != "ok" {
			allReady = false
			break
		}
	}

	resp := ReadyResponse{
		Ready:     allReady,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
	if !allReady {
		response.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	response.OK(w, resp)
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Store    string  `json:"store"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for monitoring
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	storeStatus, status := "ok", "ok"
	for _, c := range h.checks(r.Context()) {
		if c.Name == "store" && c.Status != "ok" {
			storeStatus, status = c.Status, "degraded"
		}
	}

	resp := StatusResponse{
		Service:       h.service,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		PingMS:        time.Since(requestStart).Milliseconds(),
		Checks: StatusChecks{
			Store:    storeStatus,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
