package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-ingest/internal/media"
	"media-ingest/internal/startup"
	"media-ingest/internal/transcoder"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Upload state
	ActiveBatches int `json:"activeBatches"`
	PausedBatches int `json:"pausedBatches"`
	PendingItems  int `json:"pendingItems"`

	// Optional media tooling
	FFmpeg bool `json:"ffmpeg"`
	Vips   bool `json:"vips"`

	// Memory pressure, when a monitor is attached
	MemoryUsage  float64 `json:"memoryUsage,omitempty"`
	MemoryPaused bool    `json:"memoryPaused,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	Error string `json:"error,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	stats := h.registry.Stats()

	response := HealthResponse{
		Status:        statusHealthy,
		Ready:         true,
		Version:       startup.Version,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		ActiveBatches: stats.ActiveBatches,
		PausedBatches: stats.PausedBatches,
		PendingItems:  stats.PendingItems,
		FFmpeg:        transcoder.Available(),
		Vips:          media.IsVipsAvailable(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}
	if h.memory != nil {
		response.MemoryUsage = h.memory.Usage()
		response.MemoryPaused = h.memory.IsPaused()
	}

	if err := h.ledger.Ping(r.Context()); err != nil {
		response.Status = statusDegraded
		response.Ready = false
		response.Error = "database unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	if !response.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the orphan ledger is reachable
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Ping(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	writeJSONStatus(w, http.StatusOK, "ready")
}
