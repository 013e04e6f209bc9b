package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// HealthHandler handles liveness and readiness probes.
type HealthHandler struct {
	db         *sql.DB
	queueReady func() bool // nil when no queue is configured
}

// NewHealthHandler creates a health handler. queueReady may be nil.
func NewHealthHandler(db *sql.DB, queueReady func() bool) *HealthHandler {
	return &HealthHandler{db: db, queueReady: queueReady}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database,omitempty"`
	Queue     string `json:"queue,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. The database must answer; the
// queue is reported but only degrades the status since downloads still work
// without it.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Database:  "ok",
	}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "error"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	if h.queueReady != nil {
		if h.queueReady() {
			resp.Queue = "ok"
		} else {
			resp.Queue = "unreachable"
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}
	}

	writeJSON(w, status, resp)
}
