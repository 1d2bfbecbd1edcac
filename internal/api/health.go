package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger is the readiness probe contract; *pgxpool.Pool and the redis
// publisher both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db       Pinger
	eventBus Pinger
	env      string
	version  string
}

func NewHealthHandler(db, eventBus Pinger, env, version string) *HealthHandler {
	return &HealthHandler{
		db:       db,
		eventBus: eventBus,
		env:      env,
		version:  version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Readiness reports error only when Postgres is down; a dead event bus
// degrades notifications, not booking, so it degrades rather than fails.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	pgCtx, pgCancel := context.WithTimeout(ctx, 1*time.Second)
	err := h.db.Ping(pgCtx)
	pgCancel()
	if err != nil {
		deps["postgres"] = "down"
		status = "error"
	} else {
		deps["postgres"] = "ok"
	}

	if h.eventBus != nil {
		busCtx, busCancel := context.WithTimeout(ctx, 1*time.Second)
		err = h.eventBus.Ping(busCtx)
		busCancel()
		if err != nil {
			deps["event_bus"] = "down"
			if status == "ok" {
				status = "degraded"
			}
		} else {
			deps["event_bus"] = "ok"
		}
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}
