package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

type HealthHandler struct {
	probes  []store.Probe
	env     string
	version string
}

func NewHealthHandler(probes []store.Probe, env, version string) *HealthHandler {
	return &HealthHandler{
		probes:  probes,
		env:     env,
		version: version,
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

// Readiness pings every probe. A required probe failing makes the service
// unready; an optional one only degrades it.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.probes))
	status := "ok"

	for _, p := range h.probes {
		pingCtx, pingCancel := context.WithTimeout(ctx, time.Second)
		err := p.Ping(pingCtx)
		pingCancel()

		if err == nil {
			deps[p.Name] = "ok"
			continue
		}
		deps[p.Name] = "down"
		switch {
		case p.Required:
			status = "error"
		case status == "ok":
			status = "degraded"
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
