package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/daily-mass/pkg/http"
)

type HealthService interface {
	Check(ctx context.Context) error
}

// HealthHandler serves liveness on /health and readiness on /ready; only
// readiness pings the backing stores.
type HealthHandler struct {
	svc HealthService
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.Live)
	e.GET("/ready", h.Ready)
}

func (h *HealthHandler) Live(ctx *xhttp.RequestCtx) {
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Ready(ctx *xhttp.RequestCtx) {
	if err := h.svc.Check(ctx); err != nil {
		writeError(ctx, xhttp.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "ready"})
}
