// Package health expone /livez y /readyz.
package health

import (
	"encoding/json"
	"net/http"

	svc "github.com/dropDatabas3/classlink/internal/http/services/health"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
)

type HealthController struct {
	service svc.HealthService
}

func NewHealthController(service svc.HealthService) *HealthController {
	return &HealthController{service: service}
}

// Livez solo confirma que el proceso atiende; no toca dependencias.
func (c *HealthController) Livez(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Readyz responde 503 solo si falla el store; un cache caído es "degraded".
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	res := c.service.Check(r.Context())

	status := http.StatusOK
	if res.Status == svc.StatusUnavailable {
		status = http.StatusServiceUnavailable
	}
	logger.From(r.Context()).Debug("readiness",
		logger.Layer("controller"),
		logger.String("status", res.Status),
		logger.Count(len(res.Components)),
	)

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	if res.Version != "" {
		h.Set("X-Service-Version", res.Version)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}
