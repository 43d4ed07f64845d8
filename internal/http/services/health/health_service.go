// Package health calcula el estado de readiness a partir de los checks del
// store (crítico) y del cache (opcional).
package health

import (
	"context"
	"time"

	dto "github.com/dropDatabas3/classlink/internal/http/dto/health"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
)

const (
	StatusReady       = "ready"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Deps: un check nil se reporta como "disabled", salvo DBCheck que es obligatorio.
type Deps struct {
	Version    string
	DBCheck    func(ctx context.Context) error
	CacheCheck func(ctx context.Context) error
	Now        func() time.Time
}

type check struct {
	name     string
	fn       func(ctx context.Context) error
	critical bool
}

type healthService struct {
	version string
	checks  []check
	now     func() time.Time
}

func NewHealthService(deps Deps) HealthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &healthService{
		version: deps.Version,
		now:     now,
		checks: []check{
			{name: "db", fn: deps.DBCheck, critical: true},
			{name: "cache", fn: deps.CacheCheck},
		},
	}
}

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("health"))

	res := dto.HealthResponse{
		Status:     StatusReady,
		Components: make(map[string]dto.HealthStatus, len(s.checks)),
		Version:    s.version,
		Timestamp:  s.now().UTC(),
	}
	for _, c := range s.checks {
		switch {
		case c.fn == nil && c.critical:
			res.Components[c.name] = dto.HealthStatus{Status: "error", Message: "not configured"}
			res.Status = StatusUnavailable
		case c.fn == nil:
			res.Components[c.name] = dto.HealthStatus{Status: "disabled"}
		default:
			err := c.fn(ctx)
			if err == nil {
				res.Components[c.name] = dto.HealthStatus{Status: "ok"}
				continue
			}
			res.Components[c.name] = dto.HealthStatus{Status: "error", Message: "unavailable: " + err.Error()}
			log.Warn("dependency unavailable", logger.String("dependency", c.name), logger.Err(err))
			if c.critical {
				res.Status = StatusUnavailable
			} else if res.Status == StatusReady {
				res.Status = StatusDegraded
			}
		}
	}
	return res
}
