package loginflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/classlink/internal/cache"
	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
)

const resolverCachePrefix = "legacy:"

// Resolver traduce un username al de la cuenta local mapeada por el plugin
// legacy. Nunca falla: ante cualquier error devuelve el candidato tal cual.
type Resolver struct {
	Legacy repository.LegacyFederationRepository
	Cache  cache.Client
	TTL    time.Duration
	Logger *zap.Logger
}

// Resolve retorna el username local mapeado a candidate, o candidate.
func (r *Resolver) Resolve(ctx context.Context, candidate string) string {
	if r == nil || r.Legacy == nil || candidate == "" {
		return candidate
	}
	log := logger.OrFrom(ctx, r.Logger).With(logger.Component("loginflow.resolver"))

	key := resolverCachePrefix + candidate
	if r.Cache != nil {
		if v, err := r.Cache.Get(ctx, key); err == nil {
			if v == "" {
				return candidate
			}
			return v
		} else if !cache.IsNotFound(err) {
			log.Debug("resolver cache get failed", logger.Err(err))
		}
	}

	username, ok, err := r.Legacy.LookupUsername(ctx, candidate)
	if err != nil {
		log.Warn("legacy lookup failed, using candidate username",
			logger.Username(candidate), logger.Err(err))
		return candidate
	}
	if !ok {
		username = ""
	}

	if r.Cache != nil {
		if err := r.Cache.Set(ctx, key, username, r.TTL); err != nil {
			log.Debug("resolver cache set failed", logger.Err(err))
		}
	}
	if username == "" {
		return candidate
	}
	if username != candidate {
		log.Debug("legacy mapping hit", logger.Username(candidate), logger.String("resolved", username))
	}
	return username
}
