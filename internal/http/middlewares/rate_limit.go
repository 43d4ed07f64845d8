package middlewares

import (
	"math"
	"net/http"
	"strconv"

	"github.com/dropDatabas3/classlink/internal/http/errors"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
	"github.com/dropDatabas3/classlink/internal/rate"
)

// WithRateLimit cuenta los requests por IP de cliente bajo scope. Con
// limiter nil no hace nada; si el limiter falla, el request pasa.
func WithRateLimit(limiter rate.Limiter, scope string) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), scope+":"+ClientIP(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limit unavailable", logger.Op("WithRateLimit"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				if secs := int(math.Ceil(res.RetryAfter.Seconds())); secs > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				errors.WriteError(w, errors.ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
