package middlewares

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dropDatabas3/classlink/internal/http/errors"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
)

// WithRecover convierte un panic del handler en 500. http.ErrAbortHandler se
// re-lanza para que net/http corte la conexión.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.From(r.Context()).Error("handler panicked",
					logger.Op("WithRecover"),
					logger.Any("panic", rec),
					zap.Stack("stack"),
				)
				errors.WriteError(w, errors.ErrInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
