// Package router arma el router chi del servicio.
package router

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	authctrl "github.com/dropDatabas3/classlink/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/classlink/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/classlink/internal/http/errors"
	mw "github.com/dropDatabas3/classlink/internal/http/middlewares"
	healthsvc "github.com/dropDatabas3/classlink/internal/http/services/health"
	"github.com/dropDatabas3/classlink/internal/loginflow"
	"github.com/dropDatabas3/classlink/internal/metrics"
	"github.com/dropDatabas3/classlink/internal/rate"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Flow    loginflow.LoginFlow
	Health  healthsvc.Deps
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// LoginLimiter acota intentos por IP en el login. nil = sin límite.
	LoginLimiter rate.Limiter

	// TrustedProxies son los peers cuyos X-Forwarded-For/X-Real-IP se aceptan.
	TrustedProxies []netip.Prefix

	// Gatherer expone /metrics. nil = prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// New registra las rutas:
//
//	POST /v1/auth/classlink/login
//	GET  /livez, /readyz
//	GET  /metrics
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRequestID(),
		mw.WithClientIP(d.TrustedProxies),
		mw.WithLogging(d.Logger, d.Metrics),
		mw.WithRecover(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	health := healthctrl.NewHealthController(healthsvc.NewHealthService(d.Health))
	r.Get("/livez", health.Livez)
	r.Get("/readyz", health.Readyz)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if d.Flow != nil {
		login := authctrl.NewLoginController(d.Flow)
		r.Route("/v1/auth/classlink", func(r chi.Router) {
			r.With(mw.WithRateLimit(d.LoginLimiter, "login")).Post("/login", login.Login)
		})
	}
	return r
}
