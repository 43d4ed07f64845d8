// Package metrics define las métricas Prometheus del servicio. Vive aparte
// para que loginflow, upgrade y http las compartan sin ciclos de imports.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resultados posibles de las métricas por resultado.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultDenied   = "denied"
	ResultError    = "error"
	ResultSkipped  = "skipped"
	ResultContinue = "continue"
)

// Metrics agrupa los collectors. Un *Metrics nil es válido y no registra nada.
type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	ExchangesTotal      *prometheus.CounterVec
	ExchangeDuration    prometheus.Histogram
	AccountsCreated     prometheus.Counter
	UpgradeStepsTotal   *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New crea los collectors y los registra en reg (o en el default si es nil).
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classlink_logins_total",
			Help: "Invocaciones del login hook por resultado",
		}, []string{"result"}), // continue|success|failure|error

		ExchangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classlink_token_exchanges_total",
			Help: "Intercambios ROPC contra el provider por resultado",
		}, []string{"result"}), // success|failure|denied|error

		ExchangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "classlink_token_exchange_duration_seconds",
			Help:    "Latencia del request al token endpoint",
			Buckets: prometheus.DefBuckets,
		}),

		AccountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classlink_accounts_created_total",
			Help: "Cuentas locales creadas por el camino autoappend",
		}),

		UpgradeStepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classlink_upgrade_steps_total",
			Help: "Pasos de upgrade por resultado",
		}, []string{"result"}), // success|skipped|failure

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	var err error
	if m.LoginsTotal, err = register(reg, m.LoginsTotal); err != nil {
		return nil, err
	}
	if m.ExchangesTotal, err = register(reg, m.ExchangesTotal); err != nil {
		return nil, err
	}
	if m.ExchangeDuration, err = register(reg, m.ExchangeDuration); err != nil {
		return nil, err
	}
	if m.AccountsCreated, err = register(reg, m.AccountsCreated); err != nil {
		return nil, err
	}
	if m.UpgradeStepsTotal, err = register(reg, m.UpgradeStepsTotal); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = register(reg, m.HTTPRequestsTotal); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = register(reg, m.HTTPRequestDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// register registra c; si ya había uno igual registrado, retorna el existente.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Exchange(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExchangesTotal.WithLabelValues(result).Inc()
	if d > 0 {
		m.ExchangeDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) AccountCreated() {
	if m == nil {
		return
	}
	m.AccountsCreated.Inc()
}

func (m *Metrics) UpgradeStep(result string) {
	if m == nil {
		return
	}
	m.UpgradeStepsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) HTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusLabel(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
