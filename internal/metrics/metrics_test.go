package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Login(ResultSuccess)
	m.Login(ResultSuccess)
	m.Login(ResultFailure)
	m.Exchange(ResultDenied, 20*time.Millisecond)
	m.AccountCreated()
	m.UpgradeStep(ResultSkipped)
	m.HTTPRequest("POST", "/v1/auth/classlink/login", 401, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExchangesTotal.WithLabelValues(ResultDenied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccountsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpgradeStepsTotal.WithLabelValues(ResultSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/auth/classlink/login", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExchangeDuration))
}

func TestNew_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	b.Login(ResultSuccess)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.LoginsTotal.WithLabelValues(ResultSuccess)))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Login(ResultSuccess)
		m.Exchange(ResultError, time.Second)
		m.AccountCreated()
		m.UpgradeStep(ResultFailure)
		m.HTTPRequest("GET", "/", 200, 0)
	})
}
