package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/http/dto/auth"
	healthsvc "github.com/dropDatabas3/classlink/internal/http/services/health"
	"github.com/dropDatabas3/classlink/internal/loginflow"
	"github.com/dropDatabas3/classlink/internal/metrics"
	"github.com/dropDatabas3/classlink/internal/rate"
)

type fakeFlow struct {
	got  *loginflow.LoginForm
	res  loginflow.Result
	err  error
	boom bool
}

func (f *fakeFlow) LoginHook(_ context.Context, form *loginflow.LoginForm) (loginflow.Result, error) {
	if f.boom {
		panic("boom")
	}
	f.got = form
	return f.res, f.err
}

func (f *fakeFlow) UserLogin(context.Context, string, string) (bool, error) { return false, nil }

var trustedProxies = []netip.Prefix{
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("10.0.0.0/8"),
}

func newTestRouter(t *testing.T, flow loginflow.LoginFlow, dbErr error) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	return New(Deps{
		Flow:           flow,
		Metrics:        m,
		Logger:         zap.NewNop(),
		Gatherer:       reg,
		TrustedProxies: trustedProxies,
		Health: healthsvc.Deps{
			Version: "test",
			DBCheck: func(context.Context) error { return dbErr },
		},
	}), reg
}

func post(h http.Handler, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/classlink/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5555"
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLogin_BindsUser(t *testing.T) {
	flow := &fakeFlow{res: loginflow.Result{Continue: true, User: &repository.LocalAccount{ID: 7, Username: "bob@school.edu", Auth: "classlink"}}}
	h, _ := newTestRouter(t, flow, nil)

	rr := post(h, `{"username":" bob ","password":"pw"}`, map[string]string{"User-Agent": "curl/8", "X-Forwarded-For": "203.0.113.9, 10.0.0.1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var resp auth.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Continue)
	require.NotNil(t, resp.User)
	assert.Equal(t, int64(7), resp.User.ID)

	require.NotNil(t, flow.got)
	assert.Equal(t, "bob", flow.got.Username)
	assert.Equal(t, "203.0.113.9", flow.got.RemoteAddr)
	assert.Equal(t, "curl/8", flow.got.UserAgent)
}

func TestLogin_ContinueWithoutUser(t *testing.T) {
	h, _ := newTestRouter(t, &fakeFlow{res: loginflow.Result{Continue: true}}, nil)
	rr := post(h, `{"username":"carol","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"continue":true}`, rr.Body.String())
}

func TestLogin_Errors(t *testing.T) {
	cases := []struct {
		name   string
		flow   *fakeFlow
		body   string
		ctype  string
		status int
		code   string
	}{
		{"rejected", &fakeFlow{}, `{"username":"a","password":"b"}`, "", http.StatusUnauthorized, "LOGIN_REJECTED"},
		{"store failure", &fakeFlow{err: errors.New("db down")}, `{"username":"a","password":"b"}`, "", http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"panic", &fakeFlow{boom: true}, `{"username":"a","password":"b"}`, "", http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"missing password", &fakeFlow{}, `{"username":"a"}`, "", http.StatusBadRequest, "MISSING_FIELDS"},
		{"empty body", &fakeFlow{}, ``, "", http.StatusBadRequest, "MISSING_FIELDS"},
		{"bad json", &fakeFlow{}, `{"username":`, "", http.StatusBadRequest, "INVALID_JSON"},
		{"form post", &fakeFlow{}, `username=a`, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestRouter(t, tc.flow, nil)
			hdr := map[string]string{}
			if tc.ctype != "" {
				hdr["Content-Type"] = tc.ctype
			}
			rr := post(h, tc.body, hdr)
			assert.Equal(t, tc.status, rr.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	h, _ := newTestRouter(t, &fakeFlow{}, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/classlink/login", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "test", rr.Header().Get("X-Service-Version"))
	assert.Contains(t, rr.Body.String(), `"ready"`)

	h, _ = newTestRouter(t, nil, errors.New("down"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, &fakeFlow{res: loginflow.Result{Continue: true}}, nil)
	post(h, `{"username":"a","password":"b"}`, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `http_requests_total{method="POST",path="/v1/auth/classlink/login",status="2xx"} 1`)
}

func TestLogin_RateLimited(t *testing.T) {
	h := New(Deps{
		Flow:         &fakeFlow{res: loginflow.Result{Continue: true}},
		Logger:       zap.NewNop(),
		Gatherer:     prometheus.NewRegistry(),
		LoginLimiter:   rate.NewMemoryLimiter(1, time.Minute),
		TrustedProxies: trustedProxies,
	})

	rr := post(h, `{"username":"a","password":"b"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = post(h, `{"username":"a","password":"b"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// otra IP no comparte contador
	rr = post(h, `{"username":"a","password":"b"}`, map[string]string{"X-Real-IP": "198.51.100.7"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLogin_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	flow := &fakeFlow{res: loginflow.Result{Continue: true}}
	h := New(Deps{
		Flow:         flow,
		Logger:       zap.NewNop(),
		Gatherer:     prometheus.NewRegistry(),
		LoginLimiter: rate.NewMemoryLimiter(1, time.Minute),
	})

	rr := post(h, `{"username":"a","password":"b"}`, map[string]string{"X-Forwarded-For": "198.51.100.1"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, flow.got)
	assert.Equal(t, "192.0.2.10", flow.got.RemoteAddr)

	// headers nuevos en cada intento no abren otro contador
	for _, hdr := range []map[string]string{
		{"X-Forwarded-For": "198.51.100.2"},
		{"X-Forwarded-For": "198.51.100.3, 192.0.2.10"},
		{"X-Real-IP": "198.51.100.4"},
	} {
		rr = post(h, `{"username":"a","password":"b"}`, hdr)
		assert.Equal(t, http.StatusTooManyRequests, rr.Code, hdr)
	}
}
