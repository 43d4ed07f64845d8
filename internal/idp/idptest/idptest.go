// Package idptest tiene helpers para tests que necesitan un token endpoint
// o id_tokens de prueba.
package idptest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

// IDToken firma claims con HS256 y una clave fija. Los decoders sin
// verificación lo aceptan igual.
func IDToken(t testing.TB, claims map[string]any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims)).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return s
}

// TokenServer es un token endpoint falso. Responde lo que diga Respond.
type TokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []map[string]string

	// Respond arma la respuesta a partir del form recibido. Default: 401.
	Respond func(form map[string]string) (status int, body map[string]any)
}

// NewTokenServer levanta el server; se cierra con t.Cleanup.
func NewTokenServer(t testing.TB) *TokenServer {
	t.Helper()
	ts := &TokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *TokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	ts.mu.Lock()
	ts.requests = append(ts.requests, form)
	respond := ts.Respond
	ts.mu.Unlock()

	status, body := http.StatusUnauthorized, map[string]any{"error": "invalid_grant"}
	if respond != nil {
		status, body = respond(form)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Requests retorna los forms recibidos.
func (ts *TokenServer) Requests() []map[string]string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]map[string]string(nil), ts.requests...)
}

// TokenURL es la URL del token endpoint.
func (ts *TokenServer) TokenURL() string { return ts.URL + "/token" }
