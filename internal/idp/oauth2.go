package idp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Config configura el cliente ROPC.
type Config struct {
	ClientID      string
	ClientSecret  string
	AuthEndpoint  string
	TokenEndpoint string
	Resource      string // parámetro "resource" extra del token request (opcional)
	Scopes        []string
	Timeout       time.Duration
}

// OAuth2Client implementa Client con golang.org/x/oauth2.
type OAuth2Client struct {
	conf     *oauth2.Config
	resource string
	http     *http.Client
}

var _ Client = (*OAuth2Client)(nil)

// NewOAuth2Client arma el cliente. httpClient puede ser nil; el timeout de
// cfg aplica solo cuando se crea el cliente acá.
func NewOAuth2Client(cfg Config, httpClient *http.Client) (*OAuth2Client, error) {
	if cfg.TokenEndpoint == "" {
		return nil, errors.New("idp: token endpoint is required")
	}
	if _, err := url.ParseRequestURI(cfg.TokenEndpoint); err != nil {
		return nil, fmt.Errorf("idp: invalid token endpoint: %w", err)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.Resource != "" {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc := *httpClient
		hc.Transport = &formParamTransport{base: base, params: url.Values{"resource": {cfg.Resource}}}
		httpClient = &hc
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}
	return &OAuth2Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthEndpoint,
				TokenURL:  cfg.TokenEndpoint,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		resource: cfg.Resource,
		http:     httpClient,
	}, nil
}

func (c *OAuth2Client) PasswordToken(ctx context.Context, username, password string) (*TokenParams, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := c.conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, re.Response.StatusCode, re.ErrorCode)
		}
		return nil, fmt.Errorf("idp: token request: %w", err)
	}

	p := &TokenParams{
		TokenType:    tok.TokenType,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      extraString(tok, "id_token"),
		Scope:        extraString(tok, "scope"),
		Resource:     extraString(tok, "resource"),
		Expiry:       tok.Expiry,
	}
	if p.Scope == "" {
		p.Scope = strings.Join(c.conf.Scopes, " ")
	}
	if p.Resource == "" {
		p.Resource = c.resource
	}
	return p, nil
}

func extraString(tok *oauth2.Token, key string) string {
	if s, ok := tok.Extra(key).(string); ok {
		return s
	}
	return ""
}

// formParamTransport agrega parámetros a los POST form-urlencoded.
// oauth2.Config no permite parámetros extra en el password grant.
type formParamTransport struct {
	base   http.RoundTripper
	params url.Values
}

func (t *formParamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil ||
		!strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return t.base.RoundTrip(req)
	}
	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, err
	}
	for k, vs := range t.params {
		if form.Get(k) == "" {
			form[k] = vs
		}
	}
	body := form.Encode()

	r2 := req.Clone(req.Context())
	r2.Body = io.NopCloser(strings.NewReader(body))
	r2.ContentLength = int64(len(body))
	r2.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte(body))), nil
	}
	return t.base.RoundTrip(r2)
}
