package idp

import (
	"context"
	"crypto"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// IDToken es un id_token decodificado.
type IDToken struct {
	Raw    string
	Claims map[string]any
}

// Claim retorna un claim string ("" si falta o no es string).
func (t *IDToken) Claim(name string) string {
	if t == nil {
		return ""
	}
	s, _ := t.Claims[name].(string)
	return strings.TrimSpace(s)
}

// UniqueID es el identificador estable del usuario en el provider: oid, o sub.
func (t *IDToken) UniqueID() string {
	if oid := t.Claim("oid"); oid != "" {
		return oid
	}
	return t.Claim("sub")
}

// Username es el nombre del usuario en el provider: upn, o sub.
func (t *IDToken) Username() string {
	if upn := t.Claim("upn"); upn != "" {
		return upn
	}
	return t.Claim("sub")
}

// Decoder decodifica id_tokens.
type Decoder interface {
	Decode(ctx context.Context, encoded string) (*IDToken, error)
}

// JWTDecoder decodifica sin verificar la firma. El token llega directo del
// token endpoint por TLS, igual que en el flujo original.
type JWTDecoder struct{}

var _ Decoder = JWTDecoder{}

func (JWTDecoder) Decode(_ context.Context, encoded string) (*IDToken, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty token", ErrDecode)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(encoded, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return newIDToken(encoded, claims)
}

func newIDToken(raw string, claims map[string]any) (*IDToken, error) {
	t := &IDToken{Raw: raw, Claims: claims}
	if t.UniqueID() == "" {
		return nil, fmt.Errorf("%w: missing oid/sub", ErrDecode)
	}
	return t, nil
}

// OIDCDecoder verifica firma, issuer, audiencia y expiración con go-oidc.
type OIDCDecoder struct {
	verifier *oidc.IDTokenVerifier
}

var _ Decoder = (*OIDCDecoder)(nil)

// NewOIDCDecoder verifica contra claves públicas fijas.
func NewOIDCDecoder(issuer, clientID string, keys ...crypto.PublicKey) *OIDCDecoder {
	ks := &oidc.StaticKeySet{PublicKeys: keys}
	return &OIDCDecoder{verifier: oidc.NewVerifier(issuer, ks, &oidc.Config{ClientID: clientID})}
}

// DiscoverOIDCDecoder usa el discovery del issuer (/.well-known/openid-configuration) y su JWKS.
func DiscoverOIDCDecoder(ctx context.Context, issuer, clientID string, hc *http.Client) (*OIDCDecoder, error) {
	if hc != nil {
		ctx = oidc.ClientContext(ctx, hc)
	}
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("idp: oidc discovery: %w", err)
	}
	return &OIDCDecoder{verifier: p.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (d *OIDCDecoder) Decode(ctx context.Context, encoded string) (*IDToken, error) {
	tok, err := d.verifier.Verify(ctx, strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	claims := map[string]any{}
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return newIDToken(encoded, claims)
}
