// Package idp habla con el identity provider: el request ROPC al token
// endpoint y la decodificación del id_token devuelto.
package idp

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmptyPassword: no se hace request sin password.
	ErrEmptyPassword = errors.New("idp: empty password")

	// ErrRejected: el provider respondió con error (credenciales inválidas, etc).
	ErrRejected = errors.New("idp: credentials rejected")

	// ErrDecode: el id_token no se pudo decodificar o le falta el identificador.
	ErrDecode = errors.New("idp: cannot decode id token")
)

// TokenParams es la respuesta del token endpoint.
type TokenParams struct {
	TokenType    string // tal cual lo envió el provider
	AccessToken  string
	RefreshToken string
	IDToken      string
	Scope        string
	Resource     string
	Expiry       time.Time
}

// IsBearer reporta si el token_type es Bearer (sin distinguir mayúsculas).
func (p *TokenParams) IsBearer() bool {
	return p != nil && strings.EqualFold(strings.TrimSpace(p.TokenType), "Bearer")
}

// Client hace el request de resource owner password credentials.
//
//go:generate go run go.uber.org/mock/mockgen -source=$GOFILE -destination=mock/mock_$GOFILE -package=mock_$GOPACKAGE Client
type Client interface {
	// PasswordToken hace exactamente un request al token endpoint. Sin reintentos.
	PasswordToken(ctx context.Context, username, password string) (*TokenParams, error)
}
