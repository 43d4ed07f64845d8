package repository

import (
	"context"
	"strings"
	"time"
)

// TokenRecord vincula una identidad externa con una cuenta local.
// Una fila por classlinkuniqid.
type TokenRecord struct {
	ID               int64
	UserID           int64  // 0 si la cuenta local aún no existía al emitir el token
	Username         string // siempre lowercase + trim
	ExternalUsername string // upn/sub en el provider; puede diferir de Username
	ExternalUniqueID string
	IDToken          string // vacío = fila legacy
	Scope            string
	Resource         string
	AuthCode         string
	AccessToken      string
	RefreshToken     string
	Expiry           time.Time
	TimeCreated      time.Time
	TimeModified     time.Time
}

// IsLegacy reporta si la fila no tiene id_token (datos previos al backfill).
func (t *TokenRecord) IsLegacy() bool {
	return strings.TrimSpace(t.IDToken) == ""
}

// NormalizeUsername aplica la forma canónica de username de la tabla de tokens.
func NormalizeUsername(u string) string {
	return strings.TrimSpace(strings.ToLower(u))
}

// TokenRepository es el adapter sobre auth_classlink_token.
type TokenRepository interface {
	// GetByUsername retorna el primer registro (por id) del username dado.
	// Retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*TokenRecord, error)

	// GetByExternalID busca por classlinkuniqid. Retorna ErrNotFound si no existe.
	GetByExternalID(ctx context.Context, externalID string) (*TokenRecord, error)

	// GetByID busca por id. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id int64) (*TokenRecord, error)

	// Create inserta un registro nuevo y retorna la copia persistida (con ID).
	// Retorna ErrConflict si el classlinkuniqid ya existe.
	Create(ctx context.Context, rec TokenRecord) (*TokenRecord, error)

	// Update reescribe el registro con el mismo ID.
	Update(ctx context.Context, rec TokenRecord) error

	// LinkUser asigna la cuenta local al registro tokenID.
	// Retorna ErrNotFound si el registro no existe.
	LinkUser(ctx context.Context, tokenID, userID int64) error
}
