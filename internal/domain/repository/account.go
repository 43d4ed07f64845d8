package repository

import (
	"context"
	"time"
)

// AuthMethod es el valor de users.auth para cuentas creadas por este plugin.
const AuthMethod = "classlink"

// LocalAccount es la cuenta del host. Este core solo la lee, y la crea en el
// camino autoappend.
type LocalAccount struct {
	ID           int64
	Username     string
	Auth         string
	PasswordHash string
	Deleted      bool
	TimeCreated  time.Time
	TimeModified time.Time
}

// CreateAccountInput contiene los datos para crear una cuenta local.
type CreateAccountInput struct {
	Username string
	Password string // en claro; el adapter lo hashea
	Auth     string
}

// AccountRepository define operaciones sobre cuentas locales.
type AccountRepository interface {
	// GetByUsername busca una cuenta no eliminada. Retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*LocalAccount, error)

	// GetByID busca una cuenta por id. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id int64) (*LocalAccount, error)

	// Create crea una cuenta nueva. Retorna ErrConflict si el username ya existe.
	Create(ctx context.Context, in CreateAccountInput) (*LocalAccount, error)

	// Rename cambia el username de una cuenta.
	Rename(ctx context.Context, id int64, username string) error
}
