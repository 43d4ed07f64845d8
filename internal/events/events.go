// Package events publica los eventos de login que el host quiere auditar.
// Hoy el único evento es el login rechazado por no poder crear la cuenta.
package events

import (
	"context"
	"errors"
	"time"
)

// ReasonUnauthorised es el motivo cuando el usuario autenticó en el provider
// pero la creación de cuentas está deshabilitada.
const ReasonUnauthorised = "unauthorised"

// LoginFailed describe un login rechazado.
type LoginFailed struct {
	Username   string
	Reason     string
	RemoteAddr string
	UserAgent  string
	SiteURL    string
	Time       time.Time
}

// Sink recibe eventos. Los errores del sink no cambian el resultado del login.
type Sink interface {
	LoginFailed(ctx context.Context, ev LoginFailed) error
}

// Multi reenvía a todos los sinks y junta los errores.
type Multi []Sink

func (m Multi) LoginFailed(ctx context.Context, ev LoginFailed) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.LoginFailed(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop descarta todo.
type Nop struct{}

func (Nop) LoginFailed(context.Context, LoginFailed) error { return nil }
