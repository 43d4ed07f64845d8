package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ToContext inyecta un logger en el contexto.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From extrae el logger del contexto; si no hay, retorna el singleton.
func From(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return L()
}

// OrFrom devuelve l si no es nil; si no, el logger del contexto.
// Los componentes lo usan para preferir el logger inyectado en construcción.
func OrFrom(ctx context.Context, l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return From(ctx)
}
