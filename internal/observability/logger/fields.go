package logger

import (
	"time"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func RemoteAddr(v string) zap.Field {
	return zap.String("remote_addr", v)
}
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ---- login ----

// Username es el username local (nunca el password).
func Username(v string) zap.Field { return zap.String("username", v) }

// Subject es el username enviado al identity provider.
func Subject(v string) zap.Field { return zap.String("subject", v) }

// ExternalID es el unique id asignado por el provider.
func ExternalID(v string) zap.Field { return zap.String("external_id", v) }

func UserID(v int64) zap.Field  { return zap.Int64("user_id", v) }
func TokenID(v int64) zap.Field { return zap.Int64("token_id", v) }
func Reason(v string) zap.Field { return zap.String("reason", v) }
func Flow(v string) zap.Field   { return zap.String("flow", v) }

// ---- upgrade ----

func Step(v string) zap.Field    { return zap.String("step", v) }
func Version(v string) zap.Field { return zap.String("version", v) }
func Table(v string) zap.Field   { return zap.String("table", v) }
func Count(v int) zap.Field      { return zap.Int("count", v) }

// ---- sistema ----

func Component(v string) zap.Field { return zap.String("component", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
