// Package middlewares contiene los decoradores HTTP del servicio: request id,
// logging con métricas, recover y rate limit del login.
package middlewares

import "net/http"

// Middleware tiene la firma de chi, se pasa directo a Router.Use/With.
type Middleware func(http.Handler) http.Handler
