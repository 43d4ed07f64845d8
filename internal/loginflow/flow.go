// Package loginflow implementa el login contra el identity provider que el
// host invoca desde su pipeline de autenticación.
//
// La variante "rocreds" intercambia usuario y password directamente contra
// el token endpoint (grant password), valida el id_token devuelto y vincula
// la identidad externa con una cuenta local.
package loginflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/classlink/internal/cache"
	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/events"
	"github.com/dropDatabas3/classlink/internal/idp"
	"github.com/dropDatabas3/classlink/internal/metrics"
)

// FlowROCreds es el nombre de la variante resource owner password credentials.
const FlowROCreds = "rocreds"

// ErrUnknownFlow se devuelve al pedir una variante que no existe.
var ErrUnknownFlow = errors.New("loginflow: unknown flow")

// LoginForm es lo que el usuario envió en el formulario de login.
type LoginForm struct {
	Username   string
	Password   string
	RemoteAddr string
	UserAgent  string
}

// Result es la respuesta del hook. Continue=false corta el login; User, si
// no es nil, es la cuenta con la que el host debe completar la sesión.
type Result struct {
	Continue bool
	User     *repository.LocalAccount
}

// LoginFlow es el contrato que el host invoca.
type LoginFlow interface {
	// LoginHook corre antes del chequeo de credenciales del host. form nil
	// significa que no hubo envío de formulario.
	LoginHook(ctx context.Context, form *LoginForm) (Result, error)

	// UserLogin autentica contra el provider y persiste el token.
	UserLogin(ctx context.Context, username, password string) (bool, error)
}

// Restrictions decide si una identidad puede loguearse. nil = sin restricciones.
type Restrictions interface {
	Allow(tok *idp.IDToken) bool
}

// Settings es la configuración del plugin que afecta al flujo.
type Settings struct {
	// AutoAppend se agrega al username para buscarlo en el provider ("@school.edu").
	AutoAppend string

	// PreventAccountCreation deshabilita el alta de cuentas nuevas.
	PreventAccountCreation bool

	// SiteURL se incluye en los eventos de login fallido.
	SiteURL string
}

// Deps son las dependencias del flujo. Tokens, Accounts, Client y Decoder
// son obligatorias.
type Deps struct {
	Tokens       repository.TokenRepository
	Accounts     repository.AccountRepository
	Legacy       repository.LegacyFederationRepository // nil = sin mapeo legacy
	Client       idp.Client
	Decoder      idp.Decoder
	Restrictions Restrictions
	Events       events.Sink
	Cache        cache.Client // cache del resolver, opcional
	CacheTTL     time.Duration
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Now          func() time.Time
	Settings     Settings
}

func (d Deps) validate() error {
	var missing []string
	if d.Tokens == nil {
		missing = append(missing, "Tokens")
	}
	if d.Accounts == nil {
		missing = append(missing, "Accounts")
	}
	if d.Client == nil {
		missing = append(missing, "Client")
	}
	if d.Decoder == nil {
		missing = append(missing, "Decoder")
	}
	if len(missing) > 0 {
		return fmt.Errorf("loginflow: missing dependencies: %s", strings.Join(missing, ", "))
	}
	return nil
}

// New construye la variante pedida.
func New(name string, d Deps) (LoginFlow, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FlowROCreds:
		return NewROCreds(d)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, name)
	}
}
