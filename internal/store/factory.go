package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/classlink/internal/security/password"
	"github.com/dropDatabas3/classlink/internal/store/core"
	"github.com/dropDatabas3/classlink/internal/store/memory"
	"github.com/dropDatabas3/classlink/internal/store/sqldb"
)

func init() {
	RegisterAdapter(memoryAdapter{})
	RegisterAdapter(postgresAdapter{})
	RegisterAdapter(sqliteAdapter{})
}

type memoryAdapter struct{}

func (memoryAdapter) Name() string { return "memory" }
func (memoryAdapter) Connect(ctx context.Context, _ AdapterConfig) (core.Store, error) {
	return memory.New(), ctx.Err()
}

type postgresAdapter struct{}

func (postgresAdapter) Name() string { return "postgres" }
func (postgresAdapter) Connect(ctx context.Context, cfg AdapterConfig) (core.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: empty dsn")
	}
	return sqldb.OpenPostgres(ctx, cfg.DSN, sqldb.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
}

type sqliteAdapter struct{}

func (sqliteAdapter) Name() string { return "sqlite" }
func (sqliteAdapter) Connect(ctx context.Context, cfg AdapterConfig) (core.Store, error) {
	return sqldb.OpenSQLite(ctx, cfg.DSN)
}

// Options ajusta los adapters de dominio.
type Options struct {
	// Now es el reloj para timecreated/timemodified. Default time.Now.
	Now func() time.Time

	// PasswordParams para hashear passwords de cuentas nuevas. Default password.Default.
	PasswordParams *password.Params
}

// Stores agrupa el backend y los adapters de dominio montados sobre él.
type Stores struct {
	Store    core.Store
	Tokens   *TokenStore
	Accounts *AccountStore
	Legacy   *LegacyStore
	Plugins  *PluginConfigStore
}

// Wrap monta los adapters de dominio sobre un store ya abierto.
func Wrap(s core.Store, opts Options) *Stores {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	params := password.Default
	if opts.PasswordParams != nil {
		params = *opts.PasswordParams
	}

	plugins := NewPluginConfigStore(s)
	accounts := &AccountStore{DB: s, Now: now, Params: params}
	return &Stores{
		Store:    s,
		Tokens:   &TokenStore{DB: s, Now: now},
		Accounts: accounts,
		Legacy:   &LegacyStore{DB: s, Plugins: plugins, Accounts: accounts},
		Plugins:  plugins,
	}
}

// Open abre el backend configurado y monta los adapters.
func Open(ctx context.Context, cfg AdapterConfig, opts Options) (*Stores, error) {
	s, err := OpenAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(s, opts), nil
}

// Close cierra el backend.
func (s *Stores) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}
