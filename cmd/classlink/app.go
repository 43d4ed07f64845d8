package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/dropDatabas3/classlink/internal/cache"
	"github.com/dropDatabas3/classlink/internal/config"
	"github.com/dropDatabas3/classlink/internal/events"
	"github.com/dropDatabas3/classlink/internal/idp"
	"github.com/dropDatabas3/classlink/internal/loginflow"
	"github.com/dropDatabas3/classlink/internal/metrics"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
	"github.com/dropDatabas3/classlink/internal/rate"
	"github.com/dropDatabas3/classlink/internal/restrictions"
	"github.com/dropDatabas3/classlink/internal/security/secretbox"
	"github.com/dropDatabas3/classlink/internal/store"
	"github.com/dropDatabas3/classlink/internal/upgrade"
)

// app agrupa lo que abren los comandos y lo que hay que cerrar al salir.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	stores  *store.Stores
	cache   cache.Client
	metrics *metrics.Metrics
}

func openStores(ctx context.Context, cfg *config.Config) (*store.Stores, error) {
	return store.Open(ctx, store.AdapterConfig{
		Name:            cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	}, store.Options{})
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, log: logger.L()}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.stores = st

	m, err := metrics.New(nil)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.metrics = m

	if cfg.Cache.Kind != "none" {
		c, err := cache.New(ctx, cache.Config{
			Driver:     cfg.Cache.Kind,
			Addr:       cfg.Cache.Redis.Addr,
			Password:   cfg.Cache.Redis.Password,
			DB:         cfg.Cache.Redis.DB,
			Prefix:     cfg.Cache.Redis.Prefix,
			DefaultTTL: cfg.CacheTTL(),
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("cache: %w", err)
		}
		a.cache = c
	}
	return a, nil
}

func (a *app) Close() error {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	return a.stores.Close()
}

// ensureSchema corre install si se pide. El driver memory arranca vacío, así
// que ahí se instala siempre.
func (a *app) ensureSchema(ctx context.Context, force bool) error {
	if !force && store.CanonicalName(a.cfg.Storage.Driver) != "memory" {
		return nil
	}
	_, err := upgrade.Install(ctx, a.stores.Store, upgrade.Options{Metrics: a.metrics, Logger: a.log})
	return err
}

// pluginSettings aplica encima de la config los valores guardados en
// config_plugins. Sin la tabla (antes de install) se usa la config tal cual.
func (a *app) pluginSettings(ctx context.Context) error {
	kv, err := a.stores.Plugins.All(ctx, store.PluginClasslink)
	if err != nil {
		a.log.Warn("plugin config unavailable, using file/env values", logger.Err(err))
		return nil
	}
	if err := a.cfg.ApplyPluginConfig(kv); err != nil {
		return err
	}
	return a.cfg.RevealSecrets(loadBox())
}

// loadBox retorna nil si SECRETBOX_MASTER_KEY no está seteada o es inválida;
// en ese caso solo fallan los valores cifrados.
func loadBox() *secretbox.Box {
	box, err := secretbox.FromEnv()
	if err != nil {
		return nil
	}
	return box
}

// loginLimiter comparte la conexión Redis del cache si la hay.
func (a *app) loginLimiter() rate.Limiter {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return nil
	}
	if rc, ok := cache.RedisOf(a.cache); ok {
		return rate.NewRedisLimiter(rc, a.cfg.Cache.Redis.Prefix+"rl:", rl.Max, rl.Window)
	}
	return rate.NewMemoryLimiter(rl.Max, rl.Window)
}

func (a *app) decoder(ctx context.Context, hc *http.Client) (idp.Decoder, error) {
	cl := a.cfg.Classlink
	if !cl.VerifySignature {
		return idp.JWTDecoder{}, nil
	}
	return idp.DiscoverOIDCDecoder(ctx, cl.Issuer, cl.ClientID, hc)
}

func (a *app) eventSink() events.Sink {
	sinks := events.Multi{events.LogSink{Logger: a.log}}
	if len(a.cfg.Alerts.To) > 0 {
		sinks = append(sinks, events.MailSink{
			Sender: events.NewDialer(events.SMTPConfig{
				Host:               a.cfg.SMTP.Host,
				Port:               a.cfg.SMTP.Port,
				Username:           a.cfg.SMTP.Username,
				Password:           a.cfg.SMTP.Password,
				TLSMode:            a.cfg.SMTP.TLS,
				InsecureSkipVerify: a.cfg.SMTP.InsecureSkipVerify,
			}),
			From:    a.cfg.SMTP.From,
			To:      a.cfg.Alerts.To,
			Subject: a.cfg.Alerts.Subject,
		})
	}
	return sinks
}

// loginFlow arma el flujo configurado con todas sus dependencias.
func (a *app) loginFlow(ctx context.Context) (loginflow.LoginFlow, error) {
	if err := a.pluginSettings(ctx); err != nil {
		return nil, fmt.Errorf("plugin config: %w", err)
	}
	cl := a.cfg.Classlink

	hc := &http.Client{Timeout: cl.Timeout}
	client, err := idp.NewOAuth2Client(idp.Config{
		ClientID:      cl.ClientID,
		ClientSecret:  cl.ClientSecret,
		AuthEndpoint:  cl.AuthEndpoint,
		TokenEndpoint: cl.TokenEndpoint,
		Resource:      cl.Resource,
		Scopes:        cl.Scopes,
		Timeout:       cl.Timeout,
	}, hc)
	if err != nil {
		return nil, err
	}
	dec, err := a.decoder(ctx, hc)
	if err != nil {
		return nil, err
	}
	policy, err := restrictions.Parse(cl.UserRestrictions, cl.UserRestrictionsCaseSensitive)
	if err != nil {
		return nil, fmt.Errorf("user restrictions: %w", err)
	}
	policy.WithClaim(cl.UserRestrictionsClaim)

	d := loginflow.Deps{
		Tokens:       a.stores.Tokens,
		Accounts:     a.stores.Accounts,
		Legacy:       a.stores.Legacy,
		Client:       client,
		Decoder:      dec,
		Restrictions: policy,
		Events:       a.eventSink(),
		Cache:        a.cache,
		CacheTTL:     a.cfg.CacheTTL(),
		Metrics:      a.metrics,
		Logger:       a.log,
		Settings: loginflow.Settings{
			AutoAppend:             cl.AutoAppend,
			PreventAccountCreation: cl.PreventAccountCreation,
			SiteURL:                a.cfg.App.SiteURL,
		},
	}
	return loginflow.New(cl.Flow, d)
}
