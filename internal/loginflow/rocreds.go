package loginflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/events"
	"github.com/dropDatabas3/classlink/internal/metrics"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
)

const component = "loginflow.rocreds"

// ROCreds es el flujo resource owner password credentials.
type ROCreds struct {
	d        Deps
	resolver *Resolver
	events   events.Sink
	now      func() time.Time
}

var _ LoginFlow = (*ROCreds)(nil)

// NewROCreds valida las dependencias y arma el flujo.
func NewROCreds(d Deps) (*ROCreds, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	f := &ROCreds{
		d: d,
		resolver: &Resolver{
			Legacy: d.Legacy,
			Cache:  d.Cache,
			TTL:    d.CacheTTL,
			Logger: d.Logger,
		},
		events: d.Events,
		now:    d.Now,
	}
	if f.events == nil {
		f.events = events.LogSink{Logger: d.Logger}
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f, nil
}

func (f *ROCreds) log(ctx context.Context) *zap.Logger {
	return logger.OrFrom(ctx, f.d.Logger).With(logger.Component(component))
}

// UserLogin autentica username/password contra el provider. Devuelve false
// (sin error) si el provider rechaza, si el token no es Bearer, si el
// id_token no decodifica o si las restricciones lo impiden. Los errores son
// fallas del store.
func (f *ROCreds) UserLogin(ctx context.Context, username, password string) (ok bool, err error) {
	defer recoverErr(&err)
	ok, _, err = f.exchange(ctx, username, password)
	return ok, err
}

// exchange hace un request al provider y a lo sumo una escritura en el store.
// Devuelve el token persistido cuando ok.
func (f *ROCreds) exchange(ctx context.Context, username, password string) (bool, *repository.TokenRecord, error) {
	log := f.log(ctx).With(logger.Username(username))

	subject := username
	prev, err := f.d.Tokens.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if prev.ExternalUsername != "" {
			subject = prev.ExternalUsername
		}
	case !errors.Is(err, repository.ErrNotFound):
		f.d.Metrics.Exchange(metrics.ResultError, 0)
		return false, nil, fmt.Errorf("lookup token by username: %w", err)
	}

	if password == "" {
		f.d.Metrics.Exchange(metrics.ResultFailure, 0)
		return false, nil, nil
	}

	start := f.now()
	params, err := f.d.Client.PasswordToken(ctx, subject, password)
	elapsed := f.now().Sub(start)
	if err != nil {
		log.Info("token request failed", logger.Subject(subject), logger.Err(err))
		f.d.Metrics.Exchange(metrics.ResultFailure, elapsed)
		return false, nil, nil
	}
	if !params.IsBearer() {
		log.Info("token response rejected: not a bearer token", logger.Subject(subject))
		f.d.Metrics.Exchange(metrics.ResultFailure, elapsed)
		return false, nil, nil
	}

	idt, err := f.d.Decoder.Decode(ctx, params.IDToken)
	if err != nil {
		log.Info("id token rejected", logger.Err(err))
		f.d.Metrics.Exchange(metrics.ResultFailure, elapsed)
		return false, nil, nil
	}
	uniqID := idt.UniqueID()
	log = log.With(logger.ExternalID(uniqID))

	if f.d.Restrictions != nil && !f.d.Restrictions.Allow(idt) {
		log.Warn("user prevented from logging in due to restrictions",
			logger.Subject(idt.Username()))
		f.d.Metrics.Exchange(metrics.ResultDenied, elapsed)
		return false, nil, nil
	}

	now := f.now()
	rec, err := f.d.Tokens.GetByExternalID(ctx, uniqID)
	switch {
	case err == nil:
		rec.AccessToken = params.AccessToken
		rec.RefreshToken = params.RefreshToken
		rec.Expiry = params.Expiry
		rec.IDToken = params.IDToken
		rec.ExternalUsername = idt.Username()
		if params.Scope != "" {
			rec.Scope = params.Scope
		}
		if params.Resource != "" {
			rec.Resource = params.Resource
		}
		rec.AuthCode = ""
		rec.TimeModified = now
		if err := f.d.Tokens.Update(ctx, *rec); err != nil {
			f.d.Metrics.Exchange(metrics.ResultError, elapsed)
			return false, nil, fmt.Errorf("update token: %w", err)
		}
		log.Debug("token updated", logger.TokenID(rec.ID))

	case errors.Is(err, repository.ErrNotFound):
		var userID int64
		acct, aerr := f.d.Accounts.GetByUsername(ctx, username)
		switch {
		case aerr == nil:
			userID = acct.ID
		case !errors.Is(aerr, repository.ErrNotFound):
			f.d.Metrics.Exchange(metrics.ResultError, elapsed)
			return false, nil, fmt.Errorf("lookup account: %w", aerr)
		}
		rec, err = f.d.Tokens.Create(ctx, repository.TokenRecord{
			UserID:           userID,
			Username:         username,
			ExternalUsername: idt.Username(),
			ExternalUniqueID: uniqID,
			IDToken:          params.IDToken,
			Scope:            params.Scope,
			Resource:         params.Resource,
			AccessToken:      params.AccessToken,
			RefreshToken:     params.RefreshToken,
			Expiry:           params.Expiry,
			TimeCreated:      now,
			TimeModified:     now,
		})
		if err != nil {
			f.d.Metrics.Exchange(metrics.ResultError, elapsed)
			return false, nil, fmt.Errorf("create token: %w", err)
		}
		log.Debug("token created", logger.TokenID(rec.ID), logger.UserID(userID))

	default:
		f.d.Metrics.Exchange(metrics.ResultError, elapsed)
		return false, nil, fmt.Errorf("lookup token by external id: %w", err)
	}

	f.d.Metrics.Exchange(metrics.ResultSuccess, elapsed)
	return true, rec, nil
}

func recoverErr(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("loginflow: panic: %v", r)
	}
}
