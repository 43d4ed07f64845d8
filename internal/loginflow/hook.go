package loginflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/events"
	"github.com/dropDatabas3/classlink/internal/metrics"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
)

// LoginHook decide si el login sigue, y con qué cuenta.
//
// Orden: mapeo legacy, luego autoappend. Una cuenta existente siempre gana
// sobre la lógica de sufijo y sobre el alta de cuentas.
func (f *ROCreds) LoginHook(ctx context.Context, form *LoginForm) (res Result, err error) {
	defer func() { f.d.Metrics.Login(loginResult(res, err)) }()
	defer recoverErr(&err)

	if form == nil {
		return Result{Continue: true}, nil
	}
	log := f.log(ctx)
	username, password := form.Username, form.Password

	resolved := f.resolver.Resolve(ctx, username)
	if resolved != username {
		ok, _, err := f.exchange(ctx, resolved, password)
		if err != nil {
			return Result{}, err
		}
		if ok {
			acct, found, err := f.account(ctx, resolved)
			if err != nil {
				return Result{}, err
			}
			if found {
				return Result{Continue: true, User: acct}, nil
			}
			log.Info("legacy mapping authenticated but no local account; continuing",
				logger.Username(username), logger.String("resolved", resolved))
		}
	}
	// Desde acá se sigue con el username resuelto, aunque el mapeo no haya
	// terminado en una cuenta.
	username = resolved

	suffix := f.d.Settings.AutoAppend
	if suffix == "" {
		return Result{Continue: true}, nil
	}

	_, found, err := f.account(ctx, username)
	if err != nil {
		return Result{}, err
	}
	if found {
		return Result{Continue: true}, nil
	}

	username += suffix
	ok, tok, err := f.exchange(ctx, username, password)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Continue: false}, nil
	}

	acct, found, err := f.account(ctx, username)
	if err != nil {
		return Result{}, err
	}
	if found {
		return Result{Continue: true, User: acct}, nil
	}

	if f.d.Settings.PreventAccountCreation {
		ev := events.LoginFailed{
			Username:   username,
			Reason:     events.ReasonUnauthorised,
			RemoteAddr: form.RemoteAddr,
			UserAgent:  form.UserAgent,
			SiteURL:    f.d.Settings.SiteURL,
			Time:       f.now(),
		}
		if err := f.events.LoginFailed(ctx, ev); err != nil {
			log.Warn("login failed event not delivered", logger.Err(err))
		}
		log.Warn("unknown user, can not create new accounts",
			logger.Username(username),
			logger.RemoteAddr(form.RemoteAddr),
			logger.UserAgent(form.UserAgent),
			logger.String("site", f.d.Settings.SiteURL),
		)
		return Result{Continue: false}, nil
	}

	acct, err = f.d.Accounts.Create(ctx, repository.CreateAccountInput{
		Username: username,
		Password: password,
		Auth:     repository.AuthMethod,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create account: %w", err)
	}
	f.d.Metrics.AccountCreated()
	log.Info("account created", logger.Username(username), logger.UserID(acct.ID))

	if tok != nil && tok.UserID != acct.ID {
		if err := f.d.Tokens.LinkUser(ctx, tok.ID, acct.ID); err != nil {
			return Result{}, fmt.Errorf("link token to account: %w", err)
		}
	}
	return Result{Continue: true, User: acct}, nil
}

func (f *ROCreds) account(ctx context.Context, username string) (*repository.LocalAccount, bool, error) {
	acct, err := f.d.Accounts.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup account: %w", err)
	}
	return acct, true, nil
}

func loginResult(res Result, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case !res.Continue:
		return metrics.ResultFailure
	case res.User != nil:
		return metrics.ResultSuccess
	default:
		return metrics.ResultContinue
	}
}
