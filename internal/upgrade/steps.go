package upgrade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
	"github.com/dropDatabas3/classlink/internal/store"
	"github.com/dropDatabas3/classlink/internal/store/core"
)

// Endpoints viejos de Azure AD y sus reemplazos.
const (
	oldAuthEndpoint  = "https://login.windows.net/common/oauth2/authorize"
	newAuthEndpoint  = "https://login.microsoftonline.com/common/oauth2/authorize"
	oldTokenEndpoint = "https://login.windows.net/common/oauth2/token"
	newTokenEndpoint = "https://login.microsoftonline.com/common/oauth2/token"
)

// Steps es la lista de pasos del plugin, en orden.
func Steps() []Step {
	return []Step{
		{MustParseVersion("2014111703"), "token scope char(255)", scopeToChar},
		{MustParseVersion("2015012702"), "state additionaldata", addStateAdditionalData},
		{MustParseVersion("2015012703"), "token classlinkusername", addClasslinkUsername},
		{MustParseVersion("2015012704"), "backfill classlink usernames", backfillClasslinkUsernames},
		{MustParseVersion("2015012707"), "prevlogin table", createPrevLogin},
		{MustParseVersion("2015012710"), "token scope text", scopeToText},
		{MustParseVersion("2015111904.01"), "normalize token usernames", normalizeTokenUsernames},
		{MustParseVersion("2015111905.01"), "reseat endpoints", reseatEndpoints},
		{MustParseVersion("2018051700.01"), "token userid", addTokenUserID},
	}
}

func scopeToChar(ctx context.Context, env *Env) error {
	return widenColumn(ctx, env, store.TableToken,
		core.Column{Name: "scope", Type: core.TypeChar, Length: 255, NotNull: true})
}

func scopeToText(ctx context.Context, env *Env) error {
	return widenColumn(ctx, env, store.TableToken,
		core.Column{Name: "scope", Type: core.TypeText})
}

// widenColumn cambia el tipo solo si la columna actual es más angosta que
// col. Una columna TEXT nunca se vuelve a achicar.
func widenColumn(ctx context.Context, env *Env, table string, col core.Column) error {
	cur, err := env.Store.ColumnDef(ctx, table, col.Name)
	if err != nil {
		return err
	}
	if wideEnough(cur, col) {
		env.Log.Debug("column already wide enough", logger.Table(table), logger.String("column", col.Name),
			logger.String("type", string(cur.Type)))
		return nil
	}
	return env.Store.ChangeColumnType(ctx, table, col)
}

func wideEnough(cur, want core.Column) bool {
	if cur.Type == core.TypeText {
		return true
	}
	return cur.Type == core.TypeChar && want.Type == core.TypeChar && cur.Length >= want.Length
}

// addColumnIfMissing reporta si agregó la columna.
func addColumnIfMissing(ctx context.Context, env *Env, table string, col core.Column) (bool, error) {
	ok, err := env.Store.ColumnExists(ctx, table, col.Name)
	if err != nil {
		return false, err
	}
	if ok {
		env.Log.Debug("column already present", logger.Table(table), logger.String("column", col.Name))
		return false, nil
	}
	if err := env.Store.AddColumn(ctx, table, col); err != nil {
		return false, err
	}
	return true, nil
}

func addStateAdditionalData(ctx context.Context, env *Env) error {
	_, err := addColumnIfMissing(ctx, env, store.TableState,
		core.Column{Name: "additionaldata", Type: core.TypeText})
	return err
}

func addClasslinkUsername(ctx context.Context, env *Env) error {
	_, err := addColumnIfMissing(ctx, env, store.TableToken,
		core.Column{Name: "classlinkusername", Type: core.TypeChar, Length: 255, NotNull: true, Default: ""})
	return err
}

// backfillClasslinkUsernames completa classlinkusername desde el id_token de
// cada fila cuyo username corresponde a una cuenta classlink activa. Las
// cuentas creadas con el uniqid como username se renombran al upn/sub.
// Filas sin id_token o con id_token ilegible se saltean.
func backfillClasslinkUsernames(ctx context.Context, env *Env) error {
	var filled, renamed, skipped int
	err := env.Store.Each(ctx, store.TableToken, nil, func(row core.Record) error {
		tok := store.TokenFromRecord(row)
		if tok.IsLegacy() {
			return nil
		}
		users, err := env.Store.GetRecords(ctx, store.TableUsers, core.Conditions{
			"username": tok.Username,
			"auth":     repository.AuthMethod,
			"deleted":  false,
		})
		if err != nil {
			return fmt.Errorf("users for token %d: %w", tok.ID, err)
		}
		if len(users) == 0 {
			return nil
		}

		decoded, err := env.Decoder.Decode(ctx, strings.TrimSpace(tok.IDToken))
		if err != nil {
			skipped++
			env.Log.Debug("skipping token with undecodable id token", logger.TokenID(tok.ID), logger.Err(err))
			return nil
		}
		claimName := decoded.Username()
		if claimName == "" {
			skipped++
			return nil
		}

		extName := tok.ExternalUsername
		for _, u := range users {
			if extName == "" {
				if err := env.Store.UpdateRecord(ctx, store.TableToken, core.Record{
					"id":                tok.ID,
					"classlinkusername": claimName,
				}); err != nil {
					return fmt.Errorf("fill classlinkusername for token %d: %w", tok.ID, err)
				}
				extName = claimName
				filled++
			}

			username := u.String("username")
			if username != strings.ToLower(tok.ExternalUniqueID) || username == claimName {
				continue
			}
			if err := env.Accounts.Rename(ctx, u.ID(), claimName); err != nil {
				return fmt.Errorf("rename user %d: %w", u.ID(), err)
			}
			if err := env.Store.UpdateRecord(ctx, store.TableToken, core.Record{
				"id":       tok.ID,
				"username": claimName,
			}); err != nil {
				return fmt.Errorf("rename token %d: %w", tok.ID, err)
			}
			renamed++
			env.Log.Info("account renamed to provider username",
				logger.UserID(u.ID()), logger.Username(claimName))
		}
		return nil
	})
	if err != nil {
		return err
	}
	env.Log.Info("classlink usernames backfilled",
		logger.Int("filled", filled), logger.Int("renamed", renamed), logger.Int("skipped", skipped))
	return nil
}

func createPrevLogin(ctx context.Context, env *Env) error {
	_, err := store.EnsureTables(ctx, env.Store, store.PrevLoginTable())
	return err
}

// normalizeTokenUsernames pasa a lowercase+trim los usernames de la tabla de
// tokens. Solo escribe las filas que cambian.
func normalizeTokenUsernames(ctx context.Context, env *Env) error {
	var changed int
	err := env.Store.Each(ctx, store.TableToken, nil, func(tok core.Record) error {
		cur := tok.String("username")
		norm := repository.NormalizeUsername(cur)
		if norm == cur {
			return nil
		}
		changed++
		return env.Store.UpdateRecord(ctx, store.TableToken, core.Record{
			"id":           tok.ID(),
			"username":     norm,
			"timemodified": env.Now(),
		})
	})
	if err != nil {
		return err
	}
	env.Log.Info("token usernames normalized", logger.Count(changed))
	return nil
}

func reseatEndpoints(ctx context.Context, env *Env) error {
	for _, e := range []struct{ name, old, repl string }{
		{"authendpoint", oldAuthEndpoint, newAuthEndpoint},
		{"tokenendpoint", oldTokenEndpoint, newTokenEndpoint},
	} {
		v, ok, err := env.Plugins.Get(ctx, store.PluginClasslink, e.name)
		if err != nil {
			return err
		}
		if !ok || v != e.old {
			continue
		}
		if err := env.Plugins.Set(ctx, store.PluginClasslink, e.name, e.repl); err != nil {
			return err
		}
		env.Log.Info("endpoint reseated", logger.String("setting", e.name), logger.String("value", e.repl))
	}
	return nil
}

// addTokenUserID agrega userid y, solo si la columna es nueva, la completa
// con el id de la cuenta del mismo username.
func addTokenUserID(ctx context.Context, env *Env) error {
	added, err := addColumnIfMissing(ctx, env, store.TableToken,
		core.Column{Name: "userid", Type: core.TypeInteger, NotNull: true, Default: int64(0)})
	if err != nil || !added {
		return err
	}
	var linked int
	err = env.Store.Each(ctx, store.TableToken, nil, func(tok core.Record) error {
		u, err := env.Store.GetRecord(ctx, store.TableUsers, core.Conditions{"username": tok.String("username")})
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		linked++
		return env.Store.UpdateRecord(ctx, store.TableToken, core.Record{"id": tok.ID(), "userid": u.ID()})
	})
	if err != nil {
		return err
	}
	env.Log.Info("token userids populated", logger.Count(linked))
	return nil
}
