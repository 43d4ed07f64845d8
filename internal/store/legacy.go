package store

import (
	"context"
	"errors"

	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/store/core"
)

// LegacyStore resuelve mapeos de local_o365_objects. Solo consulta si el
// plugin compañero está instalado (tiene versión en config_plugins).
type LegacyStore struct {
	DB       core.DB
	Plugins  *PluginConfigStore
	Accounts repository.AccountRepository
}

var _ repository.LegacyFederationRepository = (*LegacyStore)(nil)

// Installed reporta si local_o365 está instalado.
func (s *LegacyStore) Installed(ctx context.Context) (bool, error) {
	v, ok, err := s.Plugins.Get(ctx, PluginO365, "version")
	if err != nil {
		return false, err
	}
	return ok && v != "", nil
}

func (s *LegacyStore) LookupUsername(ctx context.Context, externalName string) (string, bool, error) {
	if externalName == "" {
		return "", false, nil
	}
	installed, err := s.Installed(ctx)
	if err != nil || !installed {
		return "", false, err
	}

	obj, err := s.DB.GetRecord(ctx, TableO365Object, core.Conditions{
		"o365name": externalName,
		"type":     "user",
	})
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	rec := legacyFromRecord(obj)

	acct, err := s.Accounts.GetByID(ctx, rec.LocalUserID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return acct.Username, true, nil
}

func legacyFromRecord(r core.Record) repository.LegacyFederationRecord {
	return repository.LegacyFederationRecord{
		ID:           r.ID(),
		Type:         r.String("type"),
		ExternalName: r.String("o365name"),
		ObjectID:     r.String("objectid"),
		LocalUserID:  r.Int64("moodleid"),
	}
}
