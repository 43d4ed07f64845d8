package store

import (
	"context"
	"errors"

	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/store/core"
)

// PluginConfigStore lee y escribe config_plugins (plugin, name, value).
type PluginConfigStore struct {
	DB core.DB
}

func NewPluginConfigStore(db core.DB) *PluginConfigStore {
	return &PluginConfigStore{DB: db}
}

// Get retorna el valor; ok=false si no hay fila.
func (s *PluginConfigStore) Get(ctx context.Context, plugin, name string) (string, bool, error) {
	rec, err := s.DB.GetRecord(ctx, TablePlugins, core.Conditions{"plugin": plugin, "name": name})
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.String("value"), true, nil
}

// Set crea o actualiza la fila.
func (s *PluginConfigStore) Set(ctx context.Context, plugin, name, value string) error {
	rec, err := s.DB.GetRecord(ctx, TablePlugins, core.Conditions{"plugin": plugin, "name": name})
	switch {
	case err == nil:
		return s.DB.UpdateRecord(ctx, TablePlugins, core.Record{"id": rec.ID(), "value": value})
	case errors.Is(err, repository.ErrNotFound):
		_, err = s.DB.InsertRecord(ctx, TablePlugins, core.Record{"plugin": plugin, "name": name, "value": value})
		return err
	default:
		return err
	}
}

// All retorna name→value de un plugin.
func (s *PluginConfigStore) All(ctx context.Context, plugin string) (map[string]string, error) {
	recs, err := s.DB.GetRecords(ctx, TablePlugins, core.Conditions{"plugin": plugin})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(recs))
	for _, r := range recs {
		out[r.String("name")] = r.String("value")
	}
	return out, nil
}
