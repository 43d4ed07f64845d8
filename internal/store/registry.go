// Package store provee el registry de backends y los adapters de dominio
// (tokens, cuentas, mapeos legacy, config de plugins) sobre core.Store.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dropDatabas3/classlink/internal/store/core"
)

// Adapter representa un backend capaz de abrir un core.Store.
type Adapter interface {
	// Name retorna el nombre del adapter (ej: "postgres", "sqlite", "memory").
	Name() string

	// Connect abre el store.
	Connect(ctx context.Context, cfg AdapterConfig) (core.Store, error)
}

// AdapterConfig configuración para conectar a un almacenamiento.
type AdapterConfig struct {
	// Name del adapter: "postgres", "sqlite", "memory"
	Name string

	// DSN connection string (vacío para memory)
	DSN string

	// Pool settings (solo postgres)
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
	aliases    = map[string]string{
		"pg":         "postgres",
		"postgresql": "postgres",
		"sqlite3":    "sqlite",
		"mem":        "memory",
	}
)

// RegisterAdapter registra un adapter en el registry global.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// CanonicalName normaliza el nombre de driver (alias incluidos).
func CanonicalName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if c, ok := aliases[n]; ok {
		return c
	}
	return n
}

// GetAdapter obtiene un adapter por nombre o alias.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[CanonicalName(name)]
	return a, ok
}

// ListAdapters retorna los nombres de todos los adapters registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre un store usando el adapter especificado en la config.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (core.Store, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered", cfg.Name)
	}
	return a.Connect(ctx, cfg)
}
