// Package core define el record store genérico sobre el que se montan los
// adapters de dominio (tokens, cuentas, mapeos legacy, config del plugin) y
// el runner de upgrade.
//
// Un registro es un map columna→valor; las búsquedas son por igualdad exacta
// sobre columnas. Los ids son int64 asignados por el backend.
package core

import "context"

// Record es una fila. La columna "id" siempre está presente en lecturas.
type Record map[string]any

// Conditions es un conjunto de predicados columna = valor unidos por AND.
// Un valor nil se traduce a IS NULL.
type Conditions map[string]any

// DB es el acceso a registros por tabla.
type DB interface {
	// GetRecord retorna el primer registro (por id) que cumple where.
	// Retorna ErrNotFound si ninguno cumple.
	GetRecord(ctx context.Context, table string, where Conditions) (Record, error)

	// GetRecords retorna todos los registros que cumplen where, ordenados por id.
	GetRecords(ctx context.Context, table string, where Conditions) ([]Record, error)

	// InsertRecord inserta rec (sin id) y retorna el id asignado.
	InsertRecord(ctx context.Context, table string, rec Record) (int64, error)

	// UpdateRecord actualiza las columnas presentes en rec del registro rec["id"].
	// Retorna ErrNotFound si el id no existe.
	UpdateRecord(ctx context.Context, table string, rec Record) error

	// Each itera los registros que cumplen where en orden de id, en páginas.
	// fn puede escribir en la misma tabla: no hay cursor abierto durante fn.
	// Si fn retorna error la iteración se corta y el error se propaga.
	Each(ctx context.Context, table string, where Conditions, fn func(Record) error) error
}

// Schema son las operaciones estructurales que necesita el runner de upgrade.
type Schema interface {
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)

	// ColumnDef retorna la definición actual de la columna.
	// Retorna ErrUnknownColumn si no existe.
	ColumnDef(ctx context.Context, table, column string) (Column, error)

	// CreateTable crea la tabla con una columna id autoincremental implícita.
	CreateTable(ctx context.Context, t Table) error

	// AddColumn agrega la columna; las filas existentes toman col.Default.
	AddColumn(ctx context.Context, table string, col Column) error

	// ChangeColumnType cambia tipo/largo/nulabilidad de una columna existente.
	ChangeColumnType(ctx context.Context, table string, col Column) error
}

// Store es un backend completo.
type Store interface {
	DB
	Schema

	// Driver identifica el backend ("memory", "postgres", "sqlite").
	Driver() string
	Ping(ctx context.Context) error
	Close() error
}
