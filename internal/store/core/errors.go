package core

import "github.com/dropDatabas3/classlink/internal/domain/repository"

// Los backends devuelven los mismos sentinels que el dominio, así los
// adapters pueden propagar sin traducir.
var (
	ErrNotFound      = repository.ErrNotFound
	ErrConflict      = repository.ErrConflict
	ErrInvalidInput  = repository.ErrInvalidInput
	ErrUnknownTable  = repository.ErrUnknownTable
	ErrUnknownColumn = repository.ErrUnknownColumn
)
