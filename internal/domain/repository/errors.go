package repository

import "errors"

var (
	// ErrNotFound indica que el registro solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un duplicado (ej: classlinkuniqid ya poblado en otro registro).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownTable indica que la tabla no existe en el store.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn indica que el registro referencia una columna inexistente.
	ErrUnknownColumn = errors.New("unknown column")
)
