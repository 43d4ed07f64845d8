package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ColumnType es el tipo lógico de una columna.
type ColumnType string

const (
	TypeChar    ColumnType = "char"    // VARCHAR(Length)
	TypeText    ColumnType = "text"    // sin límite
	TypeInteger ColumnType = "integer" // BIGINT; también timestamps unix y booleanos 0/1
)

// Column describe una columna para CreateTable/AddColumn/ChangeColumnType.
type Column struct {
	Name    string
	Type    ColumnType
	Length  int // solo TypeChar
	NotNull bool
	Default any // nil = sin default
}

// ZeroValue es el valor que toman las filas existentes al agregar la columna.
func (c Column) ZeroValue() any {
	if c.Default != nil {
		return NormalizeValue(c.Default)
	}
	if !c.NotNull {
		return nil
	}
	if c.Type == TypeInteger {
		return int64(0)
	}
	return ""
}

// Table describe una tabla. La columna id es implícita.
type Table struct {
	Name    string
	Columns []Column
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidIdent reporta si name es un identificador SQL aceptable (tabla o columna).
// Los backends SQL interpolan identificadores, así que todo pasa por acá.
func ValidIdent(name string) bool {
	return identRe.MatchString(name)
}

// CheckIdents valida una lista de identificadores.
func CheckIdents(names ...string) error {
	for _, n := range names {
		if !ValidIdent(n) {
			return fmt.Errorf("%w: identifier %q", ErrInvalidInput, n)
		}
	}
	return nil
}

// NormalizeValue lleva un valor Go a la forma que persisten todos los backends:
// bool → 0/1, time.Time → unix (cero → 0), enteros → int64, []byte → string.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		if x.IsZero() {
			return int64(0)
		}
		return x.Unix()
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint32:
		return int64(x)
	case uint16:
		return int64(x)
	case uint8:
		return int64(x)
	case []byte:
		return string(x)
	default:
		return v
	}
}

// String retorna la columna como string ("" si no existe o es NULL).
func (r Record) String(col string) string {
	switch x := r[col].(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// Int64 retorna la columna como int64 (0 si no existe, es NULL o no es numérica).
func (r Record) Int64(col string) int64 {
	switch x := r[col].(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
		return n
	default:
		return 0
	}
}

// Bool interpreta enteros 0/1.
func (r Record) Bool(col string) bool {
	return r.Int64(col) != 0
}

// Time interpreta un unix timestamp; 0 → time.Time{}.
func (r Record) Time(col string) time.Time {
	n := r.Int64(col)
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

// ID es un atajo para r.Int64("id").
func (r Record) ID() int64 {
	return r.Int64("id")
}

// Clone retorna una copia superficial.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
