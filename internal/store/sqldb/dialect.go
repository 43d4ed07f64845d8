package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dropDatabas3/classlink/internal/store/core"
)

// Dialect encapsula las diferencias de SQL entre motores.
type Dialect interface {
	Name() string
	Placeholder(n int) string // n empieza en 1
	IDColumn() string
	ColumnType(c core.Column) string

	TableExists(ctx context.Context, db *sql.DB, table string) (bool, error)
	ColumnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error)
	// ColumnDef lee tipo, largo y nulabilidad; el DEFAULT no se reporta.
	ColumnDef(ctx context.Context, db *sql.DB, table, column string) (core.Column, bool, error)

	// Insert ejecuta el INSERT ya armado y retorna el id nuevo.
	Insert(ctx context.Context, db *sql.DB, query string, args []any) (int64, error)

	ChangeColumnType(ctx context.Context, db *sql.DB, table string, c core.Column) error
}

func quote(ident string) string { return `"` + ident + `"` }

// literal renderiza un valor de DEFAULT. Solo acepta lo que producen los
// Column de este paquete (enteros y strings).
func literal(v any) string {
	switch x := core.NormalizeValue(v).(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(x), "'", "''") + "'"
	}
}

// columnDDL arma "nombre TIPO [NOT NULL] [DEFAULT x]". Las columnas NOT NULL
// siempre llevan DEFAULT para que los INSERT parciales y ADD COLUMN sobre
// tablas con filas funcionen igual en todos los motores.
func columnDDL(d Dialect, c core.Column) string {
	var b strings.Builder
	b.WriteString(quote(c.Name))
	b.WriteByte(' ')
	b.WriteString(d.ColumnType(c))
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if zv := c.ZeroValue(); zv != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(literal(zv))
	}
	return b.String()
}

// ─── Postgres ───

type postgres struct{}

func (postgres) Name() string             { return "postgres" }
func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgres) IDColumn() string         { return `"id" BIGSERIAL PRIMARY KEY` }
func (postgres) ColumnType(c core.Column) string {
	switch c.Type {
	case core.TypeChar:
		n := c.Length
		if n <= 0 {
			n = 255
		}
		return "VARCHAR(" + strconv.Itoa(n) + ")"
	case core.TypeInteger:
		return "BIGINT"
	default:
		return "TEXT"
	}
}

func (postgres) TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1`, table).Scan(&n)
	return n > 0, err
}

func (postgres) ColumnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2`,
		table, column).Scan(&n)
	return n > 0, err
}

func (postgres) ColumnDef(ctx context.Context, db *sql.DB, table, column string) (core.Column, bool, error) {
	var (
		dataType string
		length   sql.NullInt64
		nullable string
	)
	err := db.QueryRowContext(ctx, `
		SELECT data_type, character_maximum_length, is_nullable FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2`,
		table, column).Scan(&dataType, &length, &nullable)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Column{}, false, nil
	}
	if err != nil {
		return core.Column{}, false, err
	}
	c := core.Column{Name: column, NotNull: nullable == "NO"}
	switch dataType {
	case "character varying", "character":
		c.Type, c.Length = core.TypeChar, int(length.Int64)
	case "bigint", "integer", "smallint":
		c.Type = core.TypeInteger
	default:
		c.Type = core.TypeText
	}
	return c, true, nil
}

func (postgres) Insert(ctx context.Context, db *sql.DB, query string, args []any) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, query+` RETURNING "id"`, args...).Scan(&id)
	return id, err
}

func (p postgres) ChangeColumnType(ctx context.Context, db *sql.DB, table string, c core.Column) error {
	typ := p.ColumnType(c)
	using := quote(c.Name)
	if c.Type == core.TypeChar {
		using = fmt.Sprintf("substr(%s, 1, %d)", quote(c.Name), max(c.Length, 1))
	}
	stmts := []string{
		fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s`, quote(table), quote(c.Name), typ, using),
	}
	if zv := c.ZeroValue(); zv != nil {
		stmts = append(stmts,
			fmt.Sprintf(`UPDATE %s SET %s = %s WHERE %s IS NULL`, quote(table), quote(c.Name), literal(zv), quote(c.Name)),
			fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s`, quote(table), quote(c.Name), literal(zv)))
	}
	if c.NotNull {
		stmts = append(stmts, fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN %s SET NOT NULL`, quote(table), quote(c.Name)))
	} else {
		stmts = append(stmts, fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL`, quote(table), quote(c.Name)))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ─── SQLite ───

type sqlite struct{}

func (sqlite) Name() string           { return "sqlite" }
func (sqlite) Placeholder(int) string { return "?" }
func (sqlite) IDColumn() string       { return `"id" INTEGER PRIMARY KEY AUTOINCREMENT` }
func (sqlite) ColumnType(c core.Column) string {
	switch c.Type {
	case core.TypeChar:
		n := c.Length
		if n <= 0 {
			n = 255
		}
		return "VARCHAR(" + strconv.Itoa(n) + ")"
	case core.TypeInteger:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (sqlite) TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	return n > 0, err
}

func (sqlite) ColumnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	return n > 0, err
}

func (sqlite) Insert(ctx context.Context, db *sql.DB, query string, args []any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (sqlite) ColumnDef(ctx context.Context, db *sql.DB, table, column string) (core.Column, bool, error) {
	var (
		decl    string
		notNull int
	)
	err := db.QueryRowContext(ctx,
		`SELECT type, "notnull" FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&decl, &notNull)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Column{}, false, nil
	}
	if err != nil {
		return core.Column{}, false, err
	}
	c := core.Column{Name: column, NotNull: notNull != 0}
	c.Type, c.Length = parseDeclType(decl)
	return c, true, nil
}

// parseDeclType lleva el tipo declarado en SQLite ("VARCHAR(255)", "TEXT",
// "INTEGER") al tipo lógico.
func parseDeclType(decl string) (core.ColumnType, int) {
	d := strings.ToUpper(strings.TrimSpace(decl))
	switch {
	case strings.Contains(d, "CHAR"):
		var n int
		if i := strings.IndexByte(d, '('); i >= 0 {
			if j := strings.IndexByte(d[i:], ')'); j > 0 {
				n, _ = strconv.Atoi(strings.TrimSpace(d[i+1 : i+j]))
			}
		}
		return core.TypeChar, n
	case strings.Contains(d, "INT"):
		return core.TypeInteger, 0
	default:
		return core.TypeText, 0
	}
}

type sqliteColumn struct {
	name    string
	decl    string
	notNull bool
	dflt    sql.NullString
}

func (c sqliteColumn) ddl() string {
	var b strings.Builder
	b.WriteString(quote(c.name))
	b.WriteByte(' ')
	b.WriteString(c.decl)
	if c.notNull {
		b.WriteString(" NOT NULL")
	}
	if c.dflt.Valid {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.dflt.String)
	}
	return b.String()
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]sqliteColumn, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sqliteColumn
	for rows.Next() {
		var (
			c  sqliteColumn
			nn int
		)
		if err := rows.Scan(&c.name, &c.decl, &nn, &c.dflt); err != nil {
			return nil, err
		}
		c.notNull = nn != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChangeColumnType reconstruye la tabla: SQLite no tiene ALTER COLUMN. Se
// crea una copia con la columna nueva, se copian las filas (truncando por
// caracteres si la columna se achica) y se reemplaza la original.
func (d sqlite) ChangeColumnType(ctx context.Context, db *sql.DB, table string, c core.Column) error {
	cols, err := sqliteColumns(ctx, db, table)
	if err != nil {
		return err
	}
	tmp := table + "_rebuild"
	defs := []string{d.IDColumn()}
	names := []string{quote("id")}
	sel := []string{quote("id")}
	for _, col := range cols {
		if col.name == "id" {
			continue
		}
		names = append(names, quote(col.name))
		if col.name != c.Name {
			defs = append(defs, col.ddl())
			sel = append(sel, quote(col.name))
			continue
		}
		defs = append(defs, columnDDL(d, c))
		expr := quote(c.Name)
		if c.Type == core.TypeChar {
			expr = fmt.Sprintf("substr(%s, 1, %d)", quote(c.Name), max(c.Length, 1))
		}
		if zv := c.ZeroValue(); zv != nil {
			expr = fmt.Sprintf("COALESCE(%s, %s)", expr, literal(zv))
		}
		sel = append(sel, expr)
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quote(tmp), strings.Join(defs, ",\n\t")),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			quote(tmp), strings.Join(names, ", "), strings.Join(sel, ", "), quote(table)),
		fmt.Sprintf("DROP TABLE %s", quote(table)),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(tmp), quote(table)),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}
