// Package sqldb implementa core.Store sobre database/sql, con dialectos para
// Postgres (pgx) y SQLite (modernc).
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dropDatabas3/classlink/internal/store/core"
)

// PageSize es el tamaño de página de Each.
const PageSize = 200

// PoolConfig ajusta el pool de conexiones de Postgres.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

// Store es un core.Store respaldado por *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	onClose func()
}

var _ core.Store = (*Store)(nil)

// OpenPostgres abre un pgxpool y lo expone como *sql.DB.
func OpenPostgres(ctx context.Context, dsn string, pc PoolConfig) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgxpool config: %w", err)
	}
	if pc.MaxOpenConns > 0 {
		cfg.MaxConns = int32(pc.MaxOpenConns)
	}
	// pgxpool no tiene MaxIdle; se mapea a MinConns.
	if pc.MaxIdleConns > 0 {
		cfg.MinConns = int32(pc.MaxIdleConns)
	}
	if pc.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(pc.ConnMaxLifetime); err == nil {
			cfg.MaxConnLifetime = d
			cfg.MaxConnIdleTime = d
		}
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxpool ping: %w", err)
	}
	return &Store{
		db:      stdlib.OpenDBFromPool(pool),
		dialect: postgres{},
		onClose: pool.Close,
	}, nil
}

// OpenSQLite abre una base SQLite. ":memory:" sirve para tests: se fija una
// sola conexión para que todas las consultas vean la misma base.
func OpenSQLite(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return &Store{db: db, dialect: sqlite{}}, nil
}

// DB expone el *sql.DB subyacente.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Driver() string                 { return s.dialect.Name() }
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close cierra la base (idempotente en la práctica: *sql.DB tolera doble Close).
func (s *Store) Close() error {
	err := s.db.Close()
	if s.onClose != nil {
		s.onClose()
		s.onClose = nil
	}
	return err
}

// where arma la cláusula WHERE con columnas en orden estable.
// next es el primer número de placeholder a usar.
func (s *Store) where(cond core.Conditions, next int) (string, []any, error) {
	if len(cond) == 0 {
		return "", nil, nil
	}
	cols := make([]string, 0, len(cond))
	for c := range cond {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := core.CheckIdents(cols...); err != nil {
		return "", nil, err
	}

	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		v := core.NormalizeValue(cond[c])
		if v == nil {
			parts = append(parts, quote(c)+" IS NULL")
			continue
		}
		parts = append(parts, quote(c)+" = "+s.dialect.Placeholder(next))
		args = append(args, v)
		next++
	}
	return strings.Join(parts, " AND "), args, nil
}

func (s *Store) query(ctx context.Context, table string, cond core.Conditions, after int64, limit int) ([]core.Record, error) {
	if err := core.CheckIdents(table); err != nil {
		return nil, err
	}
	w, args, err := s.where(cond, 1)
	if err != nil {
		return nil, err
	}
	var clauses []string
	if w != "" {
		clauses = append(clauses, w)
	}
	if after > 0 {
		clauses = append(clauses, `"id" > `+s.dialect.Placeholder(len(args)+1))
		args = append(args, after)
	}

	q := "SELECT * FROM " + quote(table)
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += ` ORDER BY "id"`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]core.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []core.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(core.Record, len(cols))
		for i, c := range cols {
			rec[c] = core.NormalizeValue(vals[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ─── DB ───

func (s *Store) GetRecord(ctx context.Context, table string, where core.Conditions) (core.Record, error) {
	recs, err := s.query(ctx, table, where, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, core.ErrNotFound
	}
	return recs[0], nil
}

func (s *Store) GetRecords(ctx context.Context, table string, where core.Conditions) ([]core.Record, error) {
	return s.query(ctx, table, where, 0, 0)
}

func (s *Store) InsertRecord(ctx context.Context, table string, rec core.Record) (int64, error) {
	if err := core.CheckIdents(table); err != nil {
		return 0, err
	}
	cols := make([]string, 0, len(rec))
	for c := range rec {
		if c != "id" {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	if err := core.CheckIdents(cols...); err != nil {
		return 0, err
	}

	var q string
	args := make([]any, 0, len(cols))
	if len(cols) == 0 {
		q = "INSERT INTO " + quote(table) + " DEFAULT VALUES"
	} else {
		names := make([]string, len(cols))
		ph := make([]string, len(cols))
		for i, c := range cols {
			names[i] = quote(c)
			ph[i] = s.dialect.Placeholder(i + 1)
			args = append(args, core.NormalizeValue(rec[c]))
		}
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quote(table), strings.Join(names, ", "), strings.Join(ph, ", "))
	}
	id, err := s.dialect.Insert(ctx, s.db, q, args)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

func (s *Store) UpdateRecord(ctx context.Context, table string, rec core.Record) error {
	if err := core.CheckIdents(table); err != nil {
		return err
	}
	id := rec.ID()
	if id <= 0 {
		return fmt.Errorf("%w: update without id", core.ErrInvalidInput)
	}
	cols := make([]string, 0, len(rec))
	for c := range rec {
		if c != "id" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		_, err := s.GetRecord(ctx, table, core.Conditions{"id": id})
		return err
	}
	sort.Strings(cols)
	if err := core.CheckIdents(cols...); err != nil {
		return err
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = quote(c) + " = " + s.dialect.Placeholder(i+1)
		args = append(args, core.NormalizeValue(rec[c]))
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE "id" = %s`,
		quote(table), strings.Join(sets, ", "), s.dialect.Placeholder(len(args)))

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Each lee por páginas (keyset sobre id) y cierra el cursor antes de invocar
// fn, así fn puede escribir en la misma tabla aun con una sola conexión.
func (s *Store) Each(ctx context.Context, table string, where core.Conditions, fn func(core.Record) error) error {
	var last int64
	for {
		page, err := s.query(ctx, table, where, last, PageSize)
		if err != nil {
			return err
		}
		for _, r := range page {
			if err := fn(r); err != nil {
				return err
			}
			last = r.ID()
		}
		if len(page) < PageSize {
			return nil
		}
	}
}

// ─── Schema ───

func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	return s.dialect.TableExists(ctx, s.db, table)
}

func (s *Store) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	return s.dialect.ColumnExists(ctx, s.db, table, column)
}

func (s *Store) ColumnDef(ctx context.Context, table, column string) (core.Column, error) {
	if err := core.CheckIdents(table, column); err != nil {
		return core.Column{}, err
	}
	c, ok, err := s.dialect.ColumnDef(ctx, s.db, table, column)
	if err != nil {
		return core.Column{}, fmt.Errorf("column %s.%s: %w", table, column, err)
	}
	if !ok {
		return core.Column{}, fmt.Errorf("%w: %s.%s", core.ErrUnknownColumn, table, column)
	}
	return c, nil
}

func (s *Store) CreateTable(ctx context.Context, t core.Table) error {
	if err := core.CheckIdents(t.Name); err != nil {
		return err
	}
	defs := []string{s.dialect.IDColumn()}
	for _, c := range t.Columns {
		if err := core.CheckIdents(c.Name); err != nil {
			return err
		}
		defs = append(defs, columnDDL(s.dialect, c))
	}
	q := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quote(t.Name), strings.Join(defs, ",\n\t"))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}
	return nil
}

func (s *Store) AddColumn(ctx context.Context, table string, c core.Column) error {
	if err := core.CheckIdents(table, c.Name); err != nil {
		return err
	}
	q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(table), columnDDL(s.dialect, c))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, c.Name, err)
	}
	return nil
}

func (s *Store) ChangeColumnType(ctx context.Context, table string, c core.Column) error {
	if err := core.CheckIdents(table, c.Name); err != nil {
		return err
	}
	ok, err := s.ColumnExists(ctx, table, c.Name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s.%s", core.ErrUnknownColumn, table, c.Name)
	}
	if err := s.dialect.ChangeColumnType(ctx, s.db, table, c); err != nil {
		return fmt.Errorf("change column %s.%s: %w", table, c.Name, err)
	}
	return nil
}
