// Package memory implementa core.Store en memoria. Lo usan los tests y el
// modo "memory" del servicio (sin persistencia).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/dropDatabas3/classlink/internal/store/core"
)

// PageSize es el tamaño de página de Each.
const PageSize = 100

type table struct {
	cols   map[string]core.Column
	order  []string
	rows   []core.Record // ordenadas por id
	nextID int64
}

// Store es un core.Store en memoria, seguro para uso concurrente.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

var _ core.Store = (*Store)(nil)

// New crea un store vacío (sin tablas).
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) Driver() string                 { return "memory" }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }

func (s *Store) table(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownTable, name)
	}
	return t, nil
}

func (t *table) checkColumns(name string, m map[string]any) error {
	for c := range m {
		if c == "id" {
			continue
		}
		if _, ok := t.cols[c]; !ok {
			return fmt.Errorf("%w: %s.%s", core.ErrUnknownColumn, name, c)
		}
	}
	return nil
}

func (t *table) match(r core.Record, where core.Conditions) bool {
	for c, want := range where {
		if !equal(r[c], want) {
			return false
		}
	}
	return true
}

func (t *table) find(id int64) int {
	i := sort.Search(len(t.rows), func(i int) bool { return t.rows[i].ID() >= id })
	if i < len(t.rows) && t.rows[i].ID() == id {
		return i
	}
	return -1
}

// equal compara valores ya normalizados. Un número y su representación
// decimal como string se consideran iguales (como hace SQL al comparar).
func equal(a, b any) bool {
	a, b = core.NormalizeValue(a), core.NormalizeValue(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// ─── DB ───

func (s *Store) GetRecord(ctx context.Context, name string, where core.Conditions) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	if err := t.checkColumns(name, where); err != nil {
		return nil, err
	}
	for _, r := range t.rows {
		if t.match(r, where) {
			return r.Clone(), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetRecords(ctx context.Context, name string, where core.Conditions) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	if err := t.checkColumns(name, where); err != nil {
		return nil, err
	}
	var out []core.Record
	for _, r := range t.rows {
		if t.match(r, where) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *Store) InsertRecord(ctx context.Context, name string, rec core.Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return 0, err
	}
	if err := t.checkColumns(name, rec); err != nil {
		return 0, err
	}
	t.nextID++
	row := core.Record{"id": t.nextID}
	for _, c := range t.order {
		if v, ok := rec[c]; ok {
			row[c] = core.NormalizeValue(v)
		} else {
			row[c] = t.cols[c].ZeroValue()
		}
	}
	t.rows = append(t.rows, row)
	return t.nextID, nil
}

func (s *Store) UpdateRecord(ctx context.Context, name string, rec core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := rec.ID()
	if id <= 0 {
		return fmt.Errorf("%w: update without id", core.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return err
	}
	if err := t.checkColumns(name, rec); err != nil {
		return err
	}
	i := t.find(id)
	if i < 0 {
		return core.ErrNotFound
	}
	for c, v := range rec {
		if c == "id" {
			continue
		}
		t.rows[i][c] = core.NormalizeValue(v)
	}
	return nil
}

func (s *Store) Each(ctx context.Context, name string, where core.Conditions, fn func(core.Record) error) error {
	var last int64
	for {
		page, err := s.page(ctx, name, where, last)
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

func (s *Store) page(ctx context.Context, name string, where core.Conditions, after int64) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	if err := t.checkColumns(name, where); err != nil {
		return nil, err
	}
	out := make([]core.Record, 0, PageSize)
	for _, r := range t.rows {
		if r.ID() <= after || !t.match(r, where) {
			continue
		}
		out = append(out, r.Clone())
		if len(out) == PageSize {
			break
		}
	}
	return out, nil
}

// ─── Schema ───

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[name]
	return ok, ctx.Err()
}

func (s *Store) ColumnExists(ctx context.Context, name, column string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(name)
	if err != nil {
		return false, err
	}
	if column == "id" {
		return true, nil
	}
	_, ok := t.cols[column]
	return ok, ctx.Err()
}

func (s *Store) CreateTable(ctx context.Context, def core.Table) error {
	if err := core.CheckIdents(def.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[def.Name]; ok {
		return fmt.Errorf("%w: table %s exists", core.ErrConflict, def.Name)
	}
	t := &table{cols: make(map[string]core.Column, len(def.Columns))}
	for _, c := range def.Columns {
		if err := core.CheckIdents(c.Name); err != nil {
			return err
		}
		t.cols[c.Name] = c
		t.order = append(t.order, c.Name)
	}
	s.tables[def.Name] = t
	return ctx.Err()
}

func (s *Store) AddColumn(ctx context.Context, name string, col core.Column) error {
	if err := core.CheckIdents(col.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(name)
	if err != nil {
		return err
	}
	if _, ok := t.cols[col.Name]; ok {
		return fmt.Errorf("%w: column %s.%s exists", core.ErrConflict, name, col.Name)
	}
	t.cols[col.Name] = col
	t.order = append(t.order, col.Name)
	for _, r := range t.rows {
		r[col.Name] = col.ZeroValue()
	}
	return ctx.Err()
}

func (s *Store) ChangeColumnType(ctx context.Context, name string, col core.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(name)
	if err != nil {
		return err
	}
	if _, ok := t.cols[col.Name]; !ok {
		return fmt.Errorf("%w: %s.%s", core.ErrUnknownColumn, name, col.Name)
	}
	t.cols[col.Name] = col
	for _, r := range t.rows {
		v := r[col.Name]
		switch {
		case v == nil && col.NotNull:
			r[col.Name] = col.ZeroValue()
		case col.Type == core.TypeChar && col.Length > 0:
			if str, ok := v.(string); ok && utf8.RuneCountInString(str) > col.Length {
				r[col.Name] = string([]rune(str)[:col.Length])
			}
		}
	}
	return ctx.Err()
}

func (s *Store) ColumnDef(ctx context.Context, name, column string) (core.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(name)
	if err != nil {
		return core.Column{}, err
	}
	c, ok := t.cols[column]
	if !ok {
		return core.Column{}, fmt.Errorf("%w: %s.%s", core.ErrUnknownColumn, name, column)
	}
	return c, ctx.Err()
}
