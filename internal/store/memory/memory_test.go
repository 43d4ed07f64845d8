package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/classlink/internal/store/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.CreateTable(context.Background(), core.Table{
		Name: "things",
		Columns: []core.Column{
			{Name: "name", Type: core.TypeChar, Length: 10, NotNull: true},
			{Name: "n", Type: core.TypeInteger, NotNull: true},
			{Name: "note", Type: core.TypeText},
		},
	}))
	return s
}

func TestInsertGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id1, err := s.InsertRecord(ctx, "things", core.Record{"name": "a", "n": 1})
	require.NoError(t, err)
	id2, err := s.InsertRecord(ctx, "things", core.Record{"name": "b", "n": true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	rec, err := s.GetRecord(ctx, "things", core.Conditions{"name": "b"})
	require.NoError(t, err)
	assert.Equal(t, id2, rec.ID())
	assert.Equal(t, int64(1), rec.Int64("n"))
	assert.Nil(t, rec["note"])

	_, err = s.GetRecord(ctx, "things", core.Conditions{"name": "zzz"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGetRecord_FirstByID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.InsertRecord(ctx, "things", core.Record{"name": "dup", "n": i})
		require.NoError(t, err)
	}
	rec, err := s.GetRecord(ctx, "things", core.Conditions{"name": "dup"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID())

	recs, err := s.GetRecords(ctx, "things", core.Conditions{"name": "dup"})
	require.NoError(t, err)
	require.Len(t, recs, 3)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.InsertRecord(ctx, "things", core.Record{"name": "a"})
	require.NoError(t, err)

	rec, err := s.GetRecord(ctx, "things", nil)
	require.NoError(t, err)
	rec["name"] = "mutated"

	again, err := s.GetRecord(ctx, "things", nil)
	require.NoError(t, err)
	assert.Equal(t, "a", again.String("name"))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	id, err := s.InsertRecord(ctx, "things", core.Record{"name": "a", "n": 1})
	require.NoError(t, err)

	require.NoError(t, s.UpdateRecord(ctx, "things", core.Record{"id": id, "n": 5}))
	rec, err := s.GetRecord(ctx, "things", core.Conditions{"id": id})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Int64("n"))
	assert.Equal(t, "a", rec.String("name"))

	assert.ErrorIs(t, s.UpdateRecord(ctx, "things", core.Record{"id": 99, "n": 1}), core.ErrNotFound)
	assert.ErrorIs(t, s.UpdateRecord(ctx, "things", core.Record{"n": 1}), core.ErrInvalidInput)
}

func TestUnknownTableAndColumn(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetRecord(ctx, "nope", nil)
	assert.ErrorIs(t, err, core.ErrUnknownTable)

	_, err = s.InsertRecord(ctx, "things", core.Record{"bogus": 1})
	assert.ErrorIs(t, err, core.ErrUnknownColumn)

	_, err = s.GetRecords(ctx, "things", core.Conditions{"bogus": 1})
	assert.ErrorIs(t, err, core.ErrUnknownColumn)
}

func TestEach_PagesAndAllowsWrites(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	total := PageSize*2 + 7
	for i := 0; i < total; i++ {
		_, err := s.InsertRecord(ctx, "things", core.Record{"name": fmt.Sprintf("N%d", i)})
		require.NoError(t, err)
	}

	seen := 0
	err := s.Each(ctx, "things", nil, func(r core.Record) error {
		seen++
		return s.UpdateRecord(ctx, "things", core.Record{"id": r.ID(), "n": 1})
	})
	require.NoError(t, err)
	assert.Equal(t, total, seen)

	recs, err := s.GetRecords(ctx, "things", core.Conditions{"n": 1})
	require.NoError(t, err)
	assert.Len(t, recs, total)
}

func TestEach_StopsOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for i := 0; i < 5; i++ {
		_, err := s.InsertRecord(ctx, "things", core.Record{"name": "x"})
		require.NoError(t, err)
	}
	boom := fmt.Errorf("boom")
	calls := 0
	err := s.Each(ctx, "things", nil, func(core.Record) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestSchema(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	id, err := s.InsertRecord(ctx, "things", core.Record{"name": "a"})
	require.NoError(t, err)

	ok, err := s.TableExists(ctx, "things")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ColumnExists(ctx, "things", "extra")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AddColumn(ctx, "things", core.Column{Name: "extra", Type: core.TypeInteger, NotNull: true, Default: 7}))
	ok, err = s.ColumnExists(ctx, "things", "extra")
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := s.GetRecord(ctx, "things", core.Conditions{"id": id})
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Int64("extra"))

	assert.ErrorIs(t, s.AddColumn(ctx, "things", core.Column{Name: "extra", Type: core.TypeText}), core.ErrConflict)

	require.NoError(t, s.ChangeColumnType(ctx, "things", core.Column{Name: "note", Type: core.TypeText, NotNull: true}))
	rec, err = s.GetRecord(ctx, "things", core.Conditions{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "", rec["note"])

	col, err := s.ColumnDef(ctx, "things", "note")
	require.NoError(t, err)
	assert.Equal(t, core.TypeText, col.Type)
	assert.True(t, col.NotNull)

	_, err = s.ColumnDef(ctx, "things", "ghost")
	assert.ErrorIs(t, err, core.ErrUnknownColumn)
}

func TestChangeColumnType_TruncatesByRune(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	id, err := s.InsertRecord(ctx, "things", core.Record{"name": "ñandú-ñandú"})
	require.NoError(t, err)

	require.NoError(t, s.ChangeColumnType(ctx, "things", core.Column{Name: "name", Type: core.TypeChar, Length: 4, NotNull: true}))
	rec, err := s.GetRecord(ctx, "things", core.Conditions{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "ñand", rec.String("name"))
}

func TestValuesNormalized(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ts := time.Unix(1700000000, 0)
	id, err := s.InsertRecord(ctx, "things", core.Record{"name": "t", "n": ts})
	require.NoError(t, err)

	rec, err := s.GetRecord(ctx, "things", core.Conditions{"n": ts})
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID())
	assert.True(t, rec.Time("n").Equal(ts))
}
