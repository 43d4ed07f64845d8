package upgrade

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/classlink/internal/idp"
	"github.com/dropDatabas3/classlink/internal/idp/idptest"
	"github.com/dropDatabas3/classlink/internal/store"
	"github.com/dropDatabas3/classlink/internal/store/core"
	"github.com/dropDatabas3/classlink/internal/store/memory"
	"github.com/dropDatabas3/classlink/internal/store/sqldb"
)

var (
	t0    = time.Unix(1500000000, 0)
	clock = time.Unix(1700000000, 0)
)

func testOptions() Options {
	return Options{Logger: zap.NewNop(), Now: func() time.Time { return clock }}
}

func testEnv(s core.Store) *Env {
	now := func() time.Time { return clock }
	return &Env{
		Store:    s,
		Plugins:  store.NewPluginConfigStore(s),
		Accounts: &store.AccountStore{DB: s, Now: now},
		Decoder:  idp.JWTDecoder{},
		Now:      now,
		Log:      zap.NewNop(),
	}
}

func baseline(t *testing.T, s core.Store) {
	t.Helper()
	_, err := store.EnsureTables(context.Background(), s, store.BaselineTables()...)
	require.NoError(t, err)
}

func backends(t *testing.T) map[string]core.Store {
	t.Helper()
	lite, err := sqldb.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })
	return map[string]core.Store{"memory": memory.New(), "sqlite": lite}
}

func TestVersion(t *testing.T) {
	v, err := ParseVersion("2015111904.01")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 2015111904, Minor: 1}, v)
	assert.Equal(t, "2015111904.01", v.String())

	assert.True(t, MustParseVersion("2015111904").Less(v))
	assert.True(t, v.Less(MustParseVersion("2015111905.01")))
	assert.Equal(t, 0, v.Compare(MustParseVersion("2015111904.01")))

	z, err := ParseVersion("")
	require.NoError(t, err)
	assert.True(t, z.IsZero())

	// la parte decimal es una fracción: .1 == .10
	tenth, err := ParseVersion("2015111904.1")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 2015111904, Minor: 10}, tenth)
	assert.Equal(t, 0, tenth.Compare(MustParseVersion("2015111904.10")))
	assert.True(t, v.Less(tenth))
	assert.Equal(t, v, MustParseVersion("2015111904.010"))

	for _, bad := range []string{"abc", "2015.x", "-1", "2015.", "2015.+1", "2015111904.011"} {
		_, err := ParseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestSteps_Ordered(t *testing.T) {
	steps := Steps()
	require.Len(t, steps, 9)
	for i := 1; i < len(steps); i++ {
		assert.True(t, steps[i-1].Version.Less(steps[i].Version), steps[i].Name)
	}
}

func TestInstall_FreshAndIdempotent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			res, err := Install(ctx, s, testOptions())
			require.NoError(t, err)
			assert.Len(t, res.Applied, 9)
			assert.Equal(t, MustParseVersion("2018051700.01"), res.To)

			for _, col := range []string{"classlinkusername", "userid"} {
				ok, err := s.ColumnExists(ctx, store.TableToken, col)
				require.NoError(t, err)
				assert.True(t, ok, col)
			}
			ok, err := s.ColumnExists(ctx, store.TableState, "additionaldata")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = s.TableExists(ctx, store.TablePrevLogin)
			require.NoError(t, err)
			assert.True(t, ok)

			col, err := s.ColumnDef(ctx, store.TableToken, "scope")
			require.NoError(t, err)
			assert.Equal(t, core.TypeText, col.Type)

			scope := strings.Repeat("ñ", 150) + strings.Repeat("s", 150)
			_, err = s.InsertRecord(ctx, store.TableToken, core.Record{
				"classlinkuniqid":   "uniq-1",
				"username":          "alice",
				"classlinkusername": "alice@example.org",
				"scope":             scope,
				"token":             "tok",
				"expiry":            clock.Add(time.Hour),
				"userid":            7,
			})
			require.NoError(t, err)
			before, err := s.GetRecords(ctx, store.TableToken, nil)
			require.NoError(t, err)

			// segunda corrida: nada pendiente
			res, err = Install(ctx, s, testOptions())
			require.NoError(t, err)
			assert.Empty(t, res.Applied)
			assert.Len(t, res.Skipped, 9)

			// repetir todos los pasos desde cero deja el mismo estado
			r := NewRunner(s, testOptions())
			res, err = r.RunFrom(ctx, Zero)
			require.NoError(t, err)
			assert.Len(t, res.Applied, 9)

			after, err := s.GetRecords(ctx, store.TableToken, nil)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			require.Len(t, after, 1)
			assert.Equal(t, scope, after[0].String("scope"))

			col, err = s.ColumnDef(ctx, store.TableToken, "scope")
			require.NoError(t, err)
			assert.Equal(t, core.TypeText, col.Type)

			cur, err := r.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, r.Latest(), cur)
		})
	}
}

func TestScopeSteps_OnlyWiden(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			baseline(t, s)
			env := testEnv(s)

			require.NoError(t, scopeToChar(ctx, env))
			col, err := s.ColumnDef(ctx, store.TableToken, "scope")
			require.NoError(t, err)
			assert.Equal(t, core.TypeChar, col.Type)
			assert.Equal(t, 255, col.Length)

			require.NoError(t, scopeToText(ctx, env))
			long := strings.Repeat("x", 400)
			id, err := s.InsertRecord(ctx, store.TableToken, core.Record{"scope": long})
			require.NoError(t, err)

			// otra vez char(255): TEXT no se achica
			require.NoError(t, scopeToChar(ctx, env))
			col, err = s.ColumnDef(ctx, store.TableToken, "scope")
			require.NoError(t, err)
			assert.Equal(t, core.TypeText, col.Type)
			rec, err := s.GetRecord(ctx, store.TableToken, core.Conditions{"id": id})
			require.NoError(t, err)
			assert.Equal(t, long, rec.String("scope"))
		})
	}
}

func TestRunner_FailureStopsAndKeepsMarker(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	baseline(t, s)

	var ran []string
	step := func(name string, err error) func(context.Context, *Env) error {
		return func(context.Context, *Env) error {
			ran = append(ran, name)
			return err
		}
	}
	boom := errors.New("boom")
	r := NewRunner(s, Options{
		Logger: zap.NewNop(),
		Steps: []Step{
			{MustParseVersion("3"), "third", step("third", nil)},
			{MustParseVersion("1"), "first", step("first", nil)},
			{MustParseVersion("2"), "second", step("second", boom)},
		},
	})

	res, err := r.Run(ctx)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res.Failed)
	assert.Equal(t, MustParseVersion("2"), *res.Failed)
	assert.Equal(t, []string{"first", "second"}, ran)

	cur, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, MustParseVersion("1"), cur)

	// el paso que falló se reintenta en la próxima corrida
	ran = nil
	_, err = r.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"second"}, ran)
}

func TestNormalizeTokenUsernames_OnlyChangedRows(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			baseline(t, s)
			mixed, err := s.InsertRecord(ctx, store.TableToken, core.Record{"username": " Alice ", "classlinkuniqid": "U1", "timemodified": t0})
			require.NoError(t, err)
			clean, err := s.InsertRecord(ctx, store.TableToken, core.Record{"username": "bob", "classlinkuniqid": "U2", "timemodified": t0})
			require.NoError(t, err)

			require.NoError(t, normalizeTokenUsernames(ctx, testEnv(s)))

			rec, err := s.GetRecord(ctx, store.TableToken, core.Conditions{"id": mixed})
			require.NoError(t, err)
			assert.Equal(t, "alice", rec.String("username"))
			assert.Equal(t, clock.Unix(), rec.Int64("timemodified"))

			rec, err = s.GetRecord(ctx, store.TableToken, core.Conditions{"id": clean})
			require.NoError(t, err)
			assert.Equal(t, "bob", rec.String("username"))
			assert.Equal(t, t0.Unix(), rec.Int64("timemodified"))
		})
	}
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	baseline(t, s)
	env := testEnv(s)
	require.NoError(t, addClasslinkUsername(ctx, env))

	insert := func(table string, rec core.Record) int64 {
		id, err := s.InsertRecord(ctx, table, rec)
		require.NoError(t, err)
		return id
	}

	// cuenta creada con el uniqid como username: se renombra
	rawUser := insert(store.TableUsers, core.Record{"username": "u1", "auth": "classlink"})
	rawTok := insert(store.TableToken, core.Record{
		"username": "u1", "classlinkuniqid": "U1",
		"idtoken": idptest.IDToken(t, map[string]any{"oid": "U1", "upn": "jane@idp"}),
	})

	// username normal: solo se completa classlinkusername
	bobUser := insert(store.TableUsers, core.Record{"username": "bob", "auth": "classlink"})
	bobTok := insert(store.TableToken, core.Record{
		"username": "bob", "classlinkuniqid": "U2",
		"idtoken": idptest.IDToken(t, map[string]any{"sub": "bob-sub"}),
	})

	// classlinkusername ya poblado: no se pisa
	insert(store.TableUsers, core.Record{"username": "carl", "auth": "classlink"})
	carlTok := insert(store.TableToken, core.Record{
		"username": "carl", "classlinkuniqid": "U3", "classlinkusername": "kept",
		"idtoken": idptest.IDToken(t, map[string]any{"oid": "U3", "upn": "carl@idp"}),
	})

	// filas que se saltean
	insert(store.TableUsers, core.Record{"username": "u4", "auth": "classlink"})
	legacyTok := insert(store.TableToken, core.Record{"username": "u4", "classlinkuniqid": "U4", "idtoken": "  "})
	insert(store.TableUsers, core.Record{"username": "u5", "auth": "classlink"})
	garbageTok := insert(store.TableToken, core.Record{"username": "u5", "classlinkuniqid": "U5", "idtoken": "garbage"})
	manualUser := insert(store.TableUsers, core.Record{"username": "u6", "auth": "manual"})
	manualTok := insert(store.TableToken, core.Record{
		"username": "u6", "classlinkuniqid": "U6",
		"idtoken": idptest.IDToken(t, map[string]any{"oid": "U6", "upn": "six@idp"}),
	})
	insert(store.TableUsers, core.Record{"username": "u7", "auth": "classlink", "deleted": true})
	deletedTok := insert(store.TableToken, core.Record{
		"username": "u7", "classlinkuniqid": "U7",
		"idtoken": idptest.IDToken(t, map[string]any{"oid": "U7", "upn": "seven@idp"}),
	})

	require.NoError(t, backfillClasslinkUsernames(ctx, env))

	get := func(table string, id int64) core.Record {
		rec, err := s.GetRecord(ctx, table, core.Conditions{"id": id})
		require.NoError(t, err)
		return rec
	}

	assert.Equal(t, "jane@idp", get(store.TableUsers, rawUser).String("username"))
	assert.Equal(t, clock.Unix(), get(store.TableUsers, rawUser).Int64("timemodified"))
	assert.Equal(t, "jane@idp", get(store.TableToken, rawTok).String("username"))
	assert.Equal(t, "jane@idp", get(store.TableToken, rawTok).String("classlinkusername"))

	assert.Equal(t, "bob", get(store.TableUsers, bobUser).String("username"))
	assert.Equal(t, "bob", get(store.TableToken, bobTok).String("username"))
	assert.Equal(t, "bob-sub", get(store.TableToken, bobTok).String("classlinkusername"))

	assert.Equal(t, "kept", get(store.TableToken, carlTok).String("classlinkusername"))

	for _, id := range []int64{legacyTok, garbageTok, manualTok, deletedTok} {
		assert.Empty(t, get(store.TableToken, id).String("classlinkusername"), id)
	}
	assert.Equal(t, "u6", get(store.TableUsers, manualUser).String("username"))

	// segunda pasada: nada cambia
	require.NoError(t, backfillClasslinkUsernames(ctx, env))
	assert.Equal(t, "jane@idp", get(store.TableUsers, rawUser).String("username"))
}

func TestBackfill_RenameGuardWhenClaimMatches(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	baseline(t, s)
	env := testEnv(s)
	require.NoError(t, addClasslinkUsername(ctx, env))

	uid, err := s.InsertRecord(ctx, store.TableUsers, core.Record{"username": "u1", "auth": "classlink", "timemodified": t0})
	require.NoError(t, err)
	_, err = s.InsertRecord(ctx, store.TableToken, core.Record{
		"username": "u1", "classlinkuniqid": "U1",
		"idtoken": idptest.IDToken(t, map[string]any{"sub": "u1"}),
	})
	require.NoError(t, err)

	require.NoError(t, backfillClasslinkUsernames(ctx, env))

	u, err := s.GetRecord(ctx, store.TableUsers, core.Conditions{"id": uid})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.String("username"))
	assert.Equal(t, t0.Unix(), u.Int64("timemodified"))
}

func TestReseatEndpoints(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	baseline(t, s)
	env := testEnv(s)
	require.NoError(t, env.Plugins.Set(ctx, store.PluginClasslink, "authendpoint", oldAuthEndpoint))
	require.NoError(t, env.Plugins.Set(ctx, store.PluginClasslink, "tokenendpoint", "https://launchpad.classlink.com/oauth2/v2/token"))

	require.NoError(t, reseatEndpoints(ctx, env))

	all, err := env.Plugins.All(ctx, store.PluginClasslink)
	require.NoError(t, err)
	assert.Equal(t, newAuthEndpoint, all["authendpoint"])
	assert.Equal(t, "https://launchpad.classlink.com/oauth2/v2/token", all["tokenendpoint"])
}

func TestAddTokenUserID(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			baseline(t, s)
			env := testEnv(s)

			uid, err := s.InsertRecord(ctx, store.TableUsers, core.Record{"username": "alice", "auth": "classlink"})
			require.NoError(t, err)
			linked, err := s.InsertRecord(ctx, store.TableToken, core.Record{"username": "alice", "classlinkuniqid": "U1"})
			require.NoError(t, err)
			orphan, err := s.InsertRecord(ctx, store.TableToken, core.Record{"username": "ghost", "classlinkuniqid": "U2"})
			require.NoError(t, err)

			require.NoError(t, addTokenUserID(ctx, env))

			rec, err := s.GetRecord(ctx, store.TableToken, core.Conditions{"id": linked})
			require.NoError(t, err)
			assert.Equal(t, uid, rec.Int64("userid"))
			rec, err = s.GetRecord(ctx, store.TableToken, core.Conditions{"id": orphan})
			require.NoError(t, err)
			assert.Equal(t, int64(0), rec.Int64("userid"))

			// columna existente: no se repuebla
			require.NoError(t, s.UpdateRecord(ctx, store.TableToken, core.Record{"id": linked, "userid": 99}))
			require.NoError(t, addTokenUserID(ctx, env))
			rec, err = s.GetRecord(ctx, store.TableToken, core.Conditions{"id": linked})
			require.NoError(t, err)
			assert.Equal(t, int64(99), rec.Int64("userid"))
		})
	}
}
