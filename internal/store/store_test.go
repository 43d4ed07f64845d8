package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/security/password"
	"github.com/dropDatabas3/classlink/internal/store/core"
	"github.com/dropDatabas3/classlink/internal/store/memory"
)

var testParams = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16}

// newStores arma un store en memoria con el esquema completo (baseline más
// las columnas que agregan los upgrades).
func newStores(t *testing.T) *Stores {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()
	_, err := EnsureTables(ctx, mem, BaselineTables()...)
	require.NoError(t, err)
	require.NoError(t, mem.AddColumn(ctx, TableToken, core.Column{Name: "classlinkusername", Type: core.TypeChar, Length: 255, NotNull: true}))
	require.NoError(t, mem.AddColumn(ctx, TableToken, core.Column{Name: "userid", Type: core.TypeInteger, NotNull: true}))

	clock := time.Unix(1700000000, 0)
	return Wrap(mem, Options{
		Now:            func() time.Time { return clock },
		PasswordParams: &testParams,
	})
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"memory", "postgres", "sqlite"}, ListAdapters())

	a, ok := GetAdapter("PostgreSQL")
	require.True(t, ok)
	assert.Equal(t, "postgres", a.Name())

	_, err := OpenAdapter(context.Background(), AdapterConfig{Name: "mongo"})
	assert.Error(t, err)

	s, err := Open(context.Background(), AdapterConfig{Name: "mem"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Store.Driver())
	require.NoError(t, s.Close())
}

func TestTokenStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)

	rec, err := s.Tokens.Create(ctx, repository.TokenRecord{
		Username:         "  Alice ",
		ExternalUniqueID: "U1",
		ExternalUsername: "alice@idp",
		IDToken:          "a.b.c",
		AccessToken:      "at",
		Expiry:           time.Unix(1700003600, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, "alice", rec.Username)

	byName, err := s.Tokens.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byName.ID)
	assert.Equal(t, "alice@idp", byName.ExternalUsername)
	assert.True(t, byName.Expiry.Equal(time.Unix(1700003600, 0)))
	assert.False(t, byName.IsLegacy())

	byExt, err := s.Tokens.GetByExternalID(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byExt.ID)

	_, err = s.Tokens.GetByExternalID(ctx, "U2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTokenStore_UniqueExternalID(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	_, err := s.Tokens.Create(ctx, repository.TokenRecord{Username: "a", ExternalUniqueID: "U1"})
	require.NoError(t, err)

	_, err = s.Tokens.Create(ctx, repository.TokenRecord{Username: "b", ExternalUniqueID: "U1"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = s.Tokens.Create(ctx, repository.TokenRecord{Username: "c"})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestTokenStore_UpdateAndLink(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	rec, err := s.Tokens.Create(ctx, repository.TokenRecord{Username: "a", ExternalUniqueID: "U1", AccessToken: "old"})
	require.NoError(t, err)

	rec.AccessToken = "new"
	rec.Username = "A"
	require.NoError(t, s.Tokens.Update(ctx, *rec))
	require.NoError(t, s.Tokens.LinkUser(ctx, rec.ID, 9))

	got, err := s.Tokens.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "a", got.Username)
	assert.Equal(t, int64(9), got.UserID)

	assert.ErrorIs(t, s.Tokens.Update(ctx, repository.TokenRecord{ID: 77, ExternalUniqueID: "x"}), repository.ErrNotFound)
	assert.ErrorIs(t, s.Tokens.LinkUser(ctx, 77, 9), repository.ErrNotFound)
}

func TestTokenFromRecord_BeforeUpgrades(t *testing.T) {
	tok := TokenFromRecord(core.Record{"id": int64(4), "username": "a", "idtoken": "  "})
	assert.Equal(t, int64(4), tok.ID)
	assert.Equal(t, int64(0), tok.UserID)
	assert.Empty(t, tok.ExternalUsername)
	assert.True(t, tok.IsLegacy())
}

func TestAccountStore(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)

	acct, err := s.Accounts.Create(ctx, repository.CreateAccountInput{Username: "bob@school.edu", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, repository.AuthMethod, acct.Auth)
	assert.True(t, password.Verify("pw", acct.PasswordHash))

	got, err := s.Accounts.GetByUsername(ctx, "bob@school.edu")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)
	assert.Equal(t, acct.PasswordHash, got.PasswordHash)

	_, err = s.Accounts.Create(ctx, repository.CreateAccountInput{Username: "bob@school.edu", Password: "pw"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, s.Accounts.Rename(ctx, acct.ID, "robert"))
	_, err = s.Accounts.GetByUsername(ctx, "bob@school.edu")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	got, err = s.Accounts.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "robert", got.Username)
}

func TestAccountStore_IgnoresDeleted(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	_, err := s.Store.InsertRecord(ctx, TableUsers, core.Record{"username": "gone", "deleted": true})
	require.NoError(t, err)

	_, err = s.Accounts.GetByUsername(ctx, "gone")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLegacyStore(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	uid, err := s.Store.InsertRecord(ctx, TableUsers, core.Record{"username": "jdoe"})
	require.NoError(t, err)
	_, err = s.Store.InsertRecord(ctx, TableO365Object, core.Record{"type": "user", "o365name": "john@o365", "moodleid": uid})
	require.NoError(t, err)

	// sin local_o365 instalado no se consulta el mapeo
	_, ok, err := s.Legacy.LookupUsername(ctx, "john@o365")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Plugins.Set(ctx, PluginO365, "version", "2020071503"))

	name, ok, err := s.Legacy.LookupUsername(ctx, "john@o365")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "jdoe", name)

	_, ok, err = s.Legacy.LookupUsername(ctx, "nobody@o365")
	require.NoError(t, err)
	assert.False(t, ok)

	// mapeo a una cuenta inexistente
	_, err = s.Store.InsertRecord(ctx, TableO365Object, core.Record{"type": "user", "o365name": "ghost@o365", "moodleid": 999})
	require.NoError(t, err)
	_, ok, err = s.Legacy.LookupUsername(ctx, "ghost@o365")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPluginConfigStore(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)

	_, ok, err := s.Plugins.Get(ctx, PluginClasslink, "autoappend")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Plugins.Set(ctx, PluginClasslink, "autoappend", "@x"))
	require.NoError(t, s.Plugins.Set(ctx, PluginClasslink, "autoappend", "@school.edu"))
	require.NoError(t, s.Plugins.Set(ctx, PluginClasslink, "version", "2018051700.01"))
	require.NoError(t, s.Plugins.Set(ctx, PluginO365, "version", "1"))

	v, ok, err := s.Plugins.Get(ctx, PluginClasslink, "autoappend")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "@school.edu", v)

	all, err := s.Plugins.All(ctx, PluginClasslink)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"autoappend": "@school.edu", "version": "2018051700.01"}, all)
}

func TestEnsureTables_Idempotent(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	created, err := EnsureTables(ctx, mem, BaselineTables()...)
	require.NoError(t, err)
	assert.Len(t, created, len(BaselineTables()))

	created, err = EnsureTables(ctx, mem, BaselineTables()...)
	require.NoError(t, err)
	assert.Empty(t, created)
}
