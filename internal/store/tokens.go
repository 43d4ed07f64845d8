package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/store/core"
)

// TokenStore implementa repository.TokenRepository sobre auth_classlink_token.
type TokenStore struct {
	DB  core.DB
	Now func() time.Time
}

var _ repository.TokenRepository = (*TokenStore)(nil)

func (s *TokenStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenStore) get(ctx context.Context, where core.Conditions) (*repository.TokenRecord, error) {
	rec, err := s.DB.GetRecord(ctx, TableToken, where)
	if err != nil {
		return nil, err
	}
	return TokenFromRecord(rec), nil
}

// GetByUsername busca por username normalizado.
func (s *TokenStore) GetByUsername(ctx context.Context, username string) (*repository.TokenRecord, error) {
	u := repository.NormalizeUsername(username)
	if u == "" {
		return nil, repository.ErrNotFound
	}
	return s.get(ctx, core.Conditions{"username": u})
}

func (s *TokenStore) GetByExternalID(ctx context.Context, externalID string) (*repository.TokenRecord, error) {
	if externalID == "" {
		return nil, repository.ErrNotFound
	}
	return s.get(ctx, core.Conditions{"classlinkuniqid": externalID})
}

func (s *TokenStore) GetByID(ctx context.Context, id int64) (*repository.TokenRecord, error) {
	if id <= 0 {
		return nil, repository.ErrNotFound
	}
	return s.get(ctx, core.Conditions{"id": id})
}

// Create inserta un registro nuevo. El classlinkuniqid no puede repetirse.
func (s *TokenStore) Create(ctx context.Context, t repository.TokenRecord) (*repository.TokenRecord, error) {
	if strings.TrimSpace(t.ExternalUniqueID) == "" {
		return nil, fmt.Errorf("%w: empty external unique id", repository.ErrInvalidInput)
	}
	_, err := s.GetByExternalID(ctx, t.ExternalUniqueID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: classlinkuniqid %q", repository.ErrConflict, t.ExternalUniqueID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	now := s.now()
	t.Username = repository.NormalizeUsername(t.Username)
	if t.TimeCreated.IsZero() {
		t.TimeCreated = now
	}
	if t.TimeModified.IsZero() {
		t.TimeModified = now
	}
	rec := tokenToRecord(t)
	delete(rec, "id")

	id, err := s.DB.InsertRecord(ctx, TableToken, rec)
	if err != nil {
		return nil, err
	}
	t.ID = id
	// el store persiste segundos
	t.TimeCreated = t.TimeCreated.Truncate(time.Second)
	t.TimeModified = t.TimeModified.Truncate(time.Second)
	return &t, nil
}

// Update reescribe todas las columnas del registro t.ID.
func (s *TokenStore) Update(ctx context.Context, t repository.TokenRecord) error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: token update without id", repository.ErrInvalidInput)
	}
	t.Username = repository.NormalizeUsername(t.Username)
	if t.TimeModified.IsZero() {
		t.TimeModified = s.now()
	}
	return s.DB.UpdateRecord(ctx, TableToken, tokenToRecord(t))
}

// LinkUser asigna userid al registro dado.
func (s *TokenStore) LinkUser(ctx context.Context, tokenID, userID int64) error {
	return s.DB.UpdateRecord(ctx, TableToken, core.Record{
		"id":           tokenID,
		"userid":       userID,
		"timemodified": s.now(),
	})
}

func tokenToRecord(t repository.TokenRecord) core.Record {
	return core.Record{
		"id":                t.ID,
		"userid":            t.UserID,
		"username":          t.Username,
		"classlinkusername": t.ExternalUsername,
		"classlinkuniqid":   t.ExternalUniqueID,
		"idtoken":           t.IDToken,
		"scope":             t.Scope,
		"resource":          t.Resource,
		"authcode":          t.AuthCode,
		"token":             t.AccessToken,
		"refreshtoken":      t.RefreshToken,
		"expiry":            t.Expiry,
		"timecreated":       t.TimeCreated,
		"timemodified":      t.TimeModified,
	}
}

// TokenFromRecord lee una fila de auth_classlink_token. Las columnas que
// todavía no existen (antes de los upgrades) quedan en cero.
func TokenFromRecord(r core.Record) *repository.TokenRecord {
	return &repository.TokenRecord{
		ID:               r.ID(),
		UserID:           r.Int64("userid"),
		Username:         r.String("username"),
		ExternalUsername: r.String("classlinkusername"),
		ExternalUniqueID: r.String("classlinkuniqid"),
		IDToken:          r.String("idtoken"),
		Scope:            r.String("scope"),
		Resource:         r.String("resource"),
		AuthCode:         r.String("authcode"),
		AccessToken:      r.String("token"),
		RefreshToken:     r.String("refreshtoken"),
		Expiry:           r.Time("expiry"),
		TimeCreated:      r.Time("timecreated"),
		TimeModified:     r.Time("timemodified"),
	}
}
