package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/classlink/internal/domain/repository"
	"github.com/dropDatabas3/classlink/internal/security/password"
	"github.com/dropDatabas3/classlink/internal/store/core"
)

// AccountStore implementa repository.AccountRepository sobre la tabla users del host.
type AccountStore struct {
	DB     core.DB
	Now    func() time.Time
	Params password.Params
}

var _ repository.AccountRepository = (*AccountStore)(nil)

func (s *AccountStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AccountStore) GetByUsername(ctx context.Context, username string) (*repository.LocalAccount, error) {
	if username == "" {
		return nil, repository.ErrNotFound
	}
	rec, err := s.DB.GetRecord(ctx, TableUsers, core.Conditions{"username": username, "deleted": 0})
	if err != nil {
		return nil, err
	}
	return accountFromRecord(rec), nil
}

func (s *AccountStore) GetByID(ctx context.Context, id int64) (*repository.LocalAccount, error) {
	if id <= 0 {
		return nil, repository.ErrNotFound
	}
	rec, err := s.DB.GetRecord(ctx, TableUsers, core.Conditions{"id": id})
	if err != nil {
		return nil, err
	}
	return accountFromRecord(rec), nil
}

// Create da de alta una cuenta con el password hasheado (argon2id).
func (s *AccountStore) Create(ctx context.Context, in repository.CreateAccountInput) (*repository.LocalAccount, error) {
	if in.Username == "" {
		return nil, fmt.Errorf("%w: empty username", repository.ErrInvalidInput)
	}
	_, err := s.DB.GetRecord(ctx, TableUsers, core.Conditions{"username": in.Username})
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: username %q", repository.ErrConflict, in.Username)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	var phc string
	if in.Password != "" {
		if phc, err = password.Hash(s.Params, in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	auth := in.Auth
	if auth == "" {
		auth = repository.AuthMethod
	}

	now := s.now().Truncate(time.Second)
	id, err := s.DB.InsertRecord(ctx, TableUsers, core.Record{
		"username":     in.Username,
		"auth":         auth,
		"password":     phc,
		"deleted":      false,
		"timecreated":  now,
		"timemodified": now,
	})
	if err != nil {
		return nil, err
	}
	return &repository.LocalAccount{
		ID:           id,
		Username:     in.Username,
		Auth:         auth,
		PasswordHash: phc,
		TimeCreated:  now,
		TimeModified: now,
	}, nil
}

func (s *AccountStore) Rename(ctx context.Context, id int64, username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty username", repository.ErrInvalidInput)
	}
	return s.DB.UpdateRecord(ctx, TableUsers, core.Record{
		"id":           id,
		"username":     username,
		"timemodified": s.now(),
	})
}

func accountFromRecord(r core.Record) *repository.LocalAccount {
	return &repository.LocalAccount{
		ID:           r.ID(),
		Username:     r.String("username"),
		Auth:         r.String("auth"),
		PasswordHash: r.String("password"),
		Deleted:      r.Bool("deleted"),
		TimeCreated:  r.Time("timecreated"),
		TimeModified: r.Time("timemodified"),
	}
}
