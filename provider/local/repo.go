package local

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "embed"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the accounts table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to apply accounts schema")
	}
	return nil
}

// Accounts is the account store backing the local identity provider.
type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

// NewAccountsRepository builds the bun-backed account store.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.ToLower(strings.TrimSpace(email))).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(err, errors.CategoryNotFound, "account not found").
				WithTextCode("ACCOUNT_NOT_FOUND")
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account")
	}

	return record, nil
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempts = login_attempts + 1").
		Set("login_attempt_at = ?", now).
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track login attempt")
	}

	account.LoginAttempts++
	account.LoginAttemptAt = &now
	return nil
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempts = 0").
		Set("login_attempt_at = NULL").
		Set("loggedin_at = ?", now).
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track successful login")
	}

	account.LoginAttempts = 0
	account.LoginAttemptAt = nil
	account.LoggedInAt = &now
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return true
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.Category == errors.CategoryNotFound
	}
	return false
}
