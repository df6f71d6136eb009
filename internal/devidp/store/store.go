package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Sub-repositories are reached
// through methods so a Tx can hand out the same repos bound to the
// transaction, and nobody opens a transaction inside another.
type Store interface {
	Accounts() Accounts
	Sessions() Sessions
	RefreshTokens() RefreshTokens
	ActionTokens() ActionTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or
	// Rollback the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByLogin matches username or email, case-insensitively.
	GetAccountByLogin(ctx context.Context, login string) (domain.Account, error)

	// CreateAccount inserts the account and its groups. A clashing username
	// or email yields ErrAlreadyExists.
	CreateAccount(ctx context.Context, a domain.Account) error

	UpdatePasswordHash(ctx context.Context, accountID, hash string) error
	UpdateStatus(ctx context.Context, accountID, status string) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)
	GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// DeleteSession removes the session and, by cascade, its refresh tokens.
	DeleteSession(ctx context.Context, id string) error
	DeleteAccountSessions(ctx context.Context, accountID string) error

	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked and bumps updated_at. An already
	// revoked token yields ErrNotFound, so only one rotation can win.
	RevokeRefreshToken(ctx context.Context, hash string) error

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type ActionTokens interface {
	CreateActionToken(ctx context.Context, t domain.ActionToken) error

	// GetActionTokenByHash returns the token for purpose regardless of
	// whether it is still usable; callers check ActionToken.Usable.
	GetActionTokenByHash(ctx context.Context, purpose, hash string) (domain.ActionToken, error)

	MarkActionTokenUsed(ctx context.Context, id string, at time.Time) error

	DeleteExpiredActionTokens(ctx context.Context, now time.Time) (int64, error)
}
