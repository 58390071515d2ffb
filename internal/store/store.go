// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/pycoach/server/internal/domain"
)

var (
	// ErrAlreadyExists is returned by CreateAccount when the identity is
	// already registered. Registration must fail, never overwrite.
	ErrAlreadyExists = errors.New("account already exists")

	// ErrConflict is returned by UpdateProgress when the conditional write
	// lost a race with a concurrent credit for the same identity.
	ErrConflict = errors.New("progress update conflict")
)

// Repository defines the interface for persisting learner accounts.
// Lookups return (nil, nil) when the identity is unknown.
type Repository interface {
	// GetAccount retrieves an account by identity.
	GetAccount(ctx context.Context, identity string) (*domain.LearnerAccount, error)

	// CreateAccount inserts a new account. Returns ErrAlreadyExists if the
	// identity is taken.
	CreateAccount(ctx context.Context, acct *domain.LearnerAccount) error

	// UpdateProgress writes xp/level for an identity. The write only
	// happens if the stored xp still equals expectedXP (optimistic
	// locking); otherwise ErrConflict is returned and the caller should
	// re-read and retry.
	UpdateProgress(ctx context.Context, identity string, xp, level, expectedXP int) error

	// UpdateStreak writes the daily streak counter for an identity.
	UpdateStreak(ctx context.Context, identity string, streak int) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// IsRetryableWrite reports whether a write failed for a transient reason:
// the optimistic-lock conflict sentinel, or one of the busy/locked states
// the SQLite driver surfaces only as message text. Callers re-read and
// retry; anything else is a real failure.
func IsRetryableWrite(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
