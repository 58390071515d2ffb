// Package auth implements credential checks and session seeding.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pycoach/server/internal/config"
	"github.com/pycoach/server/internal/domain"
	"github.com/pycoach/server/internal/progression"
	"github.com/pycoach/server/internal/store"
)

var (
	// ErrInvalidCredentials is returned for any identity/credential pair
	// that matches neither the allow-lists nor a stored account. The same
	// error covers unknown identities and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadyExists is returned by Register when the identity is taken.
	ErrAlreadyExists = errors.New("identity already registered")

	// ErrStoreUnavailable means the progress store could not be consulted.
	ErrStoreUnavailable = errors.New("account store unavailable")
)

// SessionSeed is what a successful authentication hands to the session
// layer: who the user is and their starting progress snapshot.
type SessionSeed struct {
	Identity    string
	DisplayName string
	Role        domain.Role
	Snapshot    domain.ProgressSnapshot
}

// Gate validates credentials against the configured allow-lists and the
// learner account store.
type Gate struct {
	admins []config.AllowListEntry
	trials []config.AllowListEntry
	repo   store.Repository
}

// NewGate creates an auth gate.
func NewGate(cfg *config.Config, repo store.Repository) *Gate {
	return &Gate{admins: cfg.Admins, trials: cfg.Trials, repo: repo}
}

// Authenticate checks identity/credential and returns a session seed.
//
// The allow-lists always win: a match yields an operator/demo seed and
// the progress store is never consulted for that identity, even if a
// learner account with the same identity exists. Admin seeds carry an
// implicit max-level, zero-XP snapshot; trial seeds start at level 1.
func (g *Gate) Authenticate(ctx context.Context, identity, credential string) (*SessionSeed, error) {
	if identity == "" || credential == "" {
		return nil, ErrInvalidCredentials
	}

	if entry, ok := matchAllowList(g.admins, identity, credential); ok {
		slog.Info("Operator login", "identity", identity)
		return &SessionSeed{
			Identity:    entry.Identity,
			DisplayName: entry.DisplayName,
			Role:        domain.RoleAdmin,
			Snapshot: domain.ProgressSnapshot{
				Identity: entry.Identity,
				Level:    progression.MaxLevel,
			},
		}, nil
	}

	if entry, ok := matchAllowList(g.trials, identity, credential); ok {
		slog.Info("Trial login", "identity", identity)
		return &SessionSeed{
			Identity:    entry.Identity,
			DisplayName: entry.DisplayName,
			Role:        domain.RoleTrial,
			Snapshot: domain.ProgressSnapshot{
				Identity: entry.Identity,
				Level:    1,
			},
		}, nil
	}

	acct, err := g.repo.GetAccount(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if acct == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.CredentialHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	slog.Info("Learner login", "identity", identity, "level", acct.Level, "xp", acct.XP)
	return &SessionSeed{
		Identity:    acct.Identity,
		DisplayName: acct.DisplayName,
		Role:        domain.RoleLearner,
		Snapshot:    acct.Snapshot(),
	}, nil
}

// Register creates a new learner account with zeroed progress. The
// credential is stored as a bcrypt hash, never as plain text. An existing
// identity fails with ErrAlreadyExists and is left untouched.
func (g *Gate) Register(ctx context.Context, name, identity, credential string) error {
	if name == "" || identity == "" || credential == "" {
		return ErrInvalidCredentials
	}

	// Allow-list identities are reserved; registering one would shadow it.
	for _, entry := range append(append([]config.AllowListEntry{}, g.admins...), g.trials...) {
		if entry.Identity == identity {
			return ErrAlreadyExists
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash credential: %w", err)
	}

	now := time.Now()
	err = g.repo.CreateAccount(ctx, &domain.LearnerAccount{
		Identity:       identity,
		DisplayName:    name,
		CredentialHash: string(hash),
		XP:             0,
		Level:          1,
		Streak:         0,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	slog.Info("Learner registered", "identity", identity)
	return nil
}

// matchAllowList does a case-sensitive exact comparison against the list;
// first match wins. Credentials compare in constant time.
func matchAllowList(entries []config.AllowListEntry, identity, credential string) (config.AllowListEntry, bool) {
	for _, entry := range entries {
		if entry.Identity != identity {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(entry.Credential), []byte(credential)) == 1 {
			return entry, true
		}
	}
	return config.AllowListEntry{}, false
}
