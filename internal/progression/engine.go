package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pycoach/server/internal/domain"
	"github.com/pycoach/server/internal/store"
)

var (
	// ErrStoreUnavailable means the progress store could not be reached.
	// No local XP change is applied: there is no durable record to
	// reconcile against later.
	ErrStoreUnavailable = errors.New("progress store unavailable")

	// ErrNotFound means the identity has no learner account. Accounts are
	// created at registration/login, never by the credit path.
	ErrNotFound = errors.New("learner account not found")

	// ErrInvalidAmount means the reward amount was not a positive integer.
	ErrInvalidAmount = errors.New("credit amount must be positive")
)

const (
	creditRetryAttempts = 5
	creditRetryDelay    = 50 * time.Millisecond
)

// Engine is the sole writer of xp/level. Every call site that grants a
// reward routes through Credit; nothing else mutates progress, which is
// what keeps level monotonically non-decreasing.
type Engine struct {
	repo store.Repository
}

// NewEngine creates a progression engine backed by the given repository.
func NewEngine(repo store.Repository) *Engine {
	return &Engine{repo: repo}
}

// Credit adds amount XP to the identity's durable record and recomputes
// its level, returning the new snapshot. The read-modify-write is guarded
// by a conditional update: a concurrent credit for the same identity
// triggers a re-read and retry instead of a lost update.
func (e *Engine) Credit(ctx context.Context, identity string, amount int) (*domain.ProgressSnapshot, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var lastErr error
	for attempt := 0; attempt < creditRetryAttempts; attempt++ {
		acct, err := e.repo.GetAccount(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if acct == nil {
			return nil, ErrNotFound
		}

		newXP := acct.XP + amount
		newLevel := LevelForXP(newXP)
		newStreak := nextStreak(acct.Streak, acct.UpdatedAt, time.Now())

		err = e.repo.UpdateProgress(ctx, identity, newXP, newLevel, acct.XP)
		if err == nil {
			if newLevel > acct.Level {
				slog.Info("Level up", "identity", identity, "level", newLevel, "xp", newXP)
			}
			if newStreak != acct.Streak {
				// The streak is decoration; a failed write never voids the
				// credit that just landed.
				if streakErr := e.repo.UpdateStreak(ctx, identity, newStreak); streakErr != nil {
					slog.Warn("Streak update failed", "error", streakErr, "identity", identity)
					newStreak = acct.Streak
				}
			}
			return &domain.ProgressSnapshot{
				Identity: identity,
				XP:       newXP,
				Level:    newLevel,
				Streak:   newStreak,
			}, nil
		}

		if store.IsRetryableWrite(err) {
			lastErr = err
			slog.Warn("Credit conflict, retrying", "identity", identity, "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(creditRetryDelay):
			}
			continue
		}

		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

// nextStreak advances the daily streak: credits on consecutive calendar
// days extend it, a second credit on the same day keeps it, and a gap
// resets it to one. lastActive is the account's previous write time.
func nextStreak(current int, lastActive, now time.Time) int {
	if current <= 0 {
		return 1
	}
	if sameDay(lastActive, now) {
		return current
	}
	if sameDay(lastActive.AddDate(0, 0, 1), now) {
		return current + 1
	}
	return 1
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
