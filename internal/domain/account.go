// Package domain contains core domain types for the PyCoach application.
package domain

import (
	"time"
)

// Role classifies what a signed-in session is allowed to do.
type Role string

const (
	// RoleAdmin is an operator account from the configured allow-list.
	// Admins bypass all level locks and never touch the progress store.
	RoleAdmin Role = "admin"
	// RoleLearner is a self-registered account backed by the progress store.
	RoleLearner Role = "learner"
	// RoleTrial is a demo account with a hard level and feature ceiling
	// independent of any earned XP.
	RoleTrial Role = "trial"
)

// LearnerAccount is the durable record of a learner, keyed by identity.
// XP and level are mutated only by the progression engine's credit path;
// identity, name and credential only by registration.
type LearnerAccount struct {
	Identity       string    `json:"identity"`
	DisplayName    string    `json:"display_name"`
	CredentialHash string    `json:"-"`
	XP             int       `json:"xp"`
	Level          int       `json:"level"`
	Streak         int       `json:"streak"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Snapshot returns the progress-visible view of the account.
func (a *LearnerAccount) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Identity: a.Identity,
		XP:       a.XP,
		Level:    a.Level,
		Streak:   a.Streak,
	}
}

// ProgressSnapshot is the XP/level state copied into a session after
// login and after every successful credit.
type ProgressSnapshot struct {
	Identity string `json:"identity"`
	XP       int    `json:"xp"`
	Level    int    `json:"level"`
	Streak   int    `json:"streak"`
}
