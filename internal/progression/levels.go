// Package progression implements XP accrual, leveling and curriculum
// gating for learner accounts.
package progression

import (
	"github.com/pycoach/server/internal/domain"
)

const (
	// MaxLevel is the highest syllabus level; XP keeps accruing past it
	// but the level is capped here.
	MaxLevel = 6

	// XPPerLevel is the XP span of one level.
	XPPerLevel = 100

	// TrialLevelCeiling is the highest level a trial account can open,
	// independent of any XP it might hold.
	TrialLevelCeiling = 2

	// RewardArenaPass is the XP granted for a standard arena pass.
	RewardArenaPass = 20

	// RewardBossPass is the XP granted for passing a level exam.
	RewardBossPass = 100
)

// LevelForXP converts accumulated XP to a level, capped at MaxLevel.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	level := xp/XPPerLevel + 1
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// IsLocked decides whether syllabus content at requestedLevel is locked
// for a session. Pure function; callers re-evaluate it on every level
// selection and after every successful credit.
func IsLocked(role domain.Role, requestedLevel, learnerLevel int) bool {
	switch role {
	case domain.RoleAdmin:
		return false
	case domain.RoleTrial:
		return requestedLevel > TrialLevelCeiling
	default:
		return requestedLevel > learnerLevel
	}
}

// CanGenerateCode reports whether the role may use the code-generation
// features (problem generation and the challenge arena). Trial accounts
// are always denied.
func CanGenerateCode(role domain.Role) bool {
	return role != domain.RoleTrial
}
