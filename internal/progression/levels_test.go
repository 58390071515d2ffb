package progression

import (
	"testing"

	"github.com/pycoach/server/internal/domain"
)

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{199, 2},
		{250, 3},
		{500, 6},
		{599, 6},
		{600, 6},
		{10000, 6},
		{-5, 1},
	}

	for _, tt := range tests {
		if got := LevelForXP(tt.xp); got != tt.want {
			t.Errorf("LevelForXP(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}

func TestIsLocked(t *testing.T) {
	tests := []struct {
		name         string
		role         domain.Role
		requested    int
		learnerLevel int
		want         bool
	}{
		{"admin never locked", domain.RoleAdmin, 6, 1, false},
		{"learner at own level", domain.RoleLearner, 3, 3, false},
		{"learner below own level", domain.RoleLearner, 1, 3, false},
		{"learner above own level", domain.RoleLearner, 4, 3, true},
		{"trial within ceiling", domain.RoleTrial, 2, 1, false},
		{"trial above ceiling", domain.RoleTrial, 3, 1, true},
		{"trial ceiling ignores learner level", domain.RoleTrial, 3, 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLocked(tt.role, tt.requested, tt.learnerLevel); got != tt.want {
				t.Errorf("IsLocked(%s, %d, %d) = %v, want %v",
					tt.role, tt.requested, tt.learnerLevel, got, tt.want)
			}
		})
	}
}

func TestCanGenerateCode(t *testing.T) {
	if CanGenerateCode(domain.RoleTrial) {
		t.Error("trial accounts must not get code generation")
	}
	if !CanGenerateCode(domain.RoleLearner) {
		t.Error("learner accounts should get code generation")
	}
	if !CanGenerateCode(domain.RoleAdmin) {
		t.Error("admin accounts should get code generation")
	}
}
