package api

import (
	"github.com/pycoach/server/internal/domain"
	"github.com/pycoach/server/internal/progression"
	"github.com/pycoach/server/internal/tutor"
)

// meView is the session summary returned by /api/me and /api/auth/login.
type meView struct {
	Identity    string               `json:"identity"`
	DisplayName string               `json:"display_name"`
	Role        domain.Role          `json:"role"`
	XP          int                  `json:"xp"`
	Level       int                  `json:"level"`
	Streak      int                  `json:"streak"`
	Transcript  []domain.ChatMessage `json:"transcript"`
	Challenge   string               `json:"active_challenge,omitempty"`
	Boss        bool                 `json:"boss_challenge,omitempty"`
	CodeGen     bool                 `json:"code_generation"`
}

func meResponse(sess *domain.SessionState) meView {
	sum := sess.Summary()
	return meView{
		Identity:    sess.Identity,
		DisplayName: sess.DisplayName,
		Role:        sess.Role,
		XP:          sum.XP,
		Level:       sum.Level,
		Streak:      sum.Streak,
		Transcript:  sum.Transcript,
		Challenge:   sum.ActiveChallenge,
		Boss:        sum.BossChallenge,
		CodeGen:     progression.CanGenerateCode(sess.Role),
	}
}

// chapterView is one roadmap entry with its lock state for the session.
type chapterView struct {
	tutor.Chapter
	Locked bool `json:"locked"`
}

// syllabusResponse evaluates the level gate for every chapter. Called on
// every fetch so the locks reflect the latest credited level.
func syllabusResponse(sess *domain.SessionState) []chapterView {
	_, level := sess.Progress()
	views := make([]chapterView, 0, len(tutor.Syllabus))
	for _, ch := range tutor.Syllabus {
		views = append(views, chapterView{
			Chapter: ch,
			Locked:  progression.IsLocked(sess.Role, ch.Level, level),
		})
	}
	return views
}
