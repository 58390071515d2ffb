package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pycoach/server/internal/domain"
	"github.com/pycoach/server/internal/grader"
	"github.com/pycoach/server/internal/progression"
	"github.com/pycoach/server/internal/session"
	"github.com/pycoach/server/internal/tutor"
)

// minSubmissionLength rejects obviously empty submissions before burning
// a sandbox run.
const minSubmissionLength = 5

// ArenaHandler handles the challenge arena: problem generation, grading
// and XP rewards.
type ArenaHandler struct {
	tutor  *tutor.Service
	oracle *grader.Oracle
	engine *progression.Engine
}

// NewArenaHandler creates the arena handler.
func NewArenaHandler(svc *tutor.Service, oracle *grader.Oracle, engine *progression.Engine) *ArenaHandler {
	return &ArenaHandler{tutor: svc, oracle: oracle, engine: engine}
}

// RegisterRoutes registers arena routes.
func (h *ArenaHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/arena", func(r chi.Router) {
		r.Post("/problem", h.GenerateProblem)
		r.Post("/submit", h.Submit)
	})
	r.Get("/api/syllabus", h.Syllabus)
}

// Syllabus returns the roadmap with per-level lock state.
func (h *ArenaHandler) Syllabus(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, syllabusResponse(sess))
}

type problemRequest struct {
	Level int  `json:"level"`
	Boss  bool `json:"boss"`
}

type problemResponse struct {
	Problem string `json:"problem"`
	Boss    bool   `json:"boss"`
	Reward  int    `json:"reward"`
}

// GenerateProblem creates a fresh challenge for the requested level and
// stores it as the session's active challenge.
func (h *ArenaHandler) GenerateProblem(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req problemRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	_, level := sess.Progress()
	if req.Level == 0 {
		req.Level = level
	}

	if !progression.CanGenerateCode(sess.Role) {
		Error(w, http.StatusForbidden, "code generation is not available on trial accounts")
		return
	}
	if progression.IsLocked(sess.Role, req.Level, level) {
		Error(w, http.StatusForbidden, "that level is still locked")
		return
	}

	problem, err := h.tutor.GenerateProblem(r.Context(), req.Level, req.Boss)
	if err != nil {
		slog.Error("Problem generation failed", "error", err, "identity", sess.Identity)
		Error(w, http.StatusServiceUnavailable, "could not create a problem, try again")
		return
	}

	sess.SetChallenge(problem, req.Boss)

	JSON(w, http.StatusOK, problemResponse{
		Problem: problem,
		Boss:    req.Boss,
		Reward:  rewardFor(req.Boss),
	})
}

type submitRequest struct {
	Source string `json:"source"`
}

type submitResponse struct {
	Passed   bool   `json:"passed"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Feedback string `json:"feedback,omitempty"`
	Reward   int    `json:"reward,omitempty"`
	XP       int    `json:"xp"`
	Level    int    `json:"level"`
}

// Submit grades the learner's solution against the active challenge.
// Sequencing: sandbox execution first, LLM judgment only on a clean run,
// XP credit only on a judge pass. A failed credit reports failure — the
// pass is never silently swallowed into a success with no XP.
func (h *ArenaHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(strings.TrimSpace(req.Source)) < minSubmissionLength {
		Error(w, http.StatusBadRequest, "write some code first")
		return
	}
	challenge, boss := sess.Challenge()
	if challenge == "" {
		Error(w, http.StatusBadRequest, "generate a problem before submitting")
		return
	}
	if !progression.CanGenerateCode(sess.Role) {
		Error(w, http.StatusForbidden, "the arena is not available on trial accounts")
		return
	}

	sess.RecordAttempt()

	verdict, err := h.oracle.Grade(r.Context(), challenge, req.Source)
	if err != nil {
		slog.Error("Grading failed", "error", err, "identity", sess.Identity)
		if errors.Is(err, grader.ErrExecutionUnavailable) {
			Error(w, http.StatusServiceUnavailable, "the code runner is unavailable, try again")
			return
		}
		Error(w, http.StatusServiceUnavailable, "grading is unavailable, try again")
		return
	}

	xp, level := sess.Progress()
	resp := submitResponse{
		Passed:   verdict.Passed,
		Stdout:   verdict.Stdout,
		Stderr:   verdict.Stderr,
		Feedback: verdict.Feedback,
		XP:       xp,
		Level:    level,
	}

	if !verdict.Passed {
		JSON(w, http.StatusOK, resp)
		return
	}

	reward := rewardFor(boss)

	// Operator accounts have no durable progress record to credit.
	if sess.Role == domain.RoleAdmin {
		resp.Reward = reward
		sess.ClearChallenge()
		JSON(w, http.StatusOK, resp)
		return
	}

	snap, err := h.engine.Credit(r.Context(), sess.Identity, reward)
	if err != nil {
		// The session cache stays untouched: no optimistic increment
		// without a durable write behind it.
		slog.Error("Credit failed", "error", err, "identity", sess.Identity)
		Error(w, http.StatusServiceUnavailable, "your pass could not be recorded, submit again")
		return
	}

	sess.ApplySnapshot(*snap)
	sess.ClearChallenge()

	resp.Reward = reward
	resp.XP = snap.XP
	resp.Level = snap.Level
	JSON(w, http.StatusOK, resp)
}

func rewardFor(boss bool) int {
	if boss {
		return progression.RewardBossPass
	}
	return progression.RewardArenaPass
}
