package domain

import (
	"sync"
	"time"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerLearner Speaker = "learner"
	SpeakerCoach   Speaker = "coach"
)

// ChatMessage is a single entry in a session's tutor transcript.
type ChatMessage struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// SessionState holds the per-connected-user mutable state for one
// interactive session. It lives in memory for the lifetime of the session
// and is discarded on logout; nothing in it is durable.
//
// One session is touched from several goroutines at once: HTTP handlers,
// the chat socket's read loop, the middleware's last-seen bump and the
// idle reaper. Token, Authenticated, Role, Identity, DisplayName and
// CreatedAt are set before the session is published and never change;
// every other field is guarded by mu, and all reads and writes of those
// fields must go through the methods below.
type SessionState struct {
	Token         string
	Authenticated bool
	Role          Role
	Identity      string
	DisplayName   string
	CreatedAt     time.Time

	mu sync.Mutex

	// Cached progress snapshot; refreshed after every successful credit.
	XP     int
	Level  int
	Streak int

	Transcript           []ChatMessage
	ActiveChallenge      string
	BossChallenge        bool
	PendingVisualization string
	AttemptCounter       int

	LastSeenAt time.Time
}

// SessionSummary is a point-in-time copy of a session's mutable fields,
// safe to use after the lock has been released.
type SessionSummary struct {
	XP              int
	Level           int
	Streak          int
	Transcript      []ChatMessage
	ActiveChallenge string
	BossChallenge   bool
}

// Summary returns a consistent copy of the mutable session fields. The
// transcript slice is copied so callers can range over it while other
// goroutines keep appending.
func (s *SessionState) Summary() SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcript := make([]ChatMessage, len(s.Transcript))
	copy(transcript, s.Transcript)

	return SessionSummary{
		XP:              s.XP,
		Level:           s.Level,
		Streak:          s.Streak,
		Transcript:      transcript,
		ActiveChallenge: s.ActiveChallenge,
		BossChallenge:   s.BossChallenge,
	}
}

// AppendMessage records a transcript entry and bumps last-seen.
func (s *SessionState) AppendMessage(speaker Speaker, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Transcript = append(s.Transcript, ChatMessage{Speaker: speaker, Text: text})
	s.LastSeenAt = time.Now()
}

// LastCoachMessage returns the most recent coach reply, or "" if the
// coach has not spoken yet. The visualizer renders this message.
func (s *SessionState) LastCoachMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCoachMessage()
}

func (s *SessionState) lastCoachMessage() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Speaker == SpeakerCoach {
			return s.Transcript[i].Text
		}
	}
	return ""
}

// ApplySnapshot copies a progress snapshot into the session cache.
func (s *SessionState) ApplySnapshot(snap ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.XP = snap.XP
	s.Level = snap.Level
	s.Streak = snap.Streak
}

// Progress returns the cached xp and level.
func (s *SessionState) Progress() (xp, level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.XP, s.Level
}

// SetChallenge installs a fresh challenge and resets the attempt counter.
func (s *SessionState) SetChallenge(problem string, boss bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ActiveChallenge = problem
	s.BossChallenge = boss
	s.AttemptCounter = 0
}

// Challenge returns the active challenge text and whether it is a boss
// challenge. An empty text means no challenge is active.
func (s *SessionState) Challenge() (problem string, boss bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ActiveChallenge, s.BossChallenge
}

// ClearChallenge retires the active challenge after a pass.
func (s *SessionState) ClearChallenge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ActiveChallenge = ""
	s.BossChallenge = false
}

// RecordAttempt counts one grading attempt against the active challenge.
func (s *SessionState) RecordAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AttemptCounter++
}

// SetVisualization stores the coach explanation the visualizer should
// render next.
func (s *SessionState) SetVisualization(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PendingVisualization = text
}

// ClearVisualization discards any pending visualizer payload.
func (s *SessionState) ClearVisualization() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PendingVisualization = ""
}

// VisualizationSource returns the text the visualizer should render: the
// pending payload if one is set, otherwise the last coach reply.
func (s *SessionState) VisualizationSource() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PendingVisualization != "" {
		return s.PendingVisualization
	}
	return s.lastCoachMessage()
}

// Touch bumps the last-seen timestamp.
func (s *SessionState) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastSeenAt = time.Now()
}

// Idle reports whether the session has been inactive longer than ttl.
func (s *SessionState) Idle(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastSeenAt) > ttl
}
