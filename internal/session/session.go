// Package session manages per-user interactive session state.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pycoach/server/internal/auth"
	"github.com/pycoach/server/internal/domain"
)

const (
	// CookieName carries the session token.
	CookieName = "pycoach_session"

	cookieMaxAge = 24 * time.Hour
)

type contextKey int

const sessionKey contextKey = iota

// FromContext extracts the session from the request context, or nil for
// an unauthenticated request.
func FromContext(ctx context.Context) *domain.SessionState {
	if s, ok := ctx.Value(sessionKey).(*domain.SessionState); ok {
		return s
	}
	return nil
}

// Manager owns all live sessions. Sessions are process-local: a restart
// logs everyone out, durable progress lives in the store.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*domain.SessionState
	isDev    bool
}

// NewManager creates a session manager.
func NewManager(isDev bool) *Manager {
	return &Manager{
		sessions: make(map[string]*domain.SessionState),
		isDev:    isDev,
	}
}

// Create builds a session from an authentication seed, registers it and
// sets the session cookie.
func (m *Manager) Create(w http.ResponseWriter, seed *auth.SessionSeed) (*domain.SessionState, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &domain.SessionState{
		Token:         token,
		Authenticated: true,
		Role:          seed.Role,
		Identity:      seed.Identity,
		DisplayName:   seed.DisplayName,
		Transcript: []domain.ChatMessage{
			{Speaker: domain.SpeakerCoach, Text: "Hello! I'm ready to teach."},
		},
		CreatedAt:  now,
		LastSeenAt: now,
	}
	sess.ApplySnapshot(seed.Snapshot)

	m.mu.Lock()
	m.sessions[token] = sess
	m.mu.Unlock()

	m.setCookie(w, token, int(cookieMaxAge.Seconds()))
	slog.Info("Session created", "identity", seed.Identity, "role", seed.Role)
	return sess, nil
}

// Get returns the session for a token, or nil.
func (m *Manager) Get(token string) *domain.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[token]
}

// Destroy removes a session and clears the cookie. All in-memory state
// (transcript, active challenge, pending visualization) goes with it.
func (m *Manager) Destroy(w http.ResponseWriter, token string) {
	m.mu.Lock()
	sess := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()

	if sess != nil {
		slog.Info("Session destroyed", "identity", sess.Identity)
	}
	m.setCookie(w, "", -1)
}

// Reap removes sessions idle beyond ttl and returns their tokens so the
// caller can close any live sockets.
func (m *Manager) Reap(ttl time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []string
	for token, sess := range m.sessions {
		if sess.Idle(ttl) {
			delete(m.sessions, token)
			expired = append(expired, token)
			slog.Info("Session expired", "identity", sess.Identity)
		}
	}
	return expired
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Middleware resolves the session cookie into request context. Requests
// without a valid session pass through with no session attached; handlers
// that need one reject those themselves.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		sess := m.Get(c.Value)
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}

		sess.Touch()
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StartReaper launches the idle-session reaper. onExpire is called with
// each expired token (used to close live chat sockets).
func (m *Manager) StartReaper(ctx context.Context, ttl time.Duration, onExpire func(token string)) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, token := range m.Reap(ttl) {
					if onExpire != nil {
						onExpire(token)
					}
				}
			}
		}
	}()
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !m.isDev,
	})
}

func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
