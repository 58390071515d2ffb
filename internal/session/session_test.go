package session

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pycoach/server/internal/auth"
	"github.com/pycoach/server/internal/domain"
)

func testSeed() *auth.SessionSeed {
	return &auth.SessionSeed{
		Identity:    "a@x.com",
		DisplayName: "A Learner",
		Role:        domain.RoleLearner,
		Snapshot:    domain.ProgressSnapshot{Identity: "a@x.com", XP: 120, Level: 2},
	}
}

func TestCreateSetsCookieAndSeedsSession(t *testing.T) {
	m := NewManager(true)
	rec := httptest.NewRecorder()

	sess, err := m.Create(rec, testSeed())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("empty session token")
	}
	if !sess.Authenticated {
		t.Error("session not marked authenticated")
	}
	if sess.XP != 120 || sess.Level != 2 {
		t.Errorf("progress = (%d, %d), want (120, 2)", sess.XP, sess.Level)
	}
	if len(sess.Transcript) != 1 || sess.Transcript[0].Speaker != domain.SpeakerCoach {
		t.Errorf("transcript not seeded with a coach greeting: %+v", sess.Transcript)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || c.Value != sess.Token {
		t.Errorf("cookie = %s=%s, want %s=%s", c.Name, c.Value, CookieName, sess.Token)
	}
	if !c.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if c.Secure {
		t.Error("dev-mode cookie should not be Secure")
	}

	if got := m.Get(sess.Token); got != sess {
		t.Error("Get did not return the created session")
	}
}

func TestCreateUniqueTokens(t *testing.T) {
	m := NewManager(true)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		sess, err := m.Create(httptest.NewRecorder(), testSeed())
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if seen[sess.Token] {
			t.Fatalf("duplicate token %q", sess.Token)
		}
		seen[sess.Token] = true
	}
}

func TestDestroy(t *testing.T) {
	m := NewManager(true)
	sess, _ := m.Create(httptest.NewRecorder(), testSeed())

	rec := httptest.NewRecorder()
	m.Destroy(rec, sess.Token)

	if m.Get(sess.Token) != nil {
		t.Error("session still resolvable after Destroy")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Error("Destroy should clear the cookie")
	}
}

func TestMiddleware(t *testing.T) {
	m := NewManager(true)
	sess, _ := m.Create(httptest.NewRecorder(), testSeed())

	var got *domain.SessionState
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})

	// With a valid cookie the session lands in context.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.Token})
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)
	if got != sess {
		t.Error("middleware did not attach the session")
	}

	// Unknown token passes through with no session.
	got = nil
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "deadbeef"})
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)
	if got != nil {
		t.Error("unknown token should not resolve to a session")
	}

	// No cookie at all also passes through.
	got = nil
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)
	if got != nil {
		t.Error("cookieless request should not resolve to a session")
	}
}

func TestMiddlewareRefreshesLastSeen(t *testing.T) {
	m := NewManager(true)
	sess, _ := m.Create(httptest.NewRecorder(), testSeed())
	sess.LastSeenAt = time.Now().Add(-time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.Token})
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), req)

	if time.Since(sess.LastSeenAt) > time.Minute {
		t.Error("middleware did not refresh LastSeenAt")
	}
}

// One session is shared between HTTP handlers, the chat socket and the
// reaper; this exercises all of them at once and relies on the race
// detector to flag unguarded access.
func TestConcurrentSessionAccess(t *testing.T) {
	m := NewManager(true)
	sess, err := m.Create(httptest.NewRecorder(), testSeed())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const workers = 8
	const rounds = 50

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		s.AppendMessage(domain.SpeakerLearner, "ping")
		s.ApplySnapshot(domain.ProgressSnapshot{XP: 20, Level: 1})
		s.SetChallenge("print something", false)
		s.RecordAttempt()
		_, _ = s.Progress()
		_ = s.Summary()
		_ = s.VisualizationSource()
	}))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
				req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.Token})
				handler.ServeHTTP(httptest.NewRecorder(), req)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			m.Reap(time.Hour)
		}
	}()
	wg.Wait()

	// Greeting plus one append per request; no appends may be lost.
	if got := len(sess.Summary().Transcript); got != 1+workers*rounds {
		t.Errorf("transcript = %d entries, want %d", got, 1+workers*rounds)
	}
}

func TestReap(t *testing.T) {
	m := NewManager(true)
	stale, _ := m.Create(httptest.NewRecorder(), testSeed())
	fresh, _ := m.Create(httptest.NewRecorder(), testSeed())
	stale.LastSeenAt = time.Now().Add(-2 * time.Hour)

	expired := m.Reap(time.Hour)
	if len(expired) != 1 || expired[0] != stale.Token {
		t.Errorf("expired = %v, want [%s]", expired, stale.Token)
	}
	if m.Get(stale.Token) != nil {
		t.Error("stale session survived the reaper")
	}
	if m.Get(fresh.Token) == nil {
		t.Error("fresh session was reaped")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}
