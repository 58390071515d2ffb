package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pycoach/server/internal/auth"
	"github.com/pycoach/server/internal/chat"
	"github.com/pycoach/server/internal/config"
	"github.com/pycoach/server/internal/domain"
	"github.com/pycoach/server/internal/grader"
	"github.com/pycoach/server/internal/llm"
	"github.com/pycoach/server/internal/progression"
	"github.com/pycoach/server/internal/sandbox"
	"github.com/pycoach/server/internal/session"
	"github.com/pycoach/server/internal/store"
	"github.com/pycoach/server/internal/tutor"
)

// fakeRepo is an in-memory Repository backing the handler tests.
type fakeRepo struct {
	accounts map[string]*domain.LearnerAccount
	getErr   error
	updErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: make(map[string]*domain.LearnerAccount)}
}

func (f *fakeRepo) GetAccount(ctx context.Context, identity string) (*domain.LearnerAccount, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	acct, ok := f.accounts[identity]
	if !ok {
		return nil, nil
	}
	copied := *acct
	return &copied, nil
}

func (f *fakeRepo) CreateAccount(ctx context.Context, acct *domain.LearnerAccount) error {
	if _, ok := f.accounts[acct.Identity]; ok {
		return store.ErrAlreadyExists
	}
	copied := *acct
	f.accounts[acct.Identity] = &copied
	return nil
}

func (f *fakeRepo) UpdateProgress(ctx context.Context, identity string, xp, level, expectedXP int) error {
	if f.updErr != nil {
		return f.updErr
	}
	acct, ok := f.accounts[identity]
	if !ok || acct.XP != expectedXP {
		return store.ErrConflict
	}
	acct.XP = xp
	acct.Level = level
	return nil
}

func (f *fakeRepo) UpdateStreak(ctx context.Context, identity string, streak int) error {
	if acct, ok := f.accounts[identity]; ok {
		acct.Streak = streak
	}
	return nil
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

// fakeRunner returns a fixed execution result or error.
type fakeRunner struct {
	result sandbox.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, source string) (*sandbox.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := f.result
	return &copied, nil
}

// testEnv wires the full handler stack against fakes.
type testEnv struct {
	router   chi.Router
	repo     *fakeRepo
	runner   *fakeRunner
	llm      *llm.MockClient
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Admins: []config.AllowListEntry{
			{Identity: "ops@pycoach.dev", DisplayName: "Operator", Credential: "op-secret"},
		},
		Trials: []config.AllowListEntry{
			{Identity: "demo@pycoach.dev", DisplayName: "Demo", Credential: "demo-secret"},
		},
	}

	env := &testEnv{
		repo:     newFakeRepo(),
		runner:   &fakeRunner{},
		llm:      &llm.MockClient{},
		sessions: session.NewManager(true),
	}

	gate := auth.NewGate(cfg, env.repo)
	sockets := chat.NewManager()
	svc := tutor.NewService(env.llm, "chat-model", "fast-model")
	oracle := grader.NewOracle(env.runner, env.llm, "fast-model")
	engine := progression.NewEngine(env.repo)

	r := chi.NewRouter()
	r.Use(env.sessions.Middleware)
	NewAuthHandler(gate, env.sessions, sockets).RegisterRoutes(r)
	NewTutorHandler(svc).RegisterRoutes(r)
	NewArenaHandler(svc, oracle, engine).RegisterRoutes(r)

	env.router = r
	return env
}

// seedLearner creates a stored account with the given progress.
func (env *testEnv) seedLearner(t *testing.T, identity, password string, xp int) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	env.repo.accounts[identity] = &domain.LearnerAccount{
		Identity:       identity,
		DisplayName:    "Test Learner",
		CredentialHash: string(hash),
		XP:             xp,
		Level:          progression.LevelForXP(xp),
	}
}

// login signs in and returns the session cookie.
func (env *testEnv) login(t *testing.T, identity, credential string) *http.Cookie {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"identity": identity, "credential": credential}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge > 0 {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

// do performs one request against the router.
func (env *testEnv) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}
