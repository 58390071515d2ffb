package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pycoach/server/internal/auth"
	"github.com/pycoach/server/internal/chat"
	"github.com/pycoach/server/internal/session"
)

// AuthHandler handles login, registration and logout.
type AuthHandler struct {
	gate     *auth.Gate
	sessions *session.Manager
	sockets  *chat.Manager
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(gate *auth.Gate, sessions *session.Manager, sockets *chat.Manager) *AuthHandler {
	return &AuthHandler{gate: gate, sessions: sessions, sockets: sockets}
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/logout", h.Logout)
	})
	r.Get("/api/me", h.Me)
}

type loginRequest struct {
	Identity   string `json:"identity"`
	Credential string `json:"credential"`
}

type registerRequest struct {
	Name       string `json:"name"`
	Identity   string `json:"identity"`
	Credential string `json:"credential"`
}

// Login authenticates and establishes a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	seed, err := h.gate.Authenticate(r.Context(), req.Identity, req.Credential)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.Error("Login failed", "error", err)
		Error(w, http.StatusServiceUnavailable, "sign-in is unavailable right now, try again")
		return
	}

	// A fresh login replaces any previous session for this browser.
	if c, err := r.Cookie(session.CookieName); err == nil {
		h.sockets.CloseSession(c.Value)
		h.sessions.Destroy(w, c.Value)
	}

	sess, err := h.sessions.Create(w, seed)
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to establish session")
		return
	}

	JSON(w, http.StatusOK, meResponse(sess))
}

// Register creates a new learner account. It does not sign the learner
// in; the UI follows up with a login.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.gate.Register(r.Context(), req.Name, req.Identity, req.Credential)
	switch {
	case err == nil:
		JSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	case errors.Is(err, auth.ErrAlreadyExists):
		Error(w, http.StatusConflict, "that email is already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		Error(w, http.StatusBadRequest, "name, email and password are required")
	default:
		slog.Error("Registration failed", "error", err)
		Error(w, http.StatusServiceUnavailable, "registration is unavailable right now, try again")
	}
}

// Logout discards the session and closes any live tutor socket.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil {
		h.sockets.CloseSession(c.Value)
		h.sessions.Destroy(w, c.Value)
	}
	JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the signed-in user's view of their session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, meResponse(sess))
}
