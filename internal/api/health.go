package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pycoach/server/internal/store"
)

// HealthHandler reports process and store health.
type HealthHandler struct {
	repo     store.Repository
	sessions interface{ Count() int }
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(repo store.Repository, sessions interface{ Count() int }) *HealthHandler {
	return &HealthHandler{repo: repo, sessions: sessions}
}

// RegisterHealth registers the health routes. Both paths ping the store;
// /healthz is kept as the conventional probe alias.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/healthz", h.Health)
}

// Health checks store connectivity and returns a status summary.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "ok"
	code := http.StatusOK
	dbStatus := "ok"

	if err := h.repo.Ping(ctx); err != nil {
		status = "degraded"
		dbStatus = err.Error()
		code = http.StatusServiceUnavailable
	}

	JSON(w, code, map[string]interface{}{
		"status":    status,
		"database":  dbStatus,
		"sessions":  h.sessions.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
