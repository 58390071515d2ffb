package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pycoach/server/internal/domain"
	"github.com/pycoach/server/internal/session"
	"github.com/pycoach/server/internal/tutor"
)

// TutorHandler handles coach chat (SSE) and the logic visualizer.
type TutorHandler struct {
	tutor *tutor.Service
}

// NewTutorHandler creates the tutor handler.
func NewTutorHandler(svc *tutor.Service) *TutorHandler {
	return &TutorHandler{tutor: svc}
}

// RegisterRoutes registers tutor routes.
func (h *TutorHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/tutor", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Post("/visualize", h.Visualize)
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat streams the coach's reply as server-sent events: "token" events
// while the model is talking, then one "done" event carrying the
// visualizer trigger. The transcript is mutated only after the stream
// completes; a mid-stream failure leaves the session unchanged.
func (h *TutorHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var reply strings.Builder
	for chunk, err := range h.tutor.Chat(r.Context(), sess, req.Message) {
		if err != nil {
			slog.Error("Tutor stream failed", "error", err, "identity", sess.Identity)
			if writeErr := writeSSE(w, "error", "The coach is unavailable right now. Try again."); writeErr != nil {
				slog.Warn("failed to write SSE error event", "error", writeErr)
			}
			flusher.Flush()
			return
		}
		reply.WriteString(chunk)
		if err := writeSSE(w, "token", chunk); err != nil {
			slog.Warn("failed to write SSE token event", "error", err)
			return
		}
		flusher.Flush()
	}

	sess.AppendMessage(domain.SpeakerLearner, req.Message)
	sess.AppendMessage(domain.SpeakerCoach, reply.String())

	done := "ok"
	if tutor.ShouldVisualize(req.Message) {
		sess.SetVisualization(reply.String())
		done = "visualize"
	} else {
		sess.ClearVisualization()
	}

	if err := writeSSE(w, "done", done); err != nil {
		slog.Warn("failed to write SSE done event", "error", err)
		return
	}
	flusher.Flush()
}

type visualizeResponse struct {
	DOT string `json:"dot"`
}

// Visualize converts the pending coach explanation (or, failing that,
// the last coach message) into Graphviz DOT source for the UI to render.
func (h *TutorHandler) Visualize(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	text := sess.VisualizationSource()
	if text == "" {
		Error(w, http.StatusBadRequest, "nothing to visualize yet")
		return
	}

	dot, err := h.tutor.GenerateDOT(r.Context(), text)
	if err != nil {
		slog.Error("Visualization failed", "error", err, "identity", sess.Identity)
		Error(w, http.StatusServiceUnavailable, "could not visualize, try again")
		return
	}

	sess.ClearVisualization()
	JSON(w, http.StatusOK, visualizeResponse{DOT: dot})
}
