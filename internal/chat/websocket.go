package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/pycoach/server/internal/domain"
	"github.com/pycoach/server/internal/session"
	"github.com/pycoach/server/internal/tutor"
)

// WebSocketHandler upgrades /ws/chat connections and runs the tutor loop
// over them: one inbound learner message, one streamed coach reply.
type WebSocketHandler struct {
	tutor         *tutor.Service
	cm            *Manager
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates the tutor WebSocket handler.
func NewWebSocketHandler(svc *tutor.Service, cm *Manager, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{tutor: svc, cm: cm, allowedOrigin: allowedOrigin, isDev: isDev}
}

// inbound is what the client sends.
type inbound struct {
	Message string `json:"message"`
}

// outbound frames: "token" carries a streamed chunk, "done" the full
// reply plus the visualizer trigger, "error" a human-readable message.
type outbound struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Visualize bool   `json:"visualize,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "identity", sess.Identity)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	h.cm.Register(sess.Token, ws)
	defer h.cm.Unregister(sess.Token, ws)

	ctx := r.Context()
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				return
			}
			slog.Debug("WebSocket read error", "error", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || strings.TrimSpace(in.Message) == "" {
			h.write(ctx, ws, outbound{Type: "error", Error: "message is required"})
			continue
		}

		h.handleMessage(ctx, ws, sess, in.Message)
	}
}

// handleMessage streams one coach reply. The transcript is only mutated
// after the stream has fully completed; a failed stream leaves the
// session state untouched.
func (h *WebSocketHandler) handleMessage(ctx context.Context, ws *websocket.Conn, sess *domain.SessionState, prompt string) {
	var reply strings.Builder

	for chunk, err := range h.tutor.Chat(ctx, sess, prompt) {
		if err != nil {
			slog.Error("Tutor stream failed", "error", err, "identity", sess.Identity)
			h.write(ctx, ws, outbound{Type: "error", Error: "The coach is unavailable right now. Try again."})
			return
		}
		reply.WriteString(chunk)
		if err := h.write(ctx, ws, outbound{Type: "token", Text: chunk}); err != nil {
			return
		}
	}

	sess.AppendMessage(domain.SpeakerLearner, prompt)
	sess.AppendMessage(domain.SpeakerCoach, reply.String())

	visualize := tutor.ShouldVisualize(prompt)
	if visualize {
		sess.SetVisualization(reply.String())
	} else {
		sess.ClearVisualization()
	}

	h.write(ctx, ws, outbound{Type: "done", Text: reply.String(), Visualize: visualize})
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, msg outbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
		return err
	}
	return nil
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
