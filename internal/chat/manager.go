// Package chat provides the WebSocket tutor channel.
package chat

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Manager tracks active tutor sockets by session token so logout and the
// session reaper can close them.
type Manager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewManager creates a connection manager.
func NewManager() *Manager {
	return &Manager{active: make(map[string]*websocket.Conn)}
}

// Register adds a connection for a session token, replacing (and closing)
// any previous one.
func (m *Manager) Register(token string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[token]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}
	m.active[token] = conn
	slog.Info("Tutor socket registered")
}

// Unregister removes a connection if it is still the registered one.
func (m *Manager) Unregister(token string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[token]; ok && current == conn {
		delete(m.active, token)
		slog.Info("Tutor socket unregistered")
	}
}

// CloseSession terminates the socket for a session token, if any.
func (m *Manager) CloseSession(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.active[token]; ok {
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
		delete(m.active, token)
		slog.Info("Tutor socket closed")
	}
}
