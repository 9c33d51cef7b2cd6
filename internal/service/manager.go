package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-console/internal/observability"
)

// Manager is the registry of live admin sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	gateway Gateway
	sources SourceFactory
	logger  *zap.Logger
	metrics *observability.Metrics
}

// ManagerDeps bundles dependencies for the session manager.
type ManagerDeps struct {
	Gateway Gateway
	Sources SourceFactory
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewManager constructs the manager.
func NewManager(deps ManagerDeps) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		gateway:  deps.Gateway,
		sources:  deps.Sources,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
}

// Open creates and starts a new session. A session that fails to start is
// never registered.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	session := NewSession(uuid.NewString(), m.gateway, m.sources, m.logger, m.metrics)
	if err := session.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()
	return session, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// Close stops and removes a session. Reports whether it existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	session.Stop()
	return true
}

// CloseAll tears down every session, used on service shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Stop()
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
