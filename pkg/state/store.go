package state

import (
	"fmt"
	"sync"

	"github.com/nexus-rd/nexus/pkg/domain"
)

// MemoryStore is an in-memory session registry keyed by session ID
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Put registers a session. Re-registering an ID is a state violation.
func (m *MemoryStore) Put(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID() == "" {
		return fmt.Errorf("session ID is required")
	}
	if _, exists := m.sessions[session.ID()]; exists {
		return fmt.Errorf("%w: duplicate session %s", domain.ErrStateViolation, session.ID())
	}

	m.sessions[session.ID()] = session
	return nil
}

// Get retrieves a session by ID
func (m *MemoryStore) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, sessionID)
	}
	return session, nil
}

// Delete removes a session from the registry
func (m *MemoryStore) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// List returns snapshots of all registered sessions
func (m *MemoryStore) List() []domain.SessionSnapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	snapshots := make([]domain.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		snapshots = append(snapshots, s.Snapshot())
	}
	return snapshots
}

// ActiveCount returns the number of sessions in a non-terminal phase
func (m *MemoryStore) ActiveCount() int {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	count := 0
	for _, s := range sessions {
		if !s.Phase().Terminal() {
			count++
		}
	}
	return count
}
