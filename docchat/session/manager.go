package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/docchat/docchat/conversation"
)

// Manager keeps isolated in-memory sessions. Sessions share no state, so the map lock
// is the only cross-session lock.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	completer Completer
	ingester  Ingester
	logger    zerolog.Logger
	bufOpts   []conversation.Option
}

// NewManager creates an empty manager. bufOpts apply to every new session's buffer.
func NewManager(completer Completer, ingester Ingester, logger zerolog.Logger, bufOpts ...conversation.Option) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		completer: completer,
		ingester:  ingester,
		logger:    logger,
		bufOpts:   bufOpts,
	}
}

// Create registers a new session already waiting for a username.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.completer, m.ingester, m.logger, m.bufOpts...)
	s.Begin()

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Debug().Str("session", s.ID()).Msg("session created")
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete drops a session and reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// PruneIdle drops sessions not used since cutoff and returns how many were removed.
func (m *Manager) PruneIdle(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info().Int("removed", removed).Int("remaining", len(m.sessions)).Msg("idle sessions pruned")
	}
	return removed
}
