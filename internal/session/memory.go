package session

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps sessions in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRepository) Get(_ context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryRepository) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current int64
	if stored, ok := m.sessions[s.UserID]; ok {
		current = stored.Version
	}
	if current != s.Version {
		return ErrConflict
	}
	s.Version++
	s.UpdatedAt = m.now()
	m.sessions[s.UserID] = s.Clone()
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *MemoryRepository) PruneIdle(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(before) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryRepository) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

func (m *MemoryRepository) Close() error { return nil }
