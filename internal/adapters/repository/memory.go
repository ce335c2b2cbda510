package repository

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process memory.
//
// Records are held in their encoded form so callers never share slices with
// the store, exactly as with the networked backends.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]byte)}
}

// Save implements SessionStore.
func (m *MemorySessionStore) Save(_ context.Context, s Session) (err error) {
	start := time.Now()
	defer func() { observe(backendMemory, "save", start, err) }()
	if s.UserID == "" {
		return ErrEmptyKey
	}
	b, err := encodeSession(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.UserID] = b
	m.mu.Unlock()
	return nil
}

// Load implements SessionStore.
func (m *MemorySessionStore) Load(_ context.Context, userID string) (s Session, err error) {
	start := time.Now()
	defer func() { observe(backendMemory, "load", start, err) }()
	m.mu.RLock()
	b, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return Session{}, fmt.Errorf("session %q: %w", userID, ErrNotFound)
	}
	return decodeSession(b)
}

// Delete implements SessionStore.
func (m *MemorySessionStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[userID]; !ok {
		return fmt.Errorf("session %q: %w", userID, ErrNotFound)
	}
	delete(m.sessions, userID)
	return nil
}

// Count implements SessionStore.
func (m *MemorySessionStore) Count(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// MemoryDatasetStore keeps datasets in process memory.
type MemoryDatasetStore struct {
	mu       sync.RWMutex
	datasets map[string][]string
}

// NewMemoryDatasetStore creates an empty in-memory dataset store.
func NewMemoryDatasetStore() *MemoryDatasetStore {
	return &MemoryDatasetStore{datasets: make(map[string][]string)}
}

// Put implements DatasetStore.
func (m *MemoryDatasetStore) Put(_ context.Context, key string, ids []string) error {
	if key == "" {
		return ErrEmptyKey
	}
	cp := append(make([]string, 0, len(ids)), ids...)
	m.mu.Lock()
	m.datasets[key] = cp
	m.mu.Unlock()
	return nil
}

// ItemIDs implements DatasetStore.
func (m *MemoryDatasetStore) ItemIDs(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	ids, ok := m.datasets[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dataset %q: %w", key, ErrNotFound)
	}
	return append(make([]string, 0, len(ids)), ids...), nil
}
