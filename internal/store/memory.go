package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and the terminal UI.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
	tasks    map[string]*VideoTask
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*SessionRecord),
		tasks:    make(map[string]*VideoTask),
	}
}

func (m *MemoryStore) PutSession(_ context.Context, rec *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.sessions[rec.ID]
	var stored int64
	if exists {
		stored = cur.Version
	}
	if rec.Version != stored+1 {
		return ErrVersionConflict
	}
	if exists {
		rec.CreatedAt = cur.CreatedAt
	}

	stamp(&rec.CreatedAt, &rec.UpdatedAt)
	m.sessions[rec.ID] = rec.Clone()
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id].Clone(), nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) PutTask(_ context.Context, task *VideoTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp(&task.CreatedAt, &task.UpdatedAt)
	c := *task
	m.tasks[task.ID] = &c
	return nil
}

func (m *MemoryStore) GetTask(_ context.Context, id string) (*VideoTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}
