package session

import (
	"context"
	"sync"

	"derogation-bot/internal/dialogue"
)

// MemoryStore keeps encoded snapshots in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (dialogue.State, error) {
	m.mu.RLock()
	raw := m.states[id]
	m.mu.RUnlock()
	return decode(raw)
}

func (m *MemoryStore) Set(_ context.Context, id string, st dialogue.State) error {
	raw, err := encode(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.states[id] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Merge(_ context.Context, id string, patch []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged, err := applyPatch(m.states[id], patch)
	if err != nil {
		return err
	}
	m.states[id] = merged
	return nil
}
