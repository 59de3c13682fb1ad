package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps the key space in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scopes: make(map[string]map[string]string)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Get(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.scopes[scope][key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kv, ok := m.scopes[scope]
	if !ok {
		kv = make(map[string]string)
		m.scopes[scope] = kv
	}
	kv[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, scope string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kv, ok := m.scopes[scope]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(kv, k)
	}
	if len(kv) == 0 {
		delete(m.scopes, scope)
	}
	return nil
}

func (m *MemoryStore) Scopes(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for scope, kv := range m.scopes {
		if _, ok := kv[key]; ok {
			out = append(out, scope)
		}
	}
	sort.Strings(out)
	return out, nil
}
