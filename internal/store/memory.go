package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryBackend is an in-process Backend.
// Use this for development/testing or single-instance deployments.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string][]byte)}
}

// Get retrieves a value by key.
func (m *MemoryBackend) Get(ctx context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Scan returns the pairs under prefix sorted by key.
func (m *MemoryBackend) Scan(ctx context.Context, prefix []byte) ([]KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []KV
	for k, v := range m.entries {
		if bytes.HasPrefix([]byte(k), prefix) {
			out = append(out, KV{Key: []byte(k), Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out, nil
}

// Apply commits the batch under a single lock.
func (m *MemoryBackend) Apply(ctx context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range writes {
		if w.Delete {
			delete(m.entries, string(w.Key))
			continue
		}
		m.entries[string(w.Key)] = append([]byte(nil), w.Value...)
	}
	return nil
}

// Stats reports the number of stored keys.
func (m *MemoryBackend) Stats(ctx context.Context) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"backend":    "memory",
		"total_keys": len(m.entries),
	}, nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
