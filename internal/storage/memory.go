package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a process-local Store. It is only shared between callers
// holding the same instance.
type MemoryStore[T ValidatingSpec] struct {
	mu      sync.RWMutex
	records map[string]T
}

func NewMemoryStore[T ValidatingSpec]() *MemoryStore[T] {
	return &MemoryStore[T]{
		records: map[string]T{},
	}
}

func (m *MemoryStore[T]) Create(_ context.Context, id string, v T) error {
	if err := newAsset(id, v).Validate(); err != nil {
		return fmt.Errorf("validating %q: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; ok {
		return ErrExists
	}
	m.records[id] = v
	return nil
}

func (m *MemoryStore[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.records[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryStore[T]) GetAll(_ context.Context) (map[string]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vals := make(map[string]T, len(m.records))
	for id, v := range m.records {
		vals[id] = v
	}
	return vals, nil
}
