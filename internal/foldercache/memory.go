package foldercache

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// Memory is a mutex-guarded in-process cache.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]float32
}

// NewMemory returns an empty cache.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]float32)}
}

func (m *Memory) Get(_ context.Context, path string) ([]float32, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[path]
	if !ok {
		return nil, false, nil
	}
	return vecmath.Clone(v), true, nil
}

func (m *Memory) Put(_ context.Context, path string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = vecmath.Clone(embedding)
	return nil
}

// Flush is a no-op.
func (m *Memory) Flush(context.Context) error {
	return nil
}

// Len returns the number of cached folders.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
