// Package store persists one encoded workflow state per saga id.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when no state is stored under an id
var ErrNotFound = errors.New("state not found")

// StateStore keeps the persisted state of every running saga
type StateStore interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, state []byte) error
	Delete(ctx context.Context, id string) error
	// List returns the ids of all stored states
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Memory is an in-process StateStore. States are lost on restart.
type Memory struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{states: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), state...), nil
}

func (m *Memory) Save(_ context.Context, id string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = append([]byte(nil), state...)
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error {
	return nil
}
