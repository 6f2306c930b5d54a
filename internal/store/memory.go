package store

import (
	"context"
	"sync"

	"card-gacha/internal/economy"
)

// Memory keeps snapshots in process. Loads and saves copy, so callers never
// share state with the stored value.
type Memory struct {
	mu     sync.Mutex
	data   map[string]*economy.Snapshot
	closed bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]*economy.Snapshot)}
}

func (m *Memory) Load(_ context.Context, tenantID string) (*economy.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	snap, ok := m.data[tenantID]
	if !ok {
		return economy.NewSnapshot(), nil
	}
	return snap.Clone(), nil
}

func (m *Memory) Save(_ context.Context, tenantID string, snap *economy.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[tenantID] = snap.Clone()
	return nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
