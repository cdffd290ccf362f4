package params

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is the in-memory partition used for hot interprocess signals.
// Its contents are lost when the manager exits.
type MemoryStore struct {
	mu     sync.RWMutex
	table  *KeyTable
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory partition.
func NewMemoryStore(table *KeyTable) *MemoryStore {
	return &MemoryStore{
		table:  table,
		values: make(map[string][]byte),
	}
}

// Table returns the key table the store enforces.
func (m *MemoryStore) Table() *KeyTable { return m.table }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := m.table.Check(key); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.values[key]
	return slices.Clone(b), ok, nil
}

func (m *MemoryStore) GetBool(ctx context.Context, key string) (bool, error) {
	b, _, err := m.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return decodeBool(b), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	if err := m.table.Check(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		value = []byte{}
	}
	m.values[key] = slices.Clone(value)
	return nil
}

func (m *MemoryStore) PutBool(ctx context.Context, key string, value bool) error {
	return m.Put(ctx, key, encodeBool(value))
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if err := m.table.Check(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) ClearAll(_ context.Context, scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.values {
		if s, ok := m.table.Scope(key); ok && s.Has(scope) {
			delete(m.values, key)
		}
	}
	return nil
}

func (m *MemoryStore) Snapshot(_ context.Context) (View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return NewView(m.values), nil
}
