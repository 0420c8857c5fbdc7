package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("session: not found")

// Store persists encoded sessions. Implementations must expire records
// after ttl and return ErrNotFound for missing or expired ids.
type Store interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	// Rotate moves data to newID and removes oldID.
	Rotate(ctx context.Context, oldID, newID string, data []byte, ttl time.Duration) error
}

// MemoryStore keeps sessions in process memory. Useful for tests and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memItem
	clock func() time.Time
}

type memItem struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]memItem{}, clock: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !m.clock().Before(it.expiresAt) {
		delete(m.items, id)
		return nil, ErrNotFound
	}
	out := make([]byte, len(it.data))
	copy(out, it.data)
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(id, data, ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) Rotate(_ context.Context, oldID, newID string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, oldID)
	m.put(newID, data, ttl)
	return nil
}

// Len reports the number of stored (possibly expired) sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryStore) put(id string, data []byte, ttl time.Duration) {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.items[id] = memItem{data: cp, expiresAt: m.clock().Add(ttl)}
}
