package cart

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSnapshot is returned by a Repository when nothing is stored under a key.
var ErrNoSnapshot = errors.New("cart snapshot not found")

// Repository stores serialized cart snapshots. Implementations live in
// internal/storage; MemoryRepository is the in-process one.
type Repository interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// MemoryRepository keeps snapshots in process memory. Contents do not
// survive a restart.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string][]byte)}
}

func (m *MemoryRepository) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryRepository) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}
