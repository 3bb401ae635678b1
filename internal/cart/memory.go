package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryBackend keeps values in process memory. It is the default backend and
// the one used by tests.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
	hub  *hub
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend(logger *zap.Logger) *MemoryBackend {
	return &MemoryBackend{data: map[string][]byte{}, hub: newHub(logger)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	v := append([]byte{}, value...)
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	m.hub.publish(Change{Key: key, Value: v, Origin: Origin(ctx)})
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	m.hub.publish(Change{Key: key, Origin: Origin(ctx)})
	return nil
}

func (m *MemoryBackend) Subscribe(ctx context.Context, key string) (<-chan Change, func(), error) {
	ch, cancel := m.hub.subscribe(ctx, key)
	return ch, cancel, nil
}

// Close ends all subscriptions. Stored values stay readable.
func (m *MemoryBackend) Close() error {
	m.hub.close()
	return nil
}
