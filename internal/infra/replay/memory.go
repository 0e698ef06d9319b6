// Package replay provides the optional nonce replay guard. The signature
// protocol itself is time-window-only; deployments wanting single-use nonces
// enable one of these stores with a TTL covering the full skew window.
package replay

import (
	"context"
	"sync"
	"time"

	"picproof/internal/domain"
)

type memoryStore struct {
	mu   sync.Mutex
	now  func() time.Time
	seen map[string]time.Time
}

func NewMemoryStore(now func() time.Time) domain.NonceStore {
	if now == nil {
		now = time.Now
	}
	return &memoryStore{now: now, seen: make(map[string]time.Time)}
}

func (m *memoryStore) Register(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, ok := m.seen[nonce]; ok && now.Before(expiry) {
		return false, nil
	}
	// Opportunistic sweep keeps the map bounded by the replay window.
	for k, expiry := range m.seen {
		if now.After(expiry) {
			delete(m.seen, k)
		}
	}
	m.seen[nonce] = now.Add(ttl)
	return true, nil
}
