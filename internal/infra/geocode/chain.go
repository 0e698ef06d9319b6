package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"picproof/internal/domain"
)

// Chain tries providers in order; the first non-empty result wins. Total
// failure yields an empty name and no error, leaving the verify page to show
// "address unknown".
type Chain struct {
	providers []domain.Geocoder
}

func NewChain(providers ...domain.Geocoder) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	for _, p := range c.providers {
		name, err := p.ReverseGeocode(ctx, lat, lon)
		if err != nil {
			slog.Warn("geocode provider failed", "error", err)
			continue
		}
		if name != "" {
			return name, nil
		}
	}
	return "", nil
}

// Cached memoizes place names per coordinate pair. Coordinates are immutable
// once recorded, so a long TTL only bounds memory, not staleness.
type Cached struct {
	inner domain.Geocoder
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	name      string
	expiresAt time.Time
}

func NewCached(inner domain.Geocoder, ttl time.Duration) *Cached {
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lon)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.name, nil
	}

	name, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	if name != "" {
		c.mu.Lock()
		c.entries[key] = cacheEntry{name: name, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()
	}
	return name, nil
}
