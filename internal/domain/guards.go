package domain

import (
	"context"
	"time"
)

// NonceStore remembers request nonces for the replay-guard window. Register
// returns firstUse=false when the nonce was already recorded inside its TTL.
type NonceStore interface {
	Register(ctx context.Context, nonce string, ttl time.Duration) (firstUse bool, err error)
}

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter bounds how often a key may pass within a rolling window.
// A limit <= 0 disables limiting for the call.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
