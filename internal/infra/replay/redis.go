package replay

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"picproof/internal/domain"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore backs the nonce guard with redis SET NX PX, which is atomic
// across server replicas sharing the instance.
func NewRedisStore(addr, password string, db int) (domain.NonceStore, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisStore{client: client, prefix: "nonce:"}, nil
}

func (r *redisStore) Register(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := r.client.SetNX(ctx, r.prefix+nonce, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
