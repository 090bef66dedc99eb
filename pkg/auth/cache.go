package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/angelmondragon/tableside/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

type tokenStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type tokenKeyer interface {
	TokenKey(role string, userID int64) string
}

// RedisCache shares realtime tokens through Redis, keyed by role and user.
type RedisCache struct {
	store tokenStore
	keyer tokenKeyer
	clock func() time.Time
}

// NewRedisCache builds a token cache on top of the shared redis client.
func NewRedisCache(client *redisclient.Client) (*RedisCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisCache{store: client, keyer: client, clock: time.Now}, nil
}

// Load returns the cached token for req, if any.
func (c *RedisCache) Load(ctx context.Context, req TokenRequest) (Cached, bool, error) {
	raw, err := c.store.Get(ctx, c.keyer.TokenKey(req.Role.String(), req.UserID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return Cached{}, false, nil
		}
		return Cached{}, false, err
	}
	var cached Cached
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return Cached{}, false, fmt.Errorf("decode cached token: %w", err)
	}
	return cached, true, nil
}

// Store saves token until its expiry. Tokens without an expiry are not shared.
func (c *RedisCache) Store(ctx context.Context, req TokenRequest, token Cached) error {
	if token.ExpiresAt.IsZero() {
		return nil
	}
	ttl := token.ExpiresAt.Sub(c.clock())
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode cached token: %w", err)
	}
	return c.store.Set(ctx, c.keyer.TokenKey(req.Role.String(), req.UserID), string(payload), ttl)
}

// Forget removes the shared token for req.
func (c *RedisCache) Forget(ctx context.Context, req TokenRequest) error {
	return c.store.Del(ctx, c.keyer.TokenKey(req.Role.String(), req.UserID))
}
