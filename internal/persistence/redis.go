package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tableside/internal/orders"
	redisclient "github.com/angelmondragon/tableside/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

type snapshotStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type snapshotKeyer interface {
	SnapshotKey(sessionID string) string
}

// RedisPersister keeps snapshots in redis with a sliding TTL.
type RedisPersister struct {
	store snapshotStore
	keyer snapshotKeyer
	ttl   time.Duration
}

// NewRedisPersister builds a persister on the shared redis client. A zero ttl
// keeps snapshots until deleted.
func NewRedisPersister(client *redisclient.Client, ttl time.Duration) (*RedisPersister, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("snapshot ttl must not be negative")
	}
	return &RedisPersister{store: client, keyer: client, ttl: ttl}, nil
}

func (p *RedisPersister) Save(ctx context.Context, snapshot orders.Snapshot) error {
	if snapshot.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	existing, err := p.Load(ctx, snapshot.SessionID)
	switch {
	case err == nil:
		if existing.Version >= snapshot.Version {
			return nil
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return p.store.Set(ctx, p.keyer.SnapshotKey(snapshot.SessionID), string(payload), p.ttl)
}

func (p *RedisPersister) Load(ctx context.Context, sessionID string) (orders.Snapshot, error) {
	raw, err := p.store.Get(ctx, p.keyer.SnapshotKey(sessionID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return orders.Snapshot{}, ErrNotFound
		}
		return orders.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snapshot orders.Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return orders.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

func (p *RedisPersister) Delete(ctx context.Context, sessionID string) error {
	return p.store.Del(ctx, p.keyer.SnapshotKey(sessionID))
}
