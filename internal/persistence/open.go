package persistence

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tableside/pkg/config"
	"github.com/angelmondragon/tableside/pkg/db"
	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/migrate"
	redisclient "github.com/angelmondragon/tableside/pkg/redis"
)

// Backend is an opened persister plus the connection it owns.
type Backend struct {
	Persister Persister
	close     func() error
}

// Close releases the underlying connection.
func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// Open connects the configured persistence driver. It returns a nil Backend
// for the none driver.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Backend, error) {
	driver := cfg.Persistence.Driver()
	switch driver {
	case enums.PersistenceDriverNone:
		return nil, nil
	case enums.PersistenceDriverRedis:
		client, err := redisclient.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, err
		}
		persister, err := NewRedisPersister(client, cfg.Persistence.SnapshotTTL)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &Backend{Persister: persister, close: client.Close}, nil
	case enums.PersistenceDriverPostgres, enums.PersistenceDriverSQLite:
		client, err := db.New(ctx, driver, cfg.DB, cfg.Persistence.SQLitePath, logg)
		if err != nil {
			return nil, err
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("migrating snapshot table: %w", err)
		}
		persister, err := NewSQLPersister(client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &Backend{Persister: persister, close: client.Close}, nil
	}
	return nil, fmt.Errorf("unsupported persistence driver %q", driver)
}
