package session

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pitabwire/staffdesk/internal/config"
)

// OpenStorage builds the Storage driver named by cfg.Store.Driver. Addresses
// and DSNs are read from the environment variables the config names. The
// returned close function releases the driver's connections.
func OpenStorage(ctx context.Context, cfg config.SessionConfig) (Storage, func(), error) {
	sc := cfg.Store
	switch sc.Driver {
	case "", "memory":
		return NewMemoryStorage(cfg.TTL), func() {}, nil

	case "redis":
		addr := os.Getenv(sc.AddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("session: %s is not set", sc.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: sc.DB})
		return NewRedisStorage(client, sc.KeyPrefix, cfg.TTL), func() { _ = client.Close() }, nil

	case "postgres":
		dsn := os.Getenv(sc.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("session: %s is not set", sc.DSNEnv)
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("session: connect postgres: %w", err)
		}
		store := NewPgStorage(pool, cfg.TTL)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case "mongo":
		uri := os.Getenv(sc.DSNEnv)
		if uri == "" {
			return nil, nil, fmt.Errorf("session: %s is not set", sc.DSNEnv)
		}
		client, err := mongo.Connect(options.Client().ApplyURI(uri))
		if err != nil {
			return nil, nil, fmt.Errorf("session: connect mongo: %w", err)
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		store := NewMongoStorage(client.Database(sc.Database).Collection(sc.Collection), cfg.TTL)
		if err := store.Migrate(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return store, closeFn, nil

	default:
		return nil, nil, fmt.Errorf("session: unknown storage driver %q", sc.Driver)
	}
}
