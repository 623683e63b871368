package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"quantumleap/quantum"
)

const maxPooledClients = 8

var (
	poolMu sync.Mutex
	pool   = newPool()
)

func newPool() *lru.Cache[string, *redis.Client] {
	c, err := lru.NewWithEvict(maxPooledClients, func(_ string, client *redis.Client) {
		if err := client.Close(); err != nil {
			slog.Error("failed to close redis client", "addr", client.Options().Addr, "error", err)
		}
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Store builds the history backend described by c.
func (c *Config) Store(ctx context.Context) (quantum.Store, error) {
	switch c.Backend {
	case "", BackendLocal:
		return quantum.NewMemoryStore(), nil
	case BackendRedis:
		if c.Redis.URL == "" {
			return nil, errors.New("redis.url is required for the redis backend")
		}
		opts := []quantum.RedisOption{quantum.WithTTL(c.Redis.TTL)}
		if c.Redis.Location != "" {
			loc, err := time.LoadLocation(c.Redis.Location)
			if err != nil {
				return nil, fmt.Errorf("invalid redis.location: %w", err)
			}
			opts = append(opts, quantum.WithLocation(loc))
		}
		client, err := clientFor(ctx, c.Redis)
		if err != nil {
			return nil, err
		}
		return quantum.NewRedisStore(client, c.Redis.Key, opts...)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// Setup loads configuration from pathFile and the environment and installs
// the resulting backend on the process-wide leaper. Call it from TestMain.
func Setup(ctx context.Context, pathFile string) (*Config, error) {
	cfg, err := Load(pathFile)
	if err != nil {
		return nil, err
	}

	s, err := cfg.Store(ctx)
	if err != nil {
		return nil, err
	}
	quantum.UseStore(s)

	slog.Info("quantum leap history configured", "backend", cfg.Backend, "key", cfg.Redis.Key)
	return cfg, nil
}

// Close closes every pooled Redis client.
func Close() {
	poolMu.Lock()
	defer poolMu.Unlock()
	pool.Purge()
}

// clientFor returns a pooled client for rc.URL, dialing and pinging a new one
// when none is cached.
func clientFor(ctx context.Context, rc RedisConfig) (*redis.Client, error) {
	poolMu.Lock()
	defer poolMu.Unlock()

	if client, ok := pool.Get(rc.URL); ok {
		return client, nil
	}

	opt, err := redis.ParseURL(rc.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx := ctx
	if rc.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, rc.PingTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping %s failed: %v", quantum.ErrBackendDown, opt.Addr, err)
	}

	pool.Add(rc.URL, client)
	return client, nil
}
