package advisor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a generated commentary is reused.
const DefaultCacheTTL = 10 * time.Minute

// Cache stores generated commentary by key. Implementations swallow and log
// their own errors; a failing cache only costs a regeneration.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// MemoryCache is a process-local cache.
type MemoryCache struct {
	store *bigcache.BigCache
}

func NewMemoryCache(ctx context.Context, ttl time.Duration) (*MemoryCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 10000
	cfg.MaxEntrySize = 2048
	cfg.HardMaxCacheSize = 64
	cfg.Verbose = false
	store, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{store: store}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, err := c.store.Get(key)
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			log.Printf("[WARN] cache get %s: %v", key, err)
		}
		return nil, false
	}
	return v, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) {
	if err := c.store.Set(key, value); err != nil {
		log.Printf("[WARN] cache set %s: %v", key, err)
	}
}

func (c *MemoryCache) Close() error { return c.store.Close() }

// RedisCache shares entries across replicas.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "quantdash:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[WARN] redis get %s: %v", key, err)
		}
		return nil, false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		log.Printf("[WARN] redis set %s: %v", key, err)
	}
}

func (c *RedisCache) Close() error { return c.client.Close() }
