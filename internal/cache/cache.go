// Package cache memoises adapter search results so repeated topics do not
// burn upstream quota. Redis-backed when configured, process memory otherwise.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pouria-abbasi/mediascout/config"
	"github.com/pouria-abbasi/mediascout/models"
)

// HitCache stores adapter results keyed by (source, query, limit).
type HitCache interface {
	Get(ctx context.Context, key string) ([]models.RawHit, bool)
	Set(ctx context.Context, key string, hits []models.RawHit, ttl time.Duration)
}

// Key builds the canonical cache key for one adapter call.
func Key(source, query string, limit int) string {
	return fmt.Sprintf("mediascout:hits:%s:%d:%s", source, limit, query)
}

// New returns a redis-backed cache when redis is configured and reachable,
// falling back to an in-memory cache otherwise.
func New(ctx context.Context, cfg config.RedisConfig, logger *log.Logger) HitCache {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	if cfg.Host == "" {
		return NewMemory()
	}
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Printf("redis unreachable (%s:%s), using in-memory cache: %v", cfg.Host, port, err)
		return NewMemory()
	}
	return &redisCache{client: client, logger: logger}
}

type redisCache struct {
	client *redis.Client
	logger *log.Logger
}

func (c *redisCache) Get(ctx context.Context, key string) ([]models.RawHit, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var hits []models.RawHit
	if err := json.Unmarshal(raw, &hits); err != nil {
		c.logger.Printf("corrupt cache entry %s: %v", key, err)
		return nil, false
	}
	return hits, true
}

func (c *redisCache) Set(ctx context.Context, key string, hits []models.RawHit, ttl time.Duration) {
	raw, err := json.Marshal(hits)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Printf("cache set %s: %v", key, err)
	}
}

// Memory is a process-local HitCache with lazy expiry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	hits      []models.RawHit
	expiresAt time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]models.RawHit, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return entry.hits, true
}

func (m *Memory) Set(_ context.Context, key string, hits []models.RawHit, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{hits: hits, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}
