package pincode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 6 * time.Hour

// Cache stores definitive serviceability answers keyed by pincode.
type Cache interface {
	Get(ctx context.Context, pincode string) (State, bool, error)
	Set(ctx context.Context, pincode string, state State) error
}

type memoryEntry struct {
	state   State
	expires time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, pincode string) (State, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[pincode]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		return StateUnknown, false, nil
	}
	return entry.state, true, nil
}

func (c *MemoryCache) Set(_ context.Context, pincode string, state State) error {
	if state == StateUnknown {
		return nil
	}
	c.mu.Lock()
	c.entries[pincode] = memoryEntry{state: state, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// RedisCache shares answers across API instances.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{redis: client, ttl: ttl}
}

func (c *RedisCache) key(pincode string) string {
	return fmt.Sprintf("pincode:serviceable:%s", pincode)
}

func (c *RedisCache) Get(ctx context.Context, pincode string) (State, bool, error) {
	val, err := c.redis.Get(ctx, c.key(pincode)).Result()
	if errors.Is(err, redis.Nil) {
		return StateUnknown, false, nil
	}
	if err != nil {
		return StateUnknown, false, fmt.Errorf("pincode: cache get: %w", err)
	}
	switch State(val) {
	case StateValid, StateInvalid:
		return State(val), true, nil
	}
	return StateUnknown, false, nil
}

func (c *RedisCache) Set(ctx context.Context, pincode string, state State) error {
	if state == StateUnknown {
		return nil
	}
	if err := c.redis.Set(ctx, c.key(pincode), string(state), c.ttl).Err(); err != nil {
		return fmt.Errorf("pincode: cache set: %w", err)
	}
	return nil
}
