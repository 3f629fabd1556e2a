// Package cache provides the byte stores used to cache discovery results:
// an in-process map, Redis and Memcached.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Store is a TTL-bound key/value store. A miss is (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Config selects and configures a Store. Type is one of "memory", "redis" or
// "memcached"; the matching sub-section must be present for the remote ones.
type Config struct {
	Type      string           `yaml:"type"`
	TTL       time.Duration    `yaml:"ttl"`
	Prefix    string           `yaml:"prefix"`
	Redis     *RedisConfig     `yaml:"redis,omitempty"`
	Memcached *MemcachedConfig `yaml:"memcached,omitempty"`
}

const (
	DefaultTTL    = 30 * time.Second
	DefaultPrefix = "discovery:"
)

func (c Config) Validate() error {
	if c.TTL < 0 {
		return errors.New("cache ttl must be non-negative")
	}
	switch c.Type {
	case "", "memory":
		return nil
	case "redis":
		if c.Redis == nil {
			return errors.New("redis cache requires a redis section")
		}
		return c.Redis.Validate()
	case "memcached":
		if c.Memcached == nil {
			return errors.New("memcached cache requires a memcached section")
		}
		return c.Memcached.Validate()
	default:
		return errors.Errorf("unknown cache type %q", c.Type)
	}
}

// CreateClient implements config.ClientFactory[Store].
func (c Config) CreateClient() (Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Type {
	case "redis":
		pool, err := c.Redis.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewRedisStore(pool, c.KeyPrefix()), nil
	case "memcached":
		client, err := c.Memcached.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewMemcachedStore(client, c.KeyPrefix()), nil
	default:
		return NewMemoryStore(), nil
	}
}

// EffectiveTTL returns TTL or DefaultTTL when unset.
func (c Config) EffectiveTTL() time.Duration {
	if c.TTL == 0 {
		return DefaultTTL
	}
	return c.TTL
}

// KeyPrefix returns the configured prefix or DefaultPrefix.
func (c Config) KeyPrefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryStore keeps entries in process. Expired entries are dropped lazily.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: append([]byte(nil), value...), expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string]memoryEntry{}
	return nil
}
