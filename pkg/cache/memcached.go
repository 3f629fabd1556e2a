package cache

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
)

// MemcachedConfig holds the server list for the Memcached store.
type MemcachedConfig struct {
	// Servers are host:port addresses.
	Servers []string `yaml:"servers"`
	// Timeout defaults to 100ms.
	Timeout time.Duration `yaml:"timeout"`
	// MaxIdleConns per server, defaults to 2.
	MaxIdleConns int `yaml:"max_idle_conns"`
}

func (m MemcachedConfig) Validate() error {
	if len(m.Servers) == 0 {
		return errors.New("at least one Memcached server address is required")
	}
	for i, server := range m.Servers {
		if server == "" {
			return errors.Errorf("server address at index %d is empty", i)
		}
	}
	if m.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if m.MaxIdleConns < 0 {
		return errors.New("max_idle_conns cannot be negative")
	}
	return nil
}

// CreateClient implements config.ClientFactory[*memcache.Client]. It pings the
// servers so a misconfigured cache is reported at bootstrap.
func (m MemcachedConfig) CreateClient() (*memcache.Client, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid Memcached configuration")
	}
	client := memcache.New(m.Servers...)
	client.Timeout = 100 * time.Millisecond
	if m.Timeout > 0 {
		client.Timeout = m.Timeout
	}
	client.MaxIdleConns = 2
	if m.MaxIdleConns > 0 {
		client.MaxIdleConns = m.MaxIdleConns
	}
	if err := client.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Memcached")
	}
	return client, nil
}

// MemcachedClient is the subset of *memcache.Client used by MemcachedStore.
type MemcachedClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Close() error
}

// MemcachedStore stores entries in memcached with the entry TTL as expiration.
type MemcachedStore struct {
	client MemcachedClient
	prefix string
}

func NewMemcachedStore(client MemcachedClient, prefix string) *MemcachedStore {
	return &MemcachedStore{client: client, prefix: prefix}
}

func (m *MemcachedStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := m.client.Get(m.prefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "memcached get %q failed", key)
	}
	return item.Value, true, nil
}

func (m *MemcachedStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	seconds := int32(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	err := m.client.Set(&memcache.Item{Key: m.prefix + key, Value: value, Expiration: seconds})
	return errors.Wrapf(err, "memcached set %q failed", key)
}

func (m *MemcachedStore) Close() error {
	return m.client.Close()
}
