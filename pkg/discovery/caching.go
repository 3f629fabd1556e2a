package discovery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/animalet/sargantana-discovery/pkg/cache"
	"github.com/rs/zerolog/log"
)

// CachingClient memoises GetInstances results in a cache.Store. Store errors
// are logged and fall through to the delegate. Empty results are not cached,
// so a service that appears is picked up on the next call.
type CachingClient struct {
	delegate Client
	store    cache.Store
	ttl      time.Duration
}

func NewCachingClient(delegate Client, store cache.Store, ttl time.Duration) *CachingClient {
	return &CachingClient{delegate: delegate, store: store, ttl: ttl}
}

func (c *CachingClient) Description() string {
	return "Caching " + c.delegate.Description()
}

func (c *CachingClient) GetInstances(ctx context.Context, serviceID string) ([]ServiceInstance, error) {
	key := "instances:" + serviceID
	if data, ok, err := c.store.Get(ctx, key); err != nil {
		log.Warn().Err(err).Str("service_id", serviceID).Msg("Discovery cache read failed")
	} else if ok {
		var cached []ServiceInstance
		if err = json.Unmarshal(data, &cached); err == nil {
			log.Debug().Str("service_id", serviceID).Int("instances", len(cached)).Msg("Discovery cache hit")
			return cached, nil
		}
		log.Warn().Err(err).Str("service_id", serviceID).Msg("Discarding undecodable cache entry")
	}

	instances, err := c.delegate.GetInstances(ctx, serviceID)
	if err != nil || len(instances) == 0 {
		return instances, err
	}

	data, err := json.Marshal(instances)
	if err == nil {
		err = c.store.Set(ctx, key, data, c.ttl)
	}
	if err != nil {
		log.Warn().Err(err).Str("service_id", serviceID).Msg("Discovery cache write failed")
	}
	return instances, nil
}

func (c *CachingClient) GetServices(ctx context.Context) ([]string, error) {
	return c.delegate.GetServices(ctx)
}

// Close releases the underlying store.
func (c *CachingClient) Close() error {
	return c.store.Close()
}
