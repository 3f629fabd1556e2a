package vault

import (
	"context"
	"net/url"
	"sync"

	"github.com/animalet/sargantana-discovery/pkg/discovery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EndpointProvider yields the base URL of the Vault server.
type EndpointProvider interface {
	VaultEndpoint(ctx context.Context) (*url.URL, error)
}

// NewEndpointProvider picks a discovery backed provider when discovery is
// enabled and a static one otherwise.
func NewEndpointProvider(cfg Config, client discovery.Client) (EndpointProvider, error) {
	if !cfg.Discovery.Enabled {
		return NewStaticEndpointProvider(cfg.Address)
	}
	if client == nil {
		return nil, errors.New("Vault discovery is enabled but no discovery client is available")
	}
	return NewDiscoveryEndpointProvider(client, cfg.Discovery.EffectiveServiceID(), cfg.EffectiveScheme()), nil
}

// StaticEndpointProvider returns a fixed address.
type StaticEndpointProvider struct {
	endpoint *url.URL
}

// NewStaticEndpointProvider parses address, which must be absolute.
func NewStaticEndpointProvider(address string) (*StaticEndpointProvider, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid Vault address %q", address)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("Vault address %q must be an absolute URL", address)
	}
	return &StaticEndpointProvider{endpoint: u}, nil
}

func (s *StaticEndpointProvider) VaultEndpoint(context.Context) (*url.URL, error) {
	u := *s.endpoint
	return &u, nil
}

// DiscoveryEndpointProvider asks a discovery client for the Vault service and
// uses the first instance. The scheme always comes from configuration; the
// instance's own secure flag is ignored. The first successful lookup is
// remembered.
type DiscoveryEndpointProvider struct {
	client    discovery.Client
	serviceID string
	scheme    string

	mu       sync.Mutex
	endpoint *url.URL
}

func NewDiscoveryEndpointProvider(client discovery.Client, serviceID, scheme string) *DiscoveryEndpointProvider {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return &DiscoveryEndpointProvider{client: client, serviceID: serviceID, scheme: scheme}
}

func (d *DiscoveryEndpointProvider) VaultEndpoint(ctx context.Context) (*url.URL, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.endpoint == nil {
		instance, err := discovery.FirstInstance(ctx, d.client, d.serviceID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to discover Vault")
		}
		d.endpoint = &url.URL{Scheme: d.scheme, Host: instance.HostPort()}
		log.Info().
			Str("service_id", d.serviceID).
			Str("instance", instance.String()).
			Str("endpoint", d.endpoint.String()).
			Msg("Discovered Vault endpoint")
	}

	u := *d.endpoint
	return &u, nil
}
