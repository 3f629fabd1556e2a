package discovery

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// CompositeClient consults its clients in order. The first client that
// returns instances for a service wins; services are the union.
type CompositeClient struct {
	clients []Client
}

func NewCompositeClient(clients ...Client) *CompositeClient {
	return &CompositeClient{clients: clients}
}

func (c *CompositeClient) Description() string {
	names := make([]string, 0, len(c.clients))
	for _, client := range c.clients {
		names = append(names, client.Description())
	}
	return "Composite Discovery Client [" + strings.Join(names, ", ") + "]"
}

// Clients returns the delegates in lookup order.
func (c *CompositeClient) Clients() []Client {
	return append([]Client(nil), c.clients...)
}

// GetInstances fails only when every client failed; a failing client is
// logged and skipped.
func (c *CompositeClient) GetInstances(ctx context.Context, serviceID string) ([]ServiceInstance, error) {
	var lastErr error
	failures := 0
	for _, client := range c.clients {
		instances, err := client.GetInstances(ctx, serviceID)
		if err != nil {
			log.Warn().Err(err).Str("client", client.Description()).Str("service_id", serviceID).Msg("Discovery client failed")
			lastErr = err
			failures++
			continue
		}
		if len(instances) > 0 {
			return instances, nil
		}
	}
	if failures > 0 && failures == len(c.clients) {
		return nil, errors.Wrapf(lastErr, "all discovery clients failed for %q", serviceID)
	}
	return []ServiceInstance{}, nil
}

// GetServices returns the sorted union of every client's services. Like
// GetInstances, a failing client is logged and skipped unless all fail.
func (c *CompositeClient) GetServices(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var lastErr error
	failures := 0
	for _, client := range c.clients {
		services, err := client.GetServices(ctx)
		if err != nil {
			log.Warn().Err(err).Str("client", client.Description()).Msg("Discovery client failed to list services")
			lastErr = errors.Wrapf(err, "failed to list services via %s", client.Description())
			failures++
			continue
		}
		for _, s := range services {
			seen[s] = struct{}{}
		}
	}
	if failures > 0 && failures == len(c.clients) {
		return nil, errors.Wrap(lastErr, "all discovery clients failed")
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
