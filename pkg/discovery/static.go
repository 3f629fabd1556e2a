package discovery

import (
	"context"
	"sort"

	"github.com/animalet/sargantana-discovery/internal/snapshot"
	"github.com/pkg/errors"
)

// StaticConfig lists instances per service id:
//
//	discovery:
//	  static:
//	    vault:
//	      - host: vault-0.vault
//	        port: 8200
type StaticConfig map[string][]ServiceInstance

func (s StaticConfig) Validate() error {
	for service, instances := range s {
		for i, instance := range instances {
			if err := instance.Validate(); err != nil {
				return errors.Wrapf(err, "static instance %d of %q", i, service)
			}
		}
	}
	return nil
}

// CreateClient implements config.ClientFactory[*StaticClient].
func (s StaticConfig) CreateClient() (*StaticClient, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return NewStaticClient(s), nil
}

// StaticClient serves a fixed set of instances.
type StaticClient struct {
	instances map[string][]ServiceInstance
}

// NewStaticClient copies instances; service and instance ids are filled in
// where the configuration left them empty.
func NewStaticClient(instances map[string][]ServiceInstance) *StaticClient {
	copied := snapshot.MustCopy(instances)
	if copied == nil {
		copied = map[string][]ServiceInstance{}
	}
	for service, list := range copied {
		for i := range list {
			if list[i].ServiceID == "" {
				list[i].ServiceID = service
			}
			if list[i].InstanceID == "" {
				list[i].InstanceID = list[i].HostPort()
			}
		}
	}
	return &StaticClient{instances: copied}
}

func (s *StaticClient) Description() string {
	return "Static Discovery Client"
}

func (s *StaticClient) GetInstances(_ context.Context, serviceID string) ([]ServiceInstance, error) {
	list, ok := s.instances[serviceID]
	if !ok {
		return []ServiceInstance{}, nil
	}
	return snapshot.Copy(list)
}

func (s *StaticClient) GetServices(_ context.Context) ([]string, error) {
	services := make([]string, 0, len(s.instances))
	for service := range s.instances {
		services = append(services, service)
	}
	sort.Strings(services)
	return services, nil
}
