// Package discovery defines the service discovery contract used during
// bootstrap and the generic clients built on top of it: a static client fed
// from configuration, a composite client and a caching decorator.
package discovery

//go:generate go tool mockgen -destination=mocks/mock_client.go -package=mocks -source=discovery.go Client

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// ErrNoInstances is returned by callers that require at least one instance of
// a service. Clients themselves return an empty list instead.
var ErrNoInstances = errors.New("no service instances found")

// Client maps logical service names to live network endpoints.
type Client interface {
	// Description names the client for logs.
	Description() string

	// GetInstances returns the instances registered for serviceID. An unknown
	// service yields an empty list and no error.
	GetInstances(ctx context.Context, serviceID string) ([]ServiceInstance, error)

	// GetServices lists the known service ids.
	GetServices(ctx context.Context) ([]string, error)
}

// ServiceInstance is one resolved endpoint of a service.
type ServiceInstance struct {
	InstanceID string            `yaml:"instance_id" json:"instance_id"`
	ServiceID  string            `yaml:"service_id" json:"service_id"`
	Host       string            `yaml:"host" json:"host"`
	Port       int               `yaml:"port" json:"port"`
	Secure     bool              `yaml:"secure" json:"secure"`
	Namespace  string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Metadata   map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// NewServiceInstance builds an instance without metadata.
func NewServiceInstance(instanceID, serviceID, host string, port int, secure bool) ServiceInstance {
	return ServiceInstance{
		InstanceID: instanceID,
		ServiceID:  serviceID,
		Host:       host,
		Port:       port,
		Secure:     secure,
	}
}

// Scheme is "https" for secure instances and "http" otherwise.
func (s ServiceInstance) Scheme() string {
	if s.Secure {
		return "https"
	}
	return "http"
}

// HostPort joins host and port, bracketing IPv6 literals.
func (s ServiceInstance) HostPort() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URI is the instance address using its own scheme.
func (s ServiceInstance) URI() *url.URL {
	return &url.URL{Scheme: s.Scheme(), Host: s.HostPort()}
}

func (s ServiceInstance) String() string {
	return fmt.Sprintf("%s/%s@%s", s.ServiceID, s.InstanceID, s.HostPort())
}

func (s ServiceInstance) Validate() error {
	if s.Host == "" {
		return errors.New("instance host is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return errors.Errorf("instance port %d is out of range", s.Port)
	}
	return nil
}

// FirstInstance asks client for serviceID and returns the first instance, or
// ErrNoInstances.
func FirstInstance(ctx context.Context, client Client, serviceID string) (ServiceInstance, error) {
	instances, err := client.GetInstances(ctx, serviceID)
	if err != nil {
		return ServiceInstance{}, errors.Wrapf(err, "failed to look up instances of %q via %s", serviceID, client.Description())
	}
	if len(instances) == 0 {
		return ServiceInstance{}, errors.Wrapf(ErrNoInstances, "service %q via %s", serviceID, client.Description())
	}
	return instances[0], nil
}
