// Package vault locates a HashiCorp Vault server, either from a fixed address
// or through service discovery, and exposes its secrets as a secrets.Loader.
package vault

import (
	"net/url"

	"github.com/pkg/errors"
)

const (
	DefaultScheme    = "https"
	DefaultServiceID = "vault"
)

// Config is the `vault` configuration section.
type Config struct {
	// Address is used when discovery is disabled, e.g. https://vault:8200.
	Address string `yaml:"address"`
	// Scheme prefixes discovered endpoints. Defaults to https.
	Scheme    string          `yaml:"scheme"`
	Token     string          `yaml:"token"`
	Path      string          `yaml:"path"`
	Namespace string          `yaml:"namespace"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// DiscoveryConfig is the `vault.discovery` section.
type DiscoveryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ServiceID string `yaml:"service_id"`
}

// Validate checks the scheme and requires either discovery or a static
// address.
func (c Config) Validate() error {
	switch c.EffectiveScheme() {
	case "http", "https":
	default:
		return errors.Errorf("unsupported Vault scheme %q", c.Scheme)
	}
	if c.Discovery.Enabled {
		return nil
	}
	if c.Address == "" {
		return errors.New("Vault address is required when discovery is disabled")
	}
	u, err := url.Parse(c.Address)
	if err != nil {
		return errors.Wrap(err, "invalid Vault address")
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.Errorf("Vault address %q must be an absolute URL", c.Address)
	}
	return nil
}

// EffectiveScheme returns Scheme or DefaultScheme when unset.
func (c Config) EffectiveScheme() string {
	if c.Scheme == "" {
		return DefaultScheme
	}
	return c.Scheme
}

// EffectiveServiceID returns the discovery service id or DefaultServiceID.
func (d DiscoveryConfig) EffectiveServiceID() string {
	if d.ServiceID == "" {
		return DefaultServiceID
	}
	return d.ServiceID
}

// HasSecrets reports whether a secret loader can be built from c.
func (c Config) HasSecrets() bool {
	return c.Token != "" && c.Path != ""
}
