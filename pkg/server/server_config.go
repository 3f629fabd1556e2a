package server

import (
	"fmt"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

const defaultPort = 8080

// WebServerConfig is the `server` section.
type WebServerConfig struct {
	// Address is host:port. When empty the server listens on all interfaces
	// at Port.
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	// ContentSecurityPolicy overrides the default policy header.
	ContentSecurityPolicy string `yaml:"content_security_policy"`
	// AllowedHosts restricts the Host header. Empty allows any host.
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// Validate checks the listen address.
func (c WebServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("port %d is out of range", c.Port)
	}
	if _, err := net.ResolveTCPAddr("tcp", c.ListenAddress()); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}

// ListenAddress returns Address, or ":<Port>" (default 8080).
func (c WebServerConfig) ListenAddress() string {
	if c.Address != "" {
		return c.Address
	}
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort("", strconv.Itoa(port))
}
