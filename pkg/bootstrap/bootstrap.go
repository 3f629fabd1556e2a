// Package bootstrap wires the discovery client, the Vault endpoint and the
// secret loaders in two phases: discovery first, then everything that needs
// it.
package bootstrap

import (
	"context"
	"io"
	"net/url"
	"sync"

	"github.com/animalet/sargantana-discovery/pkg/cache"
	"github.com/animalet/sargantana-discovery/pkg/config"
	"github.com/animalet/sargantana-discovery/pkg/discovery"
	"github.com/animalet/sargantana-discovery/pkg/k8s"
	"github.com/animalet/sargantana-discovery/pkg/secrets"
	"github.com/animalet/sargantana-discovery/pkg/vault"
	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"k8s.io/client-go/kubernetes"
)

const (
	kubernetesSection = "kubernetes"
	staticSection     = "discovery.static"
	cacheSection      = "discovery.cache"
	vaultSection      = "vault"
	fileSection       = "file_resolver"
	awsSection        = "aws"

	vaultPrefix = "vault"
	filePrefix  = "file"
	awsPrefix   = "aws"
)

type options struct {
	discovery  discovery.Client
	kubernetes kubernetes.Interface
}

// Option overrides a client Load would otherwise build from configuration.
type Option func(*options)

// WithDiscoveryClient skips building a discovery client from configuration.
func WithDiscoveryClient(client discovery.Client) Option {
	return func(o *options) { o.discovery = client }
}

// WithKubernetesClient is used instead of a clientset built from the
// kubernetes section.
func WithKubernetesClient(client kubernetes.Interface) Option {
	return func(o *options) { o.kubernetes = client }
}

// Context holds what Load built. It is safe for concurrent reads.
type Context struct {
	cfg       *config.Config
	discovery discovery.Client
	provider  vault.EndpointProvider
	endpoint  *url.URL
	vault     *api.Client

	closers   []io.Closer
	prefixes  []string
	closeOnce sync.Once
	closeErr  error
}

// Load runs both phases. The Vault endpoint is resolved before Load returns,
// so a discovery failure surfaces here rather than on first use.
func Load(ctx context.Context, cfg *config.Config, opts ...Option) (bc *Context, err error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	bc = &Context{cfg: cfg}
	defer func() {
		if err != nil {
			_ = bc.Close()
			bc = nil
		}
	}()

	if err = bc.registerSecretLoaders(ctx); err != nil {
		return
	}
	if err = bc.loadDiscovery(ctx, o); err != nil {
		return
	}
	err = bc.loadVault(ctx)
	return
}

func (c *Context) registerSecretLoaders(ctx context.Context) error {
	fileLoader, err := config.GetClient[secrets.FileConfig, *secrets.FileLoader](ctx, c.cfg, fileSection)
	if err != nil {
		return err
	}
	if fileLoader != nil {
		c.register(filePrefix, *fileLoader)
	}

	awsCfg, err := config.Get[secrets.AWSConfig](ctx, c.cfg, awsSection)
	if err != nil {
		return err
	}
	if awsCfg != nil {
		client, err := awsCfg.CreateClient()
		if err != nil {
			return errors.Wrapf(err, "failed to create client for section %q", awsSection)
		}
		c.register(awsPrefix, secrets.NewAWSLoader(client, awsCfg.SecretName))
	}
	return nil
}

func (c *Context) loadDiscovery(ctx context.Context, o *options) error {
	client := o.discovery
	if client == nil {
		var clients []discovery.Client

		k8sCfg, err := config.Get[k8s.Config](ctx, c.cfg, kubernetesSection)
		if err != nil {
			return err
		}
		if k8sCfg != nil && k8sCfg.Enabled && k8sCfg.Discovery.Enabled {
			clientset := o.kubernetes
			if clientset == nil {
				if clientset, err = k8sCfg.CreateClient(); err != nil {
					return err
				}
			}
			clients = append(clients, k8s.NewDiscoveryClient(clientset, k8sCfg.CurrentNamespace(), k8sCfg.Discovery))
		}

		static, err := config.GetClient[discovery.StaticConfig, *discovery.StaticClient](ctx, c.cfg, staticSection)
		if err != nil {
			return err
		}
		if static != nil {
			clients = append(clients, *static)
		}

		switch len(clients) {
		case 0:
			log.Debug().Msg("No discovery client configured")
			return nil
		case 1:
			client = clients[0]
		default:
			client = discovery.NewCompositeClient(clients...)
		}
	}

	cacheCfg, err := config.Get[cache.Config](ctx, c.cfg, cacheSection)
	if err != nil {
		return err
	}
	if cacheCfg != nil {
		store, err := cacheCfg.CreateClient()
		if err != nil {
			return errors.Wrapf(err, "failed to create client for section %q", cacheSection)
		}
		caching := discovery.NewCachingClient(client, store, cacheCfg.EffectiveTTL())
		c.closers = append(c.closers, caching)
		client = caching
	}

	c.discovery = client
	log.Info().Str("client", client.Description()).Msg("Discovery client ready")
	return nil
}

func (c *Context) loadVault(ctx context.Context) error {
	vaultCfg, err := config.Get[vault.Config](ctx, c.cfg, vaultSection)
	if err != nil || vaultCfg == nil {
		return err
	}

	provider, err := vault.NewEndpointProvider(*vaultCfg, c.discovery)
	if err != nil {
		return err
	}
	endpoint, err := provider.VaultEndpoint(ctx)
	if err != nil {
		return err
	}
	client, err := vault.NewClient(ctx, *vaultCfg, provider)
	if err != nil {
		return err
	}

	c.provider = provider
	c.endpoint = endpoint
	c.vault = client
	if vaultCfg.HasSecrets() {
		c.register(vaultPrefix, vault.NewSecretLoader(client, vaultCfg.Path))
	}
	log.Info().Str("endpoint", endpoint.String()).Msg("Vault configured")
	return nil
}

func (c *Context) register(prefix string, loader secrets.Loader) {
	secrets.Register(prefix, loader)
	c.prefixes = append(c.prefixes, prefix)
}

// Config returns the configuration Load was called with.
func (c *Context) Config() *config.Config {
	return c.cfg
}

// Discovery returns the bootstrap discovery client, or nil when none is
// configured.
func (c *Context) Discovery() discovery.Client {
	return c.discovery
}

// EndpointProvider returns nil when no vault section is configured.
func (c *Context) EndpointProvider() vault.EndpointProvider {
	return c.provider
}

// VaultEndpoint returns the endpoint resolved during Load, or nil.
func (c *Context) VaultEndpoint() *url.URL {
	if c.endpoint == nil {
		return nil
	}
	u := *c.endpoint
	return &u
}

// VaultClient returns the Vault API client, or nil when no vault section is
// configured.
func (c *Context) VaultClient() *api.Client {
	return c.vault
}

// Close releases cache connections and unregisters the secret loaders Load
// registered. Calling it again returns the first result.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		for _, prefix := range c.prefixes {
			secrets.Unregister(prefix)
		}
		for _, closer := range c.closers {
			if err := closer.Close(); err != nil && c.closeErr == nil {
				c.closeErr = errors.Wrap(err, "failed to close bootstrap resources")
			}
		}
	})
	return c.closeErr
}
