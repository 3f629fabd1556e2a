// Package k8s discovers service instances from the Kubernetes API using
// Services and their EndpointSlices.
package k8s

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Config is the `kubernetes` configuration section.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// Kubeconfig is an explicit kubeconfig path. When empty, in-cluster
	// configuration is tried before the default loading rules.
	Kubeconfig string `yaml:"kubeconfig"`
	// Context selects a kubeconfig context other than the current one.
	Context   string          `yaml:"context"`
	MasterURL string          `yaml:"master_url"`
	Namespace string          `yaml:"namespace"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

func (c Config) Validate() error {
	return errors.Wrap(c.Discovery.Validate(), "invalid discovery configuration")
}

// CreateClient implements config.ClientFactory[kubernetes.Interface].
func (c Config) CreateClient() (kubernetes.Interface, error) {
	restConfig, err := c.RESTConfig()
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kubernetes client")
	}
	return clientset, nil
}

// RESTConfig resolves the API server connection settings.
func (c Config) RESTConfig() (*rest.Config, error) {
	if c.Kubeconfig == "" && c.Context == "" && c.MasterURL == "" {
		if restConfig, err := rest.InClusterConfig(); err == nil {
			log.Debug().Msg("Using in-cluster Kubernetes configuration")
			return restConfig, nil
		}
	}

	restConfig, err := c.clientConfig().ClientConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load kubeconfig")
	}
	return restConfig, nil
}

func (c Config) clientConfig() clientcmd.ClientConfig {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if c.Kubeconfig != "" {
		rules.ExplicitPath = c.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: c.Context}
	if c.MasterURL != "" {
		overrides.ClusterInfo.Server = c.MasterURL
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)
}
