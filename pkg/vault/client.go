package vault

import (
	"context"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NewClient creates a Vault API client for the endpoint resolved by provider.
func NewClient(ctx context.Context, cfg Config, provider EndpointProvider) (*api.Client, error) {
	endpoint, err := provider.VaultEndpoint(ctx)
	if err != nil {
		return nil, err
	}

	config := api.DefaultConfig()
	config.Address = endpoint.String()

	client, err := api.NewClient(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Vault client")
	}

	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	} else {
		client.ClearToken()
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	log.Debug().Str("address", client.Address()).Msg("Vault client created")
	return client, nil
}
