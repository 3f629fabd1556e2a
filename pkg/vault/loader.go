package vault

import (
	"context"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SecretLoader reads keys from a single Vault path. Both KV v1 and KV v2
// layouts are understood.
//
//	password: ${vault:DATABASE_PASSWORD}
type SecretLoader struct {
	logical *api.Logical
	path    string
}

func NewSecretLoader(client *api.Client, path string) *SecretLoader {
	return &SecretLoader{
		logical: client.Logical(),
		path:    path,
	}
}

func (v *SecretLoader) Resolve(ctx context.Context, key string) (string, error) {
	secret, err := v.logical.ReadWithContext(ctx, v.path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read secret from Vault path %q", v.path)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.Errorf("no secret found at Vault path %q", v.path)
	}

	data := secret.Data
	if nested, present := secret.Data["data"]; present && nested != nil {
		m, ok := nested.(map[string]any)
		if !ok {
			return "", errors.Errorf("unexpected data format in KV v2 secret at %q", v.path)
		}
		data = m
	}

	value, ok := data[key].(string)
	if !ok {
		return "", errors.Errorf("secret %q not found in Vault at path %q", key, v.path)
	}
	log.Debug().Str("secret_name", key).Str("vault_path", v.path).Msg("Retrieved secret from Vault")
	return value, nil
}

func (v *SecretLoader) Name() string {
	return "Vault"
}
