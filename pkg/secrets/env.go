package secrets

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
)

// EnvLoader reads environment variables.
//
//	token: ${VAULT_TOKEN}      # implicit
//	token: ${env:VAULT_TOKEN}  # explicit
type EnvLoader struct{}

func NewEnvLoader() *EnvLoader {
	return &EnvLoader{}
}

// Resolve returns the variable value. A missing variable expands to the empty
// string, matching os.Expand, and is only reported as a warning.
func (e *EnvLoader) Resolve(_ context.Context, key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		log.Warn().Str("env_var", key).Msg("Environment variable not set or empty")
		return "", nil
	}
	log.Debug().Str("env_var", key).Msg("Resolved environment variable")
	return value, nil
}

func (e *EnvLoader) Name() string {
	return "Environment"
}
