// Package secrets resolves `${prefix:key}` references found in configuration
// values. Each prefix maps to a Loader; the "env" loader is always present and
// is used when a reference carries no prefix.
package secrets

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultPrefix is used for references that do not name a loader.
const DefaultPrefix = "env"

// Loader retrieves a single secret value by key.
//
// Implementations in this package:
//   - EnvLoader: environment variables
//   - FileLoader: files inside a secrets directory
//   - AWSLoader: AWS Secrets Manager
//
// The Vault loader lives in the vault package because it needs a client
// built from a discovered endpoint.
type Loader interface {
	// Resolve returns the value for key (the reference without its prefix).
	Resolve(ctx context.Context, key string) (string, error)

	// Name is a human-readable name used in logs and errors.
	Name() string
}

var (
	mu      sync.RWMutex
	loaders = map[string]Loader{
		DefaultPrefix: NewEnvLoader(),
	}
)

// Register binds a loader to a prefix, replacing any previous binding.
// The prefix must not include the trailing colon.
func Register(prefix string, loader Loader) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := loaders[prefix]; exists {
		log.Warn().Str("prefix", prefix).Msg("Overriding existing secret loader")
	}
	loaders[prefix] = loader
}

// Unregister removes the loader bound to prefix. The default env loader can be
// removed too; references without a prefix then fail to resolve.
func Unregister(prefix string) {
	mu.Lock()
	defer mu.Unlock()
	delete(loaders, prefix)
}

// Lookup returns the loader bound to prefix, or nil.
func Lookup(prefix string) Loader {
	mu.RLock()
	defer mu.RUnlock()
	return loaders[prefix]
}

// Prefixes lists registered prefixes in lexical order.
func Prefixes() []string {
	mu.RLock()
	defer mu.RUnlock()
	prefixes := make([]string, 0, len(loaders))
	for prefix := range loaders {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Resolve resolves a reference of the form "prefix:key" or "key".
// Only the first colon separates the prefix, so "vault:db:password" asks the
// vault loader for "db:password".
func Resolve(ctx context.Context, reference string) (string, error) {
	prefix, key := parseReference(reference)

	loader := Lookup(prefix)
	if loader == nil {
		return "", errors.Errorf("no secret loader registered for prefix %q", prefix)
	}

	value, err := loader.Resolve(ctx, key)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %q using %s loader", reference, loader.Name())
	}
	return value, nil
}

func parseReference(reference string) (prefix, key string) {
	prefix, key, found := strings.Cut(reference, ":")
	if !found {
		return DefaultPrefix, reference
	}
	return prefix, key
}
