// Package config loads the layered configuration used during bootstrap: a YAML
// or TOML document of named sections, overlaid with flat `key=value`
// properties, from which typed sections are decoded on demand.
package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/animalet/sargantana-discovery/internal/expansion"
	"github.com/animalet/sargantana-discovery/internal/snapshot"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Validatable is implemented by every configuration section.
type Validatable interface {
	Validate() error
}

// ClientFactory is a section that knows how to build the client it configures,
// e.g. vault.Config builds an *api.Client and cache.RedisConfig a *redis.Pool.
type ClientFactory[T any] interface {
	Validatable
	CreateClient() (T, error)
}

// Config is a configuration document. It is not safe for concurrent Apply;
// load it fully before handing it to other goroutines.
type Config struct {
	doc map[string]any
}

// NewConfig reads a configuration file. Files with a .toml extension are
// parsed as TOML, anything else as YAML.
func NewConfig(path string) (*Config, error) {
	// #nosec G304 -- path comes from the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration file %q", path)
	}

	var doc map[string]any
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration file %q", path)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return &Config{doc: doc}, nil
}

// NewConfigFromProperties builds a configuration from flat properties only.
func NewConfigFromProperties(pairs ...string) (*Config, error) {
	cfg := &Config{doc: map[string]any{}}
	if err := cfg.Apply(pairs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply overlays `dotted.key=value` pairs onto the document. A path segment
// that differs from an existing key only by dashes versus underscores
// addresses that key, so `vault.discovery.service-id=vault` overrides a file's
// `service_id`. Later pairs win.
func (c *Config) Apply(pairs ...string) error {
	if c.doc == nil {
		c.doc = map[string]any{}
	}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return errors.Errorf("invalid property %q, expected key=value", pair)
		}
		if err := set(c.doc, splitKey(key), parseScalar(strings.TrimSpace(value))); err != nil {
			return errors.Wrapf(err, "cannot apply property %q", pair)
		}
	}
	return nil
}

// Properties returns an immutable flat view of the document.
func (c *Config) Properties() Properties {
	flat := make(map[string]any)
	flatten("", snapshot.MustCopy(c.doc), flat)
	return Properties{values: flat}
}

// Has reports whether a section or property exists at the dotted path.
func (c *Config) Has(key string) bool {
	_, ok := lookup(c.doc, splitKey(key))
	return ok
}

// Get decodes the section at the dotted path key into T, expands `${...}`
// references and validates the result. A missing section yields (nil, nil).
func Get[T Validatable](ctx context.Context, c *Config, key string) (*T, error) {
	raw, ok := lookup(c.doc, splitKey(key))
	if !ok || raw == nil {
		return nil, nil
	}

	data, err := yaml.Marshal(conform(raw, reflect.TypeOf((*T)(nil)).Elem()))
	if err != nil {
		return nil, errors.Wrapf(err, "error re-encoding section %q", key)
	}

	var section T
	if err = yaml.Unmarshal(data, &section); err != nil {
		return nil, errors.Wrapf(err, "error decoding section %q", key)
	}
	if err = expansion.Expand(ctx, &section); err != nil {
		return nil, errors.Wrapf(err, "error expanding section %q", key)
	}
	if err = section.Validate(); err != nil {
		return nil, errors.Wrapf(err, "section %q is invalid", key)
	}
	return &section, nil
}

// GetClient is Get followed by CreateClient. A missing section yields (nil, nil).
func GetClient[T ClientFactory[C], C any](ctx context.Context, c *Config, key string) (*C, error) {
	section, err := Get[T](ctx, c, key)
	if err != nil || section == nil {
		return nil, err
	}
	client, err := (*section).CreateClient()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create client for section %q", key)
	}
	return &client, nil
}

func splitKey(key string) []string {
	parts := strings.Split(key, ".")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// normalizeKey folds dashes into underscores for key comparison only; stored
// keys are never rewritten.
func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.TrimSpace(key), "-", "_")
}

// childKey returns the key of m that part addresses: an exact match, else a
// key equal to part once both are normalised.
func childKey(m map[string]any, part string) (string, bool) {
	if _, ok := m[part]; ok {
		return part, true
	}
	want := normalizeKey(part)
	for k := range m {
		if normalizeKey(k) == want {
			return k, true
		}
	}
	return part, false
}

func lookup(doc map[string]any, path []string) (any, bool) {
	var current any = doc
	for _, part := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		key, found := childKey(m, part)
		if !found {
			return nil, false
		}
		current = m[key]
	}
	return current, true
}

func set(doc map[string]any, path []string, value any) error {
	m := doc
	for i, part := range path[:len(path)-1] {
		key, _ := childKey(m, part)
		next, exists := m[key]
		if !exists || next == nil {
			child := map[string]any{}
			m[key] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return errors.Errorf("%q is a value, not a section", strings.Join(path[:i+1], "."))
		}
		m = child
	}
	key, _ := childKey(m, path[len(path)-1])
	m[key] = value
	return nil
}
