package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Properties is a flat, read-only view of a Config keyed by dotted path,
// e.g. "vault.discovery.enabled". Sequences are indexed: "a.b.0".
type Properties struct {
	values map[string]any
}

// Keys returns every leaf key in lexical order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p Properties) Has(key string) bool {
	_, ok := p.get(key)
	return ok
}

// get matches key exactly, else by its dash/underscore-insensitive form.
func (p Properties) get(key string) (any, bool) {
	key = strings.Join(splitKey(key), ".")
	if v, ok := p.values[key]; ok {
		return v, true
	}
	want := normalizeKey(key)
	for k, v := range p.values {
		if normalizeKey(k) == want {
			return v, true
		}
	}
	return nil, false
}

// String returns the property formatted as a string, or def when unset.
func (p Properties) String(key, def string) string {
	v, ok := p.get(key)
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// Bool returns the property as a bool. Unset or unparsable values yield def.
func (p Properties) Bool(key string, def bool) bool {
	v, _ := p.get(key)
	switch v := v.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns the property as an int. Unset or unparsable values yield def.
func (p Properties) Int(key string, def int) int {
	v, _ := p.get(key)
	switch v := v.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func flatten(prefix string, v any, out map[string]any) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			flatten(join(prefix, k), val, out)
		}
	case []any:
		for i, val := range t {
			flatten(join(prefix, strconv.Itoa(i)), val, out)
		}
	default:
		if prefix != "" {
			out[prefix] = v
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// parseScalar types a property value the way a YAML scalar would be typed.
func parseScalar(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	// values with leading zeros stay strings
	if i, err := strconv.Atoi(s); err == nil && strconv.Itoa(i) == s {
		return i
	}
	return s
}
