package config

import (
	"reflect"
	"strings"
)

type sectionField struct {
	name string
	typ  reflect.Type
}

// conform renames the keys of raw that address struct fields of t to the
// field's yaml name, so `service-id` decodes into a `service_id` field. Keys
// of map-typed values are data (service ids, label keys) and are kept as
// written. raw itself is not modified.
func conform(raw any, t reflect.Type) any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		m, ok := raw.(map[string]any)
		if !ok {
			return raw
		}
		fields := structFields(t)
		out := make(map[string]any, len(m))
		for k, v := range m {
			if f, found := fields[normalizeKey(k)]; found {
				out[f.name] = conform(v, f.typ)
				continue
			}
			out[k] = v
		}
		return out
	case reflect.Map:
		m, ok := raw.(map[string]any)
		if !ok {
			return raw
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = conform(v, t.Elem())
		}
		return out
	case reflect.Slice, reflect.Array:
		s, ok := raw.([]any)
		if !ok {
			return raw
		}
		out := make([]any, len(s))
		for i, v := range s {
			out[i] = conform(v, t.Elem())
		}
		return out
	default:
		return raw
	}
}

// structFields indexes the yaml names of t's exported fields by their
// normalised form, descending into inline structs.
func structFields(t reflect.Type) map[string]sectionField {
	fields := make(map[string]sectionField, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			continue
		}
		if strings.Contains(opts, "inline") {
			inner := f.Type
			for inner.Kind() == reflect.Ptr {
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				for k, v := range structFields(inner) {
					fields[k] = v
				}
			}
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		fields[normalizeKey(name)] = sectionField{name: name, typ: f.Type}
	}
	return fields
}
