// Package expansion replaces `${...}` references inside decoded configuration
// sections with values from the secrets registry.
package expansion

import (
	"context"
	"os"
	"reflect"
	"strings"

	"github.com/animalet/sargantana-discovery/pkg/secrets"
	"github.com/pkg/errors"
)

// Expand walks target, which must be a pointer, and expands every settable
// string it reaches through structs, pointers, slices, maps and interfaces.
// The first resolution error aborts the walk.
func Expand(ctx context.Context, target any) error {
	if target == nil {
		return nil
	}
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr {
		return errors.Errorf("expansion target must be a pointer, got %T", target)
	}
	if v.IsNil() {
		return nil
	}
	return expandValue(ctx, v.Elem())
}

// String expands the references of a single value.
func String(ctx context.Context, s string) (string, error) {
	var expandErr error
	out := os.Expand(strings.TrimSpace(s), func(ref string) string {
		if expandErr != nil {
			return ""
		}
		value, err := secrets.Resolve(ctx, ref)
		if err != nil {
			expandErr = errors.Wrapf(err, "error expanding ${%s}", ref)
			return ""
		}
		return value
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

func expandValue(ctx context.Context, val reflect.Value) error {
	switch val.Kind() {
	case reflect.String:
		if !val.CanSet() {
			return nil
		}
		expanded, err := String(ctx, val.String())
		if err != nil {
			return err
		}
		val.SetString(expanded)

	case reflect.Struct:
		for i := 0; i < val.NumField(); i++ {
			if err := expandValue(ctx, val.Field(i)); err != nil {
				return err
			}
		}

	case reflect.Ptr:
		if !val.IsNil() {
			return expandValue(ctx, val.Elem())
		}

	case reflect.Interface:
		if val.IsNil() || !val.CanSet() {
			return nil
		}
		inner := reflect.New(val.Elem().Type()).Elem()
		inner.Set(val.Elem())
		if err := expandValue(ctx, inner); err != nil {
			return err
		}
		val.Set(inner)

	case reflect.Slice, reflect.Array:
		for i := 0; i < val.Len(); i++ {
			if err := expandValue(ctx, val.Index(i)); err != nil {
				return err
			}
		}

	case reflect.Map:
		if val.IsNil() || !val.CanSet() {
			return nil
		}
		iter := val.MapRange()
		for iter.Next() {
			// map elements are not addressable
			elem := reflect.New(iter.Value().Type()).Elem()
			elem.Set(iter.Value())
			if err := expandValue(ctx, elem); err != nil {
				return err
			}
			val.SetMapIndex(iter.Key(), elem)
		}
	default:
	}
	return nil
}
