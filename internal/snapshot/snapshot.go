// Package snapshot produces deep copies of values that are handed out by
// long-lived components, so callers cannot mutate shared state.
package snapshot

import (
	"github.com/pkg/errors"
	"github.com/tiendc/go-deepcopy"
)

// Copy returns a deep copy of src. Slices, maps and pointers are copied
// recursively.
func Copy[T any](src T) (T, error) {
	var dst T
	if err := deepcopy.Copy(&dst, src); err != nil {
		return dst, errors.Wrapf(err, "failed to deep copy %T", src)
	}
	return dst, nil
}

// MustCopy is Copy for values whose shape is known to be copyable, such as
// plain data structs. It panics on failure.
func MustCopy[T any](src T) T {
	dst, err := Copy(src)
	if err != nil {
		panic("failed to create snapshot: " + err.Error())
	}
	return dst
}
