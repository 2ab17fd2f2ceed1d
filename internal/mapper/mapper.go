// Package mapper converts typed settings objects to configuration trees and back.
//
// Two strategies are provided. Struct walks declared struct fields with
// reflection and rejects trees that do not match the declared shape. Object
// delegates to types implementing TreeMarshaler and TreeUnmarshaler, which
// decide for themselves how permissive they are.
package mapper

import (
	"errors"
	"fmt"

	"github.com/iancoleman/orderedmap"
)

var (
	// ErrTypeMismatch is returned when a tree does not fit the target type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnsupportedType is returned when a settings type contains kinds that
	// no configuration format can represent.
	ErrUnsupportedType = errors.New("unsupported settings type")

	// ErrNilValue is returned when a nil settings object is mapped.
	ErrNilValue = errors.New("settings value is nil")
)

// Mapper converts between a settings object and a configuration tree.
type Mapper[T any] interface {
	// ToTree flattens v into a fresh tree.
	ToTree(v T) (*orderedmap.OrderedMap, error)

	// FromTree builds a new settings object from t.
	FromTree(t *orderedmap.OrderedMap) (T, error)

	// Copy returns a deep copy of v that shares no mutable state with it.
	Copy(v T) (T, error)
}

// FieldError reports where in the tree a type mismatch happened.
type FieldError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	p := e.Path
	if p == "" {
		p = "(root)"
	}
	return fmt.Sprintf("%s: %s", p, e.Reason)
}

// Unwrap makes errors.Is(err, ErrTypeMismatch) hold.
func (e *FieldError) Unwrap() error {
	return ErrTypeMismatch
}

func mismatch(p, format string, args ...any) error {
	return &FieldError{Path: p, Reason: fmt.Sprintf(format, args...)}
}

func join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
