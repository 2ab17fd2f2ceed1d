package mapper

import (
	"fmt"

	"github.com/iancoleman/orderedmap"
	"github.com/thirteen37/keepconf/internal/tree"
)

// TreeMarshaler is implemented by settings types that convert themselves
// into a configuration tree.
type TreeMarshaler interface {
	MarshalTree() (*orderedmap.OrderedMap, error)
}

// TreeUnmarshaler is implemented by pointers to settings types that apply a
// configuration tree onto themselves. UnmarshalTree merges: keys absent from
// the tree leave the receiver's current values in place.
type TreeUnmarshaler interface {
	UnmarshalTree(t *orderedmap.OrderedMap) error
}

// Object maps settings types that implement TreeMarshaler on T and
// TreeUnmarshaler on *T.
//
// FromTree starts from a fresh T seeded with the template's tree and merges
// the given tree over it. How strictly the shape is enforced is up to
// UnmarshalTree.
type Object[T TreeMarshaler, PT interface {
	*T
	TreeUnmarshaler
}] struct {
	template *orderedmap.OrderedMap
}

// NewObject returns a mapper whose fresh instances are seeded from template.
func NewObject[T TreeMarshaler, PT interface {
	*T
	TreeUnmarshaler
}](template T) (*Object[T, PT], error) {
	if tree.IsNil(template) {
		return nil, ErrNilValue
	}
	t, err := template.MarshalTree()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}
	return &Object[T, PT]{template: tree.CopyMap(t)}, nil
}

// ToTree returns a normalized copy of v.MarshalTree().
func (o *Object[T, PT]) ToTree(v T) (*orderedmap.OrderedMap, error) {
	if tree.IsNil(v) {
		return nil, ErrNilValue
	}
	t, err := v.MarshalTree()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return tree.NormalizeMap(t)
}

// FromTree applies t over a fresh instance seeded from the template.
func (o *Object[T, PT]) FromTree(t *orderedmap.OrderedMap) (T, error) {
	var out T
	if err := PT(&out).UnmarshalTree(tree.CopyMap(o.template)); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to seed settings from template: %w", err)
	}
	if err := PT(&out).UnmarshalTree(tree.CopyMap(t)); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return out, nil
}

// Copy returns a deep copy of v by mapping it through a tree.
func (o *Object[T, PT]) Copy(v T) (T, error) {
	t, err := o.ToTree(v)
	if err != nil {
		var zero T
		return zero, err
	}
	return o.FromTree(t)
}
