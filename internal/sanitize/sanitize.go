// Package sanitize reconciles a loaded configuration tree with the tree of
// default settings.
package sanitize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iancoleman/orderedmap"
	"github.com/thirteen37/keepconf/internal/path"
	"github.com/thirteen37/keepconf/internal/tree"
)

// ErrApply is returned when a diff cannot be applied to a tree.
var ErrApply = errors.New("failed to apply diff")

// MismatchKind describes how the loaded and default values disagree in shape.
type MismatchKind string

const (
	// MappingVsScalar: the loaded tree holds a mapping where the default is a scalar.
	MappingVsScalar MismatchKind = "mapping-vs-scalar"
	// ScalarVsMapping: the loaded tree holds a scalar where the default is a mapping.
	ScalarVsMapping MismatchKind = "scalar-vs-mapping"
)

// Addition is a key missing from the loaded tree, with the default value to insert.
type Addition struct {
	Path  path.Path
	Value any
}

// Mismatch is a key present in both trees whose values differ in shape.
// Mismatches are reported but never reconciled.
type Mismatch struct {
	Path path.Path
	Kind MismatchKind
}

// Diff is the result of comparing a loaded tree with the defaults.
type Diff struct {
	Remove     []path.Path
	Add        []Addition
	Mismatches []Mismatch
}

// Empty reports whether applying the diff would change nothing.
// Mismatches do not count as changes.
func (d Diff) Empty() bool {
	return len(d.Remove) == 0 && len(d.Add) == 0
}

// AddMap returns the additions as an ordered mapping of dotted path to value.
func (d Diff) AddMap() *orderedmap.OrderedMap {
	m := tree.New()
	for _, a := range d.Add {
		m.Set(a.Path.String(), a.Value)
	}
	return m
}

// RemoveStrings returns the removal paths in dotted form.
func (d Diff) RemoveStrings() []string {
	out := make([]string, len(d.Remove))
	for i, p := range d.Remove {
		out[i] = p.String()
	}
	return out
}

// String summarizes the diff for logs.
func (d Diff) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d to remove, %d to add", len(d.Remove), len(d.Add))
	if len(d.Mismatches) > 0 {
		fmt.Fprintf(&b, ", %d mismatched", len(d.Mismatches))
	}
	return b.String()
}

// Compute compares loaded against defaults without modifying either.
//
// Algorithm, level by level:
//  1. Every loaded key absent from defaults is marked for removal.
//  2. A loaded mapping whose default is also a mapping is recursed into.
//  3. Every default key absent from loaded is marked for addition, carrying
//     a deep copy of the default value.
//
// Removals keep loaded order and additions keep default order.
func Compute(loaded, defaults *orderedmap.OrderedMap) Diff {
	var d Diff
	if defaults == nil {
		defaults = tree.New()
	}
	compute(loaded, defaults, nil, &d)
	return d
}

func compute(loaded, defaults *orderedmap.OrderedMap, prefix path.Path, d *Diff) {
	if loaded != nil {
		for _, key := range loaded.Keys() {
			current := path.Join(prefix, key)
			defaultVal, exists := defaults.Get(key)
			if !exists {
				d.Remove = append(d.Remove, current)
				continue
			}

			loadedVal, _ := loaded.Get(key)
			loadedMap, defaultMap := tree.AsMap(loadedVal), tree.AsMap(defaultVal)
			switch {
			case loadedMap != nil && defaultMap != nil:
				compute(loadedMap, defaultMap, current, d)
			case loadedMap != nil:
				d.Mismatches = append(d.Mismatches, Mismatch{Path: current, Kind: MappingVsScalar})
			case defaultMap != nil:
				d.Mismatches = append(d.Mismatches, Mismatch{Path: current, Kind: ScalarVsMapping})
			}
		}
	}

	for _, key := range defaults.Keys() {
		if loaded != nil {
			if _, exists := loaded.Get(key); exists {
				continue
			}
		}
		v, _ := defaults.Get(key)
		d.Add = append(d.Add, Addition{Path: path.Join(prefix, key), Value: tree.DeepCopy(v)})
	}
}

// Apply mutates t in place: removals first, then additions. Each path is
// resolved by walking to its parent mapping.
func Apply(t *orderedmap.OrderedMap, d Diff) error {
	for _, p := range d.Remove {
		if err := tree.Delete(t, p); err != nil {
			return fmt.Errorf("%w: remove %s: %v", ErrApply, p, err)
		}
	}
	for _, a := range d.Add {
		if err := add(t, a); err != nil {
			return fmt.Errorf("%w: add %s: %v", ErrApply, a.Path, err)
		}
	}
	return nil
}

// add inserts one addition. The parent must already exist, since Compute
// only adds at levels it recursed into.
func add(t *orderedmap.OrderedMap, a Addition) error {
	segments := a.Path.Segments()
	if len(segments) == 0 {
		return fmt.Errorf("empty path")
	}
	if len(segments) > 1 {
		parent := path.NewDottedPath(segments[:len(segments)-1]...)
		v, ok := tree.Get(t, parent)
		if !ok {
			return fmt.Errorf("parent %q not found", parent.String())
		}
		if tree.AsMap(v) == nil {
			return fmt.Errorf("parent %q is not a mapping", parent.String())
		}
	}
	return tree.Set(t, a.Path, tree.DeepCopy(a.Value))
}

// Sanitize computes the diff of t against defaults and applies it to t.
// The applied diff is returned so callers can log it.
func Sanitize(t, defaults *orderedmap.OrderedMap) (Diff, error) {
	if t == nil {
		return Diff{}, fmt.Errorf("%w: tree is nil", ErrApply)
	}
	d := Compute(t, defaults)
	if err := Apply(t, d); err != nil {
		return d, err
	}
	return d, nil
}
