// Package tree implements the generic configuration tree shared by codecs,
// the sanitizer and the object mappers.
//
// A tree is an *orderedmap.OrderedMap whose values are scalars (string, int64,
// float64, bool, nil or time.Time), []any, or nested *orderedmap.OrderedMap.
package tree

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/iancoleman/orderedmap"
	"github.com/thirteen37/keepconf/internal/path"
)

// New returns an empty tree that does not escape HTML when marshalled.
func New() *orderedmap.OrderedMap {
	t := orderedmap.New()
	t.SetEscapeHTML(false)
	return t
}

// AsMap converts both value and pointer types of OrderedMap to a pointer.
// Returns nil if the value is not an OrderedMap.
func AsMap(v any) *orderedmap.OrderedMap {
	switch val := v.(type) {
	case *orderedmap.OrderedMap:
		return val
	case orderedmap.OrderedMap:
		return &val
	default:
		return nil
	}
}

// IsMap reports whether v is a (value or pointer) ordered map.
func IsMap(v any) bool {
	return AsMap(v) != nil
}

// Normalize returns a copy of v in canonical tree form: nested maps become
// *orderedmap.OrderedMap, plain map[string]any keys are sorted, slices become
// []any and all integer widths become int64.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case *orderedmap.OrderedMap:
		if val == nil {
			return nil
		}
		result := New()
		for _, k := range val.Keys() {
			child, _ := val.Get(k)
			result.Set(k, Normalize(child))
		}
		return result
	case orderedmap.OrderedMap:
		return Normalize(&val)
	case map[string]any:
		result := New()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			result.Set(k, Normalize(val[k]))
		}
		return result
	case []map[string]any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = Normalize(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = Normalize(item)
		}
		return result
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case string, bool, int64, float64:
		return val
	case float32:
		return float64(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return u
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		result := make([]any, rv.Len())
		for i := range result {
			result[i] = Normalize(rv.Index(i).Interface())
		}
		return result
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		result := New()
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			result.Set(k.String(), Normalize(rv.MapIndex(k).Interface()))
		}
		return result
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}
	return v
}

// NormalizeMap is Normalize for a root mapping. A nil input yields an empty tree.
func NormalizeMap(v any) (*orderedmap.OrderedMap, error) {
	if IsNil(v) {
		return New(), nil
	}
	m := AsMap(Normalize(v))
	if m == nil {
		return nil, fmt.Errorf("tree root is %T, not a mapping", v)
	}
	return m, nil
}

// DeepCopy creates a deep copy of a value.
// Works with ordered maps and slices found in decoded configuration trees.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case *orderedmap.OrderedMap:
		if val == nil {
			return val
		}
		result := New()
		for _, k := range val.Keys() {
			v, _ := val.Get(k)
			result.Set(k, DeepCopy(v))
		}
		return result
	case orderedmap.OrderedMap:
		return DeepCopy(&val)
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = DeepCopy(v)
		}
		return result
	default:
		// Scalars are immutable
		return val
	}
}

// CopyMap is DeepCopy for a root mapping.
func CopyMap(m *orderedmap.OrderedMap) *orderedmap.OrderedMap {
	if m == nil {
		return New()
	}
	return DeepCopy(m).(*orderedmap.OrderedMap)
}

// IsNil checks if v is nil, including typed nil pointers inside interfaces.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Len returns the number of top-level keys, treating nil as empty.
func Len(m *orderedmap.OrderedMap) int {
	if m == nil {
		return 0
	}
	return len(m.Keys())
}

// Get extracts a value at the given path.
func Get(t *orderedmap.OrderedMap, p path.Path) (any, bool) {
	var current any = t
	for _, segment := range p.Segments() {
		m := AsMap(current)
		if m == nil {
			return nil, false
		}
		val, exists := m.Get(segment)
		if !exists {
			return nil, false
		}
		current = val
	}
	return current, true
}

// Set sets a value at the given path.
// Creates intermediate maps as needed.
func Set(t *orderedmap.OrderedMap, p path.Path, value any) error {
	segments := p.Segments()
	if len(segments) == 0 {
		return fmt.Errorf("empty path")
	}
	if t == nil {
		return fmt.Errorf("tree is nil")
	}

	m := t
	for _, segment := range segments[:len(segments)-1] {
		next, exists := m.Get(segment)
		if !exists {
			next = New()
			m.Set(segment, next)
		}
		nextMap := AsMap(next)
		if nextMap == nil {
			return fmt.Errorf("path segment %q is not a map", segment)
		}
		if _, isValue := next.(orderedmap.OrderedMap); isValue {
			// Re-store as pointer so the write below lands in the tree.
			m.Set(segment, nextMap)
		}
		m = nextMap
	}

	m.Set(segments[len(segments)-1], value)
	return nil
}

// Delete removes the key at the given path. Every parent must exist and be a map.
func Delete(t *orderedmap.OrderedMap, p path.Path) error {
	segments := p.Segments()
	if len(segments) == 0 {
		return fmt.Errorf("empty path")
	}
	parent, err := parentOf(t, segments)
	if err != nil {
		return err
	}
	last := segments[len(segments)-1]
	if _, exists := parent.Get(last); !exists {
		return fmt.Errorf("key %q not found", p.String())
	}
	parent.Delete(last)
	return nil
}

// parentOf walks to the mapping holding the last segment.
func parentOf(t *orderedmap.OrderedMap, segments []string) (*orderedmap.OrderedMap, error) {
	if t == nil {
		return nil, fmt.Errorf("tree is nil")
	}
	m := t
	for i, segment := range segments[:len(segments)-1] {
		next, exists := m.Get(segment)
		if !exists {
			return nil, fmt.Errorf("parent %q not found", path.NewDottedPath(segments[:i+1]...).String())
		}
		nextMap := AsMap(next)
		if nextMap == nil {
			return nil, fmt.Errorf("path segment %q is not a map", segment)
		}
		m = nextMap
	}
	return m, nil
}

// Keys returns every key path in the tree in document order, parents before
// their children.
func Keys(t *orderedmap.OrderedMap) []path.Path {
	var out []path.Path
	var walk func(m *orderedmap.OrderedMap, prefix path.Path)
	walk = func(m *orderedmap.OrderedMap, prefix path.Path) {
		for _, k := range m.Keys() {
			p := path.Join(prefix, k)
			out = append(out, p)
			v, _ := m.Get(k)
			if child := AsMap(v); child != nil {
				walk(child, p)
			}
		}
	}
	if t != nil {
		walk(t, nil)
	}
	return out
}

// Equal reports structural equality, ignoring key order. Numbers compare by
// value so int64(3) equals float64(3).
func Equal(a, b any) bool {
	am, bm := AsMap(a), AsMap(b)
	if am != nil || bm != nil {
		if am == nil || bm == nil || Len(am) != Len(bm) {
			return false
		}
		for _, k := range am.Keys() {
			av, _ := am.Get(k)
			bv, exists := bm.Get(k)
			if !exists || !Equal(av, bv) {
				return false
			}
		}
		return true
	}

	as, aIsSlice := a.([]any)
	bs, bIsSlice := b.([]any)
	if aIsSlice || bIsSlice {
		if !aIsSlice || !bIsSlice || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}

	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
