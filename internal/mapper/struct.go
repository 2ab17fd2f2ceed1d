package mapper

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/orderedmap"
	"github.com/thirteen37/keepconf/internal/tree"
)

// TagName is the struct tag naming a field's key in the tree.
const TagName = "settings"

var (
	timeType = reflect.TypeOf(time.Time{})
	treeType = reflect.TypeOf((*orderedmap.OrderedMap)(nil))
)

// Struct maps declared struct types with reflection.
//
// Keys come from the `settings:"name"` tag, or the Go field name when the tag
// is absent. A tag of "-" skips the field, as do unexported fields.
//
// String fields accept numbers and booleans in their canonical text form.
// Text that only looks numeric is not preserved through INI: "007" comes
// back as "7" and "1e3" as "1000".
type Struct[T any] struct {
	typ reflect.Type
}

// NewStruct returns a reflection mapper for T. T must be a struct or a
// pointer to a struct, and every field must have a representable kind.
func NewStruct[T any]() (*Struct[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if err := CheckType(typ); err != nil {
		return nil, err
	}
	return &Struct[T]{typ: typ}, nil
}

// CheckType reports an error wrapping ErrUnsupportedType when typ cannot be
// stored in a configuration tree: it is not a struct (or pointer to one), or
// it contains channels, functions, complex numbers, unsafe pointers or maps
// with non-string keys.
func CheckType(typ reflect.Type) error {
	root := typ
	if root.Kind() == reflect.Ptr {
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct || root == timeType {
		return fmt.Errorf("%w: %s is not a struct", ErrUnsupportedType, typ)
	}
	return checkType(root, "", map[reflect.Type]bool{})
}

func checkType(typ reflect.Type, p string, seen map[reflect.Type]bool) error {
	switch typ.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Interface:
		return nil
	case reflect.Ptr, reflect.Slice, reflect.Array:
		return checkType(typ.Elem(), p, seen)
	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return fmt.Errorf("%w: %s: map keys must be strings, got %s", ErrUnsupportedType, display(p), typ.Key())
		}
		return checkType(typ.Elem(), p, seen)
	case reflect.Struct:
		if typ == timeType || typ == treeType.Elem() || seen[typ] {
			return nil
		}
		seen[typ] = true
		for _, f := range fieldsOf(typ) {
			if err := checkType(typ.Field(f.index).Type, join(p, f.key), seen); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s: %s values cannot be stored", ErrUnsupportedType, display(p), typ.Kind())
}

func display(p string) string {
	if p == "" {
		return "(root)"
	}
	return p
}

// field is one mapped struct field.
type field struct {
	index int
	key   string
}

// fieldsOf lists the mapped fields of a struct type in declaration order.
func fieldsOf(typ reflect.Type) []field {
	var fields []field
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := sf.Name
		if tag, ok := sf.Tag.Lookup(TagName); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				continue
			}
			if name != "" {
				key = name
			}
		}
		fields = append(fields, field{index: i, key: key})
	}
	return fields
}

// ToTree walks v's declared fields and returns them as a tree.
func (s *Struct[T]) ToTree(v T) (*orderedmap.OrderedMap, error) {
	rv := reflect.ValueOf(&v).Elem()
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, ErrNilValue
		}
		rv = rv.Elem()
	}
	m, ok := toValue(rv).(*orderedmap.OrderedMap)
	if !ok {
		return nil, fmt.Errorf("%w: %s did not map to a tree", ErrUnsupportedType, rv.Type())
	}
	return m, nil
}

// toValue converts a reflected value to its tree form.
func toValue(rv reflect.Value) any {
	if rv.CanInterface() {
		if m := tree.AsMap(rv.Interface()); m != nil {
			return tree.Normalize(m)
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
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
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return toValue(rv.Elem())
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = toValue(rv.Index(i))
		}
		return out
	case reflect.Map:
		// A nil map is an empty section, not a null setting
		if rv.IsNil() {
			return tree.New()
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		m := tree.New()
		for _, k := range keys {
			m.Set(k.String(), toValue(rv.MapIndex(k)))
		}
		return m
	case reflect.Struct:
		if rv.Type() == timeType {
			return rv.Interface()
		}
		m := tree.New()
		for _, f := range fieldsOf(rv.Type()) {
			m.Set(f.key, toValue(rv.Field(f.index)))
		}
		return m
	}
	return tree.Normalize(rv.Interface())
}

// FromTree builds a T from its zero value, filling fields from t.
// Keys without a matching field, wrong scalar kinds, overflowing numbers and
// fractional numbers for integer fields fail with a *FieldError.
func (s *Struct[T]) FromTree(t *orderedmap.OrderedMap) (T, error) {
	var out T
	var src any = t
	if t == nil {
		src = tree.New()
	}
	if err := fromValue(reflect.ValueOf(&out).Elem(), src, ""); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Copy returns a deep copy of v by mapping it through a tree.
func (s *Struct[T]) Copy(v T) (T, error) {
	t, err := s.ToTree(v)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.FromTree(t)
}

// fromValue stores the tree value v into dst.
func fromValue(dst reflect.Value, v any, p string) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	// Free-form sections keep whatever the tree holds
	if dst.Type() == treeType {
		m := tree.AsMap(v)
		if m == nil {
			return mismatch(p, "expected a mapping, got %T", v)
		}
		dst.Set(reflect.ValueOf(tree.CopyMap(m)))
		return nil
	}

	switch dst.Kind() {
	case reflect.Ptr:
		elem := reflect.New(dst.Type().Elem())
		if err := fromValue(elem.Elem(), v, p); err != nil {
			return err
		}
		dst.Set(elem)
		return nil

	case reflect.Interface:
		val := reflect.ValueOf(tree.DeepCopy(v))
		if !val.Type().AssignableTo(dst.Type()) {
			return mismatch(p, "cannot store %T in %s", v, dst.Type())
		}
		dst.Set(val)
		return nil

	case reflect.Bool:
		b, ok := v.(bool)
		if !ok {
			return mismatch(p, "expected a boolean, got %T", v)
		}
		dst.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := toInt(v)
		if err != nil {
			return mismatch(p, "%v", err)
		}
		if dst.OverflowInt(i) {
			return mismatch(p, "%d overflows %s", i, dst.Type())
		}
		dst.SetInt(i)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := toUint(v)
		if err != nil {
			return mismatch(p, "%v", err)
		}
		if dst.OverflowUint(u) {
			return mismatch(p, "%d overflows %s", u, dst.Type())
		}
		dst.SetUint(u)
		return nil

	case reflect.Float32, reflect.Float64:
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int64:
			f = float64(n)
		case uint64:
			f = float64(n)
		default:
			return mismatch(p, "expected a number, got %T", v)
		}
		if dst.OverflowFloat(f) {
			return mismatch(p, "%g overflows %s", f, dst.Type())
		}
		dst.SetFloat(f)
		return nil

	case reflect.String:
		// Numbers and booleans are taken in their canonical text form, since
		// INI stores every value as text.
		switch s := v.(type) {
		case string:
			dst.SetString(s)
		case bool:
			dst.SetString(strconv.FormatBool(s))
		case int64:
			dst.SetString(strconv.FormatInt(s, 10))
		case uint64:
			dst.SetString(strconv.FormatUint(s, 10))
		case float64:
			dst.SetString(strconv.FormatFloat(s, 'g', -1, 64))
		default:
			return mismatch(p, "expected a string, got %T", v)
		}
		return nil

	case reflect.Slice, reflect.Array:
		list, ok := v.([]any)
		if !ok {
			return mismatch(p, "expected a list, got %T", v)
		}
		if dst.Kind() == reflect.Array {
			if len(list) != dst.Len() {
				return mismatch(p, "expected %d items, got %d", dst.Len(), len(list))
			}
			for i, item := range list {
				if err := fromValue(dst.Index(i), item, p+"["+strconv.Itoa(i)+"]"); err != nil {
					return err
				}
			}
			return nil
		}
		out := reflect.MakeSlice(dst.Type(), len(list), len(list))
		for i, item := range list {
			if err := fromValue(out.Index(i), item, p+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil

	case reflect.Map:
		m := tree.AsMap(v)
		if m == nil {
			return mismatch(p, "expected a mapping, got %T", v)
		}
		out := reflect.MakeMapWithSize(dst.Type(), len(m.Keys()))
		for _, k := range m.Keys() {
			child, _ := m.Get(k)
			elem := reflect.New(dst.Type().Elem()).Elem()
			if err := fromValue(elem, child, join(p, k)); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), elem)
		}
		dst.Set(out)
		return nil

	case reflect.Struct:
		if dst.Type() == timeType {
			return fromTime(dst, v, p)
		}
		m := tree.AsMap(v)
		if m == nil {
			return mismatch(p, "expected a mapping, got %T", v)
		}
		dst.Set(reflect.Zero(dst.Type()))
		fields := fieldsOf(dst.Type())
		for _, k := range m.Keys() {
			f, ok := lookup(fields, k)
			if !ok {
				return mismatch(join(p, k), "unknown key for %s", dst.Type())
			}
			child, _ := m.Get(k)
			if err := fromValue(dst.Field(f.index), child, join(p, k)); err != nil {
				return err
			}
		}
		return nil
	}

	return mismatch(p, "cannot store values in %s", dst.Type())
}

func lookup(fields []field, key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("%g is not an integer", n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

func toUint(v any) (uint64, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("%d is negative", n)
		}
		return uint64(n), nil
	case uint64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || n < 0 || n >= math.MaxUint64 {
			return 0, fmt.Errorf("%g is not an unsigned integer", n)
		}
		return uint64(n), nil
	}
	return 0, fmt.Errorf("expected an unsigned integer, got %T", v)
}

func fromTime(dst reflect.Value, v any, p string) error {
	switch t := v.(type) {
	case time.Time:
		dst.Set(reflect.ValueOf(t))
		return nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return mismatch(p, "expected an RFC 3339 time: %v", err)
		}
		dst.Set(reflect.ValueOf(parsed))
		return nil
	}
	return mismatch(p, "expected a time, got %T", v)
}

var _ Mapper[struct{}] = (*Struct[struct{}])(nil)
