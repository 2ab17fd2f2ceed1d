package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/orderedmap"
	"github.com/thirteen37/keepconf/internal/tree"
)

// ValidINI checks that every top-level value is a section (a mapping) and
// that every section holds only scalars.
func ValidINI(t *orderedmap.OrderedMap) error {
	if t == nil {
		return nil
	}
	for _, sectionName := range t.Keys() {
		sectionVal, _ := t.Get(sectionName)
		section := tree.AsMap(sectionVal)
		if section == nil {
			return &ShapeError{
				Format: INI,
				Key:    sectionName,
				Reason: "top-level keys must be sections with nested settings",
			}
		}
		for _, key := range section.Keys() {
			val, _ := section.Get(key)
			switch val.(type) {
			case *orderedmap.OrderedMap, orderedmap.OrderedMap:
				return &ShapeError{Format: INI, Key: sectionName + "." + key, Reason: "sections cannot be nested"}
			case []any:
				return &ShapeError{Format: INI, Key: sectionName + "." + key, Reason: "lists are not supported"}
			}
		}
	}
	return nil
}

// CoerceScalar converts an INI string to its most specific type:
// "" becomes nil, true/false (any case) become bools, then integer and float
// parsing is attempted, and anything else stays a string. The original text
// of a number is lost, so "007" reads back as 7.
func CoerceScalar(s string) any {
	if s == "" {
		return nil
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// ScalarString converts a scalar to its INI string form.
// nil becomes the empty string so that CoerceScalar restores it.
func ScalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v)
}
