// Package toml provides a TOML format handler for keepconf.
package toml

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/iancoleman/orderedmap"
	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/tree"
)

// Handler implements format.Handler for TOML files.
type Handler struct{}

// New creates a new TOML handler.
func New() *Handler {
	return &Handler{}
}

// Parse reads TOML bytes and returns an *orderedmap.OrderedMap.
// Key order from the original TOML document is preserved.
func (h *Handler) Parse(data []byte, opts format.ParseOptions) (*orderedmap.OrderedMap, error) {
	if opts.StripComments {
		return nil, fmt.Errorf("strip-comments is not supported for TOML format")
	}

	// Decode into a generic map to get values
	var raw map[string]any
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, FormatError(err)
	}

	// Convert to ordered map using metadata for key order
	ordered := convertToOrderedMapWithMeta(raw, meta, nil)
	result, err := tree.NormalizeMap(ordered)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return result, nil
}

// convertToOrderedMapWithMeta recursively converts map[string]any to *orderedmap.OrderedMap
// using TOML metadata to preserve key order.
func convertToOrderedMapWithMeta(v any, meta toml.MetaData, prefix []string) any {
	switch val := v.(type) {
	case map[string]any:
		result := tree.New()

		// Get keys in document order from metadata
		keys := getKeysInOrder(meta, prefix, val)

		for _, k := range keys {
			childPrefix := make([]string, len(prefix), len(prefix)+1)
			copy(childPrefix, prefix)
			childPrefix = append(childPrefix, k)
			result.Set(k, convertToOrderedMapWithMeta(val[k], meta, childPrefix))
		}
		return result
	case []map[string]any:
		// Array of tables
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convertToOrderedMapWithMeta(item, meta, prefix)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convertToOrderedMapWithMeta(item, meta, prefix)
		}
		return result
	default:
		return val
	}
}

// getKeysInOrder returns map keys in document order using TOML metadata.
func getKeysInOrder(meta toml.MetaData, prefix []string, m map[string]any) []string {
	// Build a set of keys we need to find
	needed := make(map[string]bool)
	for k := range m {
		needed[k] = true
	}

	// Get keys in order from metadata
	var ordered []string
	for _, key := range meta.Keys() {
		// Check if this key matches our prefix + one more segment
		if len(key) == len(prefix)+1 && matchesPrefix(key, prefix) {
			k := key[len(prefix)]
			if needed[k] && !contains(ordered, k) {
				ordered = append(ordered, k)
			}
		}
	}

	// Anything metadata did not report goes last, sorted
	var rest []string
	for k := range needed {
		if !contains(ordered, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	return ordered
}

// matchesPrefix checks if key starts with prefix.
func matchesPrefix(key toml.Key, prefix []string) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if key[i] != p {
			return false
		}
	}
	return true
}

// contains checks if slice contains string.
func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

// Serialize writes the tree to formatted TOML bytes.
// TOML has no null: nil values are omitted from the output.
func (h *Handler) Serialize(t *orderedmap.OrderedMap, opts format.SerializeOptions) ([]byte, error) {
	// Convert ordered map to regular map for TOML encoding
	var regular any = map[string]any{}
	if t != nil {
		regular = convertToRegularMap(t)
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if opts.Indent != "" {
		encoder.Indent = opts.Indent
	}
	if err := encoder.Encode(regular); err != nil {
		return nil, fmt.Errorf("failed to serialize TOML: %w", err)
	}

	return buf.Bytes(), nil
}

// convertToRegularMap recursively converts *orderedmap.OrderedMap to map[string]any.
// Note: This loses key order, but BurntSushi/toml encoder sorts keys alphabetically anyway.
func convertToRegularMap(v any) any {
	if m := tree.AsMap(v); m != nil {
		result := make(map[string]any)
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			result[k] = convertToRegularMap(v)
		}
		return result
	}
	if val, ok := v.([]any); ok {
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = convertToRegularMap(v)
		}
		return result
	}
	return v
}

// FormatError returns a detailed error message for TOML parse errors.
func FormatError(err error) error {
	// BurntSushi/toml parse errors carry the line and column
	var perr toml.ParseError
	if errors.As(err, &perr) {
		return fmt.Errorf("TOML parse error at line %d, column %d: %w", perr.Position.Line, perr.Position.Col, err)
	}

	return fmt.Errorf("failed to parse TOML: %w", err)
}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)
