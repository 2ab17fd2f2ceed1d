// Package path provides key path abstractions for navigating configuration trees.
package path

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Separator joins the segments of a dotted path.
const Separator = "."

// Path represents a selector for navigating a configuration tree.
type Path interface {
	// Segments returns the path as a slice of string keys.
	Segments() []string

	// String returns a canonical string representation.
	String() string
}

// ArrayPath is a path specified as an array of string keys.
// Example: ["auth", "ldap_base_dn"]
// It is the only form that can address keys containing a dot.
type ArrayPath struct {
	segments []string
}

// NewArrayPath creates a new ArrayPath from string segments.
func NewArrayPath(segments []string) *ArrayPath {
	return &ArrayPath{segments: segments}
}

// ParseArrayPath parses a JSON array string into an ArrayPath.
// Example input: `["auth", "port"]`
func ParseArrayPath(s string) (*ArrayPath, error) {
	var segments []string
	if err := json.Unmarshal([]byte(s), &segments); err != nil {
		return nil, fmt.Errorf("invalid path array: %w", err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("invalid path array: empty")
	}
	return &ArrayPath{segments: segments}, nil
}

// Segments returns the path segments.
func (p *ArrayPath) Segments() []string {
	return p.segments
}

// String returns the path as a JSON array string.
func (p *ArrayPath) String() string {
	data, _ := json.Marshal(p.segments)
	return string(data)
}

// DottedPath is a path written as keys joined by dots.
// Example: auth.port
type DottedPath struct {
	segments []string
}

// NewDottedPath creates a DottedPath from string segments.
func NewDottedPath(segments ...string) *DottedPath {
	return &DottedPath{segments: segments}
}

// ParseDotted splits s on dots. Empty segments are rejected.
func ParseDotted(s string) (*DottedPath, error) {
	if s == "" {
		return nil, fmt.Errorf("invalid dotted path: empty")
	}
	segments := strings.Split(s, Separator)
	for i, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("invalid dotted path %q: empty segment at position %d", s, i)
		}
	}
	return &DottedPath{segments: segments}, nil
}

// Segments returns the path segments.
func (p *DottedPath) Segments() []string {
	return p.segments
}

// String returns the segments joined by dots.
func (p *DottedPath) String() string {
	return strings.Join(p.segments, Separator)
}

// Parse accepts either form: a JSON array when s starts with '[', dotted otherwise.
func Parse(s string) (Path, error) {
	if strings.HasPrefix(strings.TrimSpace(s), "[") {
		return ParseArrayPath(s)
	}
	return ParseDotted(s)
}

// Join returns a new dotted path with key appended to parent.
// A nil parent yields a single-segment path.
func Join(parent Path, key string) *DottedPath {
	if parent == nil {
		return &DottedPath{segments: []string{key}}
	}
	prev := parent.Segments()
	segments := make([]string, len(prev), len(prev)+1)
	copy(segments, prev)
	return &DottedPath{segments: append(segments, key)}
}

// Equal reports whether two paths have identical segments.
func Equal(a, b Path) bool {
	as, bs := a.Segments(), b.Segments()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
