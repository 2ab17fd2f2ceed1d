// Package format provides interfaces and implementations for handling different configuration file formats.
package format

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/iancoleman/orderedmap"
)

// Format names a supported file format.
type Format string

// Supported formats.
const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
	INI  Format = "ini"
)

// Supported lists every format in a stable order.
var Supported = []Format{JSON, YAML, TOML, INI}

var (
	// ErrUnsupportedFormat is returned when a format is unknown or cannot be
	// inferred from the file extensions.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMissingDependency is returned when no codec is available for a format.
	ErrMissingDependency = errors.New("codec dependency missing")

	// ErrShape is returned when a tree cannot be represented in a format.
	ErrShape = errors.New("tree shape not representable")
)

// extensions maps file extensions to formats.
var extensions = map[string]Format{
	".json": JSON,
	".yaml": YAML,
	".yml":  YAML,
	".toml": TOML,
	".ini":  INI,
}

// Parse validates an explicitly configured format name.
func Parse(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case JSON, YAML, TOML, INI:
		return f, nil
	case "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, name, supportedList())
}

// Detect infers the format from the shared extension of the read and write paths.
func Detect(readPath, writePath string) (Format, error) {
	readExt := strings.ToLower(filepath.Ext(readPath))
	writeExt := strings.ToLower(filepath.Ext(writePath))
	if readExt != writeExt {
		return "", fmt.Errorf("%w: read and write paths must have the same extension when no format is given (%q vs %q)",
			ErrUnsupportedFormat, readExt, writeExt)
	}
	f, ok := extensions[readExt]
	if !ok {
		return "", fmt.Errorf("%w: cannot infer format from extension %q (supported: %s)",
			ErrUnsupportedFormat, readExt, supportedList())
	}
	return f, nil
}

func supportedList() string {
	names := make([]string, len(Supported))
	for i, f := range Supported {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// ParseOptions configures parsing behavior.
type ParseOptions struct {
	StripComments bool // Strip comments (for JSON/JSONC)
}

// SerializeOptions configures serialization behavior.
type SerializeOptions struct {
	Indent string // Indentation string (e.g., "  " or "\t")
}

// Handler defines the interface for configuration file format handlers.
type Handler interface {
	// Parse reads raw bytes and returns a configuration tree.
	// Empty input yields an empty tree.
	Parse(data []byte, opts ParseOptions) (*orderedmap.OrderedMap, error)

	// Serialize writes the tree back to bytes. It must not produce partial
	// output: shape errors are reported before anything is returned.
	Serialize(tree *orderedmap.OrderedMap, opts SerializeOptions) ([]byte, error)
}

// ShapeError reports a tree value that the target format cannot represent.
type ShapeError struct {
	Format Format
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: key %q: %s", e.Format, e.Key, e.Reason)
}

// Unwrap makes errors.Is(err, ErrShape) hold.
func (e *ShapeError) Unwrap() error {
	return ErrShape
}
