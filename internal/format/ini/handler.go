// Package ini provides an INI format handler for keepconf.
package ini

import (
	"bytes"
	"fmt"

	"github.com/iancoleman/orderedmap"
	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/tree"
	"gopkg.in/ini.v1"
)

// defaultSection is the name ini.v1 gives to keys that precede any section.
var defaultSection = ini.DefaultSection

// Handler implements format.Handler for INI files.
type Handler struct{}

// New creates a new INI handler.
func New() *Handler {
	return &Handler{}
}

// Parse reads INI bytes and returns an *orderedmap.OrderedMap.
// Structure: {"section": {"key": value}}
// Global keys (before any section) are stored under the empty string key "".
// Values are coerced with format.CoerceScalar, so "30" becomes int64(30) and
// an empty value becomes nil.
func (h *Handler) Parse(data []byte, opts format.ParseOptions) (*orderedmap.OrderedMap, error) {
	if opts.StripComments {
		return nil, fmt.Errorf("strip-comments is not supported for INI format")
	}

	cfg, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse INI: %w", err)
	}

	result := tree.New()

	for _, section := range cfg.Sections() {
		sectionName := section.Name()
		// ini.v1 uses "DEFAULT" for global section, we use ""
		if sectionName == defaultSection {
			sectionName = ""
		}

		sectionMap := tree.New()
		for _, key := range section.Keys() {
			sectionMap.Set(key.Name(), format.CoerceScalar(key.Value()))
		}

		// The implicit global section only appears when it has keys
		if len(sectionMap.Keys()) > 0 || sectionName != "" {
			result.Set(sectionName, sectionMap)
		}
	}

	return result, nil
}

// Serialize writes the tree to formatted INI bytes.
// The tree is checked with format.ValidINI first, so a tree with top-level
// scalars, nested sections or lists yields a *format.ShapeError and no output.
func (h *Handler) Serialize(t *orderedmap.OrderedMap, opts format.SerializeOptions) ([]byte, error) {
	if err := format.ValidINI(t); err != nil {
		return nil, err
	}

	cfg := ini.Empty()

	if t != nil {
		for _, sectionName := range t.Keys() {
			sectionVal, _ := t.Get(sectionName)
			sectionMap := tree.AsMap(sectionVal)

			// Get or create section
			var section *ini.Section
			if sectionName == "" {
				section = cfg.Section(defaultSection)
			} else {
				var err error
				section, err = cfg.NewSection(sectionName)
				if err != nil {
					return nil, fmt.Errorf("failed to create section %q: %w", sectionName, err)
				}
			}

			for _, keyName := range sectionMap.Keys() {
				keyVal, _ := sectionMap.Get(keyName)
				if _, err := section.NewKey(keyName, format.ScalarString(keyVal)); err != nil {
					return nil, fmt.Errorf("failed to create key %q: %w", keyName, err)
				}
			}
		}
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize INI: %w", err)
	}

	return buf.Bytes(), nil
}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)
