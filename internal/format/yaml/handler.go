// Package yaml provides a YAML format handler for keepconf.
package yaml

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/iancoleman/orderedmap"
	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/tree"
	"gopkg.in/yaml.v3"
)

// Handler implements format.Handler for YAML files.
// Only the safe subset is produced and accepted: mappings, sequences and
// plain scalars. Custom tags are rejected.
type Handler struct{}

// New creates a new YAML handler.
func New() *Handler {
	return &Handler{}
}

// Parse reads YAML bytes and returns an ordered tree.
// Key order from the document is preserved through yaml.Node.
func (h *Handler) Parse(data []byte, opts format.ParseOptions) (*orderedmap.OrderedMap, error) {
	if opts.StripComments {
		return nil, fmt.Errorf("strip-comments is not supported for YAML format")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return tree.New(), nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return tree.New(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse YAML: top-level value must be a mapping")
	}

	v, err := newDecoder().fromNode(root)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return v.(*orderedmap.OrderedMap), nil
}

// maxNodes caps the number of nodes a document may expand to once aliases
// are resolved.
const maxNodes = 100000

// decoder converts a yaml.Node graph to tree form, expanding aliases.
type decoder struct {
	expanding map[*yaml.Node]bool
	count     int
}

func newDecoder() *decoder {
	return &decoder{expanding: make(map[*yaml.Node]bool)}
}

// fromNode converts a yaml.Node to tree form.
func (d *decoder) fromNode(n *yaml.Node) (any, error) {
	d.count++
	if d.count > maxNodes {
		return nil, fmt.Errorf("line %d: document expands to more than %d nodes", n.Line, maxNodes)
	}

	switch n.Kind {
	case yaml.MappingNode:
		result := tree.New()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Tag == "!!merge" {
				return nil, fmt.Errorf("line %d: merge keys are not supported", keyNode.Line)
			}
			val, err := d.fromNode(valNode)
			if err != nil {
				return nil, err
			}
			result.Set(keyNode.Value, val)
		}
		return result, nil
	case yaml.SequenceNode:
		result := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			val, err := d.fromNode(item)
			if err != nil {
				return nil, err
			}
			result = append(result, val)
		}
		return result, nil
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("line %d: unknown anchor %q", n.Line, n.Value)
		}
		if d.expanding[n.Alias] {
			return nil, fmt.Errorf("line %d: anchor %q contains itself", n.Line, n.Value)
		}
		d.expanding[n.Alias] = true
		defer delete(d.expanding, n.Alias)
		return d.fromNode(n.Alias)
	case yaml.ScalarNode:
		if strings.HasPrefix(n.Tag, "!") && !strings.HasPrefix(n.Tag, "!!") {
			return nil, fmt.Errorf("line %d: custom tag %s is not allowed", n.Line, n.Tag)
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return tree.Normalize(v), nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}

// Serialize writes the tree to YAML bytes, keeping key order.
func (h *Handler) Serialize(t *orderedmap.OrderedMap, opts format.SerializeOptions) ([]byte, error) {
	if t == nil {
		t = tree.New()
	}

	node, err := toNode(t)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize YAML: %w", err)
	}

	indent := 2
	if opts.Indent != "" {
		indent = len(opts.Indent)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("failed to serialize YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to serialize YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// toNode converts a tree value into a yaml.Node.
func toNode(v any) (*yaml.Node, error) {
	if m := tree.AsMap(v); m != nil {
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range m.Keys() {
			child, _ := m.Get(k)
			valNode, err := toNode(child)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			n.Content = append(n.Content, keyNode, valNode)
		}
		return n, nil
	}

	switch val := v.(type) {
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i, item := range val {
			itemNode, err := toNode(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			n.Content = append(n.Content, itemNode)
		}
		return n, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case time.Time:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: val.Format(time.RFC3339Nano)}, nil
	}

	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)
