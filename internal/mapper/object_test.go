package mapper

import (
	"errors"
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirteen37/keepconf/internal/tree"
)

// profile is a loosely typed settings object: it knows a few keys and keeps
// everything else in Extra.
type profile struct {
	Name  string
	Port  int64
	Tags  []any
	Extra *orderedmap.OrderedMap
}

func (p profile) MarshalTree() (*orderedmap.OrderedMap, error) {
	t := tree.New()
	t.Set("name", p.Name)
	t.Set("port", p.Port)
	t.Set("tags", tree.DeepCopy(p.Tags))
	if p.Extra != nil {
		for _, k := range p.Extra.Keys() {
			v, _ := p.Extra.Get(k)
			t.Set(k, tree.DeepCopy(v))
		}
	}
	return t, nil
}

func (p *profile) UnmarshalTree(t *orderedmap.OrderedMap) error {
	for _, k := range t.Keys() {
		v, _ := t.Get(k)
		switch k {
		case "name":
			s, ok := v.(string)
			if !ok {
				return errors.New("name must be a string")
			}
			p.Name = s
		case "port":
			n, ok := v.(int64)
			if !ok {
				return errors.New("port must be an integer")
			}
			p.Port = n
		case "tags":
			list, _ := v.([]any)
			p.Tags = list
		default:
			if p.Extra == nil {
				p.Extra = tree.New()
			}
			p.Extra.Set(k, v)
		}
	}
	return nil
}

func TestObject_RoundTrip(t *testing.T) {
	template := profile{Name: "default", Port: 389, Tags: []any{"a"}}
	m, err := NewObject[profile](template)
	require.NoError(t, err)

	in := profile{Name: "custom", Port: 636, Tags: []any{"b", int64(2)}, Extra: om("theme", "dark")}
	tr, err := m.ToTree(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "port", "tags", "theme"}, tr.Keys())

	out, err := m.FromTree(tr)
	require.NoError(t, err)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Port, out.Port)
	assert.Equal(t, in.Tags, out.Tags)
	assert.True(t, tree.Equal(in.Extra, out.Extra))
}

func TestObject_FromTree_MergesOverTemplate(t *testing.T) {
	template := profile{Name: "default", Port: 389, Tags: []any{"a"}}
	m, err := NewObject[profile](template)
	require.NoError(t, err)

	out, err := m.FromTree(om("port", int64(10), "unknown", true))
	require.NoError(t, err)

	assert.Equal(t, "default", out.Name, "absent keys keep template values")
	assert.Equal(t, int64(10), out.Port)
	unknown, ok := out.Extra.Get("unknown")
	assert.True(t, ok, "the object decides how permissive it is")
	assert.Equal(t, true, unknown)
}

func TestObject_FromTree_Error(t *testing.T) {
	m, err := NewObject[profile](profile{})
	require.NoError(t, err)

	_, err = m.FromTree(om("port", "not a number"))
	assert.Error(t, err)
}

func TestObject_Copy_DoesNotAlias(t *testing.T) {
	m, err := NewObject[profile](profile{})
	require.NoError(t, err)

	in := profile{Name: "x", Tags: []any{"a"}, Extra: om("nested", om("k", "v"))}
	cp, err := m.Copy(in)
	require.NoError(t, err)

	cp.Tags[0] = "changed"
	nested, _ := cp.Extra.Get("nested")
	tree.AsMap(nested).Set("k", "changed")

	assert.Equal(t, "a", in.Tags[0])
	orig, _ := in.Extra.Get("nested")
	k, _ := tree.AsMap(orig).Get("k")
	assert.Equal(t, "v", k)
}

func TestObject_TemplateIsSnapshotted(t *testing.T) {
	template := profile{Name: "default", Tags: []any{"a"}}
	m, err := NewObject[profile](template)
	require.NoError(t, err)

	template.Tags[0] = "mutated"

	out, err := m.FromTree(tree.New())
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, out.Tags)
}
