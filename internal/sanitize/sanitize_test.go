package sanitize

import (
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirteen37/keepconf/internal/path"
	"github.com/thirteen37/keepconf/internal/tree"
	"pgregory.net/rapid"
)

// Helper to create an ordered map from key-value pairs
func om(pairs ...any) *orderedmap.OrderedMap {
	m := tree.New()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

func paths(ps []path.Path) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name       string
		loaded     *orderedmap.OrderedMap
		defaults   *orderedmap.OrderedMap
		wantRemove []string
		wantAdd    []string
		wantResult *orderedmap.OrderedMap
	}{
		{
			name:       "nested addition",
			loaded:     om("auth", om("domain", "x")),
			defaults:   om("auth", om("domain", "localhost", "port", int64(389))),
			wantRemove: []string{},
			wantAdd:    []string{"auth.port"},
			wantResult: om("auth", om("domain", "x", "port", int64(389))),
		},
		{
			name:       "removal of unknown key",
			loaded:     om("auth", om("domain", "x", "legacy_flag", true)),
			defaults:   om("auth", om("domain", "localhost")),
			wantRemove: []string{"auth.legacy_flag"},
			wantAdd:    []string{},
			wantResult: om("auth", om("domain", "x")),
		},
		{
			name:       "identical trees",
			loaded:     om("a", int64(1), "b", om("c", "d")),
			defaults:   om("a", int64(1), "b", om("c", "d")),
			wantRemove: []string{},
			wantAdd:    []string{},
			wantResult: om("a", int64(1), "b", om("c", "d")),
		},
		{
			name:       "empty loaded tree repopulates schema",
			loaded:     om(),
			defaults:   om("a", int64(1), "b", om("c", "d")),
			wantRemove: []string{},
			wantAdd:    []string{"a", "b"},
			wantResult: om("a", int64(1), "b", om("c", "d")),
		},
		{
			name:       "empty mapping is recursed into",
			loaded:     om("b", om()),
			defaults:   om("b", om("c", "d", "e", int64(2))),
			wantRemove: []string{},
			wantAdd:    []string{"b.c", "b.e"},
			wantResult: om("b", om("c", "d", "e", int64(2))),
		},
		{
			name:       "removed subtree is one removal",
			loaded:     om("keep", int64(1), "gone", om("x", int64(1), "y", int64(2))),
			defaults:   om("keep", int64(0)),
			wantRemove: []string{"gone"},
			wantAdd:    []string{},
			wantResult: om("keep", int64(1)),
		},
		{
			name:       "removals in loaded order, additions in default order",
			loaded:     om("z", int64(1), "a", int64(2), "m", int64(3)),
			defaults:   om("q", int64(1), "b", int64(2), "m", int64(0)),
			wantRemove: []string{"z", "a"},
			wantAdd:    []string{"q", "b"},
			wantResult: om("m", int64(3), "q", int64(1), "b", int64(2)),
		},
		{
			name:       "null values are kept",
			loaded:     om("ldap_server", nil),
			defaults:   om("ldap_server", "ldap://localhost"),
			wantRemove: []string{},
			wantAdd:    []string{},
			wantResult: om("ldap_server", nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Compute(tt.loaded, tt.defaults)
			assert.Equal(t, tt.wantRemove, paths(d.Remove))
			assert.Equal(t, tt.wantAdd, d.AddMap().Keys())
			assert.Equal(t, len(tt.wantRemove) == 0 && len(tt.wantAdd) == 0, d.Empty())

			require.NoError(t, Apply(tt.loaded, d))
			assert.True(t, tree.Equal(tt.wantResult, tt.loaded), "result mismatch")
			assert.Equal(t, tt.wantResult.Keys(), tt.loaded.Keys())
		})
	}
}

func TestCompute_AdditionValues(t *testing.T) {
	defaults := om("auth", om("domain", "localhost", "port", int64(389)))
	d := Compute(om("auth", om("domain", "x")), defaults)

	add := d.AddMap()
	v, ok := add.Get("auth.port")
	require.True(t, ok)
	assert.Equal(t, int64(389), v)
}

func TestCompute_AdditionsDoNotAliasDefaults(t *testing.T) {
	scopes := om("student", "Student")
	defaults := om("auth", om("scopes", scopes))

	loaded := om("auth", om())
	_, err := Sanitize(loaded, defaults)
	require.NoError(t, err)

	auth, _ := loaded.Get("auth")
	added, _ := tree.AsMap(auth).Get("scopes")
	tree.AsMap(added).Set("admin", "Administrator")

	assert.Equal(t, []string{"student"}, scopes.Keys(), "defaults were modified through the sanitized tree")
}

func TestCompute_Mismatches(t *testing.T) {
	loaded := om(
		"auth", "not-a-section",
		"port", om("value", int64(1)),
		"name", "ok",
	)
	defaults := om(
		"auth", om("domain", "localhost"),
		"port", int64(389),
		"name", "default",
	)

	d := Compute(loaded, defaults)

	require.Len(t, d.Mismatches, 2)
	assert.Equal(t, "auth", d.Mismatches[0].Path.String())
	assert.Equal(t, ScalarVsMapping, d.Mismatches[0].Kind)
	assert.Equal(t, "port", d.Mismatches[1].Path.String())
	assert.Equal(t, MappingVsScalar, d.Mismatches[1].Kind)

	// Mismatches are reported, not reconciled
	assert.True(t, d.Empty())
	assert.Empty(t, d.Remove, "a loaded mapping with a scalar default is not recursed into")
}

func TestCompute_NilTrees(t *testing.T) {
	d := Compute(nil, om("a", int64(1)))
	assert.Equal(t, []string{"a"}, d.AddMap().Keys())

	d = Compute(om("a", int64(1)), nil)
	assert.Equal(t, []string{"a"}, paths(d.Remove))
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name string
		t    *orderedmap.OrderedMap
		d    Diff
	}{
		{
			name: "remove missing key",
			t:    om("a", int64(1)),
			d:    Diff{Remove: []path.Path{path.NewDottedPath("b")}},
		},
		{
			name: "remove under missing parent",
			t:    om("a", int64(1)),
			d:    Diff{Remove: []path.Path{path.NewDottedPath("x", "y")}},
		},
		{
			name: "add under missing parent",
			t:    om(),
			d:    Diff{Add: []Addition{{Path: path.NewDottedPath("x", "y"), Value: int64(1)}}},
		},
		{
			name: "add under scalar parent",
			t:    om("x", "scalar"),
			d:    Diff{Add: []Addition{{Path: path.NewDottedPath("x", "y"), Value: int64(1)}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Apply(tt.t, tt.d)
			assert.ErrorIs(t, err, ErrApply)
		})
	}
}

func TestSanitize_NilTree(t *testing.T) {
	_, err := Sanitize(nil, om("a", int64(1)))
	assert.ErrorIs(t, err, ErrApply)
}

func TestSanitize_DottedKeys(t *testing.T) {
	// Keys containing a dot are addressed by segments, never by splitting strings
	loaded := om("hosts", om("example.com", int64(1), "stale.org", int64(2)))
	defaults := om("hosts", om("example.com", int64(0), "new.net", int64(3)))

	d, err := Sanitize(loaded, defaults)
	require.NoError(t, err)

	require.Len(t, d.Remove, 1)
	assert.Equal(t, []string{"hosts", "stale.org"}, d.Remove[0].Segments())
	hosts, _ := loaded.Get("hosts")
	assert.Equal(t, []string{"example.com", "new.net"}, tree.AsMap(hosts).Keys())
}

func TestDiff_String(t *testing.T) {
	d := Diff{
		Remove:     []path.Path{path.NewDottedPath("a")},
		Mismatches: []Mismatch{{Path: path.NewDottedPath("b"), Kind: ScalarVsMapping}},
	}
	assert.Equal(t, "1 to remove, 0 to add, 1 mismatched", d.String())
	assert.Equal(t, []string{"a"}, d.RemoveStrings())
}

// genScalar draws a leaf value of any tree scalar type.
func genScalar(t *rapid.T, label string) any {
	switch rapid.IntRange(0, 4).Draw(t, label+"/kind") {
	case 0:
		return rapid.Int64().Draw(t, label)
	case 1:
		return rapid.StringMatching(`[a-z]{0,6}`).Draw(t, label)
	case 2:
		return rapid.Bool().Draw(t, label)
	case 3:
		return rapid.Float64Range(-1e6, 1e6).Draw(t, label)
	default:
		return nil
	}
}

// genDefaults draws a schema tree with keys of at most three letters.
func genDefaults(t *rapid.T, depth int, label string) *orderedmap.OrderedMap {
	m := tree.New()
	n := rapid.IntRange(0, 4).Draw(t, label+"/n")
	for i := 0; i < n; i++ {
		key := rapid.StringMatching(`[a-z]{1,3}`).Draw(t, label+"/key")
		if depth > 0 && rapid.Bool().Draw(t, label+"/nested") {
			m.Set(key, genDefaults(t, depth-1, label+"."+key))
		} else {
			m.Set(key, genScalar(t, label+"."+key))
		}
	}
	return m
}

// genLoaded derives a stored tree from defaults: keys are dropped, scalars
// are changed and unknown keys (which always contain an underscore) appear.
// Shared keys keep their mapping-ness, as a file written from the same
// schema would.
func genLoaded(t *rapid.T, defaults *orderedmap.OrderedMap, label string) *orderedmap.OrderedMap {
	m := tree.New()
	for _, key := range defaults.Keys() {
		if rapid.IntRange(0, 3).Draw(t, label+"/drop") == 0 {
			continue
		}
		v, _ := defaults.Get(key)
		if sub := tree.AsMap(v); sub != nil {
			m.Set(key, genLoaded(t, sub, label+"."+key))
		} else {
			m.Set(key, genScalar(t, label+"."+key))
		}
	}
	extra := rapid.IntRange(0, 2).Draw(t, label+"/extra")
	for i := 0; i < extra; i++ {
		key := rapid.StringMatching(`x_[a-z]{1,3}`).Draw(t, label+"/extraKey")
		if rapid.Bool().Draw(t, label+"/extraNested") {
			m.Set(key, genDefaults(t, 1, label+"."+key))
		} else {
			m.Set(key, genScalar(t, label+"."+key))
		}
	}
	return m
}

// sameKeys reports whether a and b have the same key set at every nesting
// level. Values are only compared for their mapping-ness.
func sameKeys(a, b *orderedmap.OrderedMap) bool {
	if tree.Len(a) != tree.Len(b) {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	for _, k := range a.Keys() {
		av, _ := a.Get(k)
		bv, exists := b.Get(k)
		if !exists {
			return false
		}
		am, bm := tree.AsMap(av), tree.AsMap(bv)
		if (am == nil) != (bm == nil) {
			return false
		}
		if am != nil && !sameKeys(am, bm) {
			return false
		}
	}
	return true
}

func TestSanitize_SchemaCompleteness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		defaults := genDefaults(t, 3, "defaults")
		loaded := genLoaded(t, defaults, "loaded")
		before := tree.CopyMap(loaded)

		if _, err := Sanitize(loaded, defaults); err != nil {
			t.Fatalf("Sanitize() error = %v", err)
		}
		if !sameKeys(loaded, defaults) {
			t.Fatalf("key sets differ after sanitize:\nloaded %v\ndefaults %v", tree.Keys(loaded), tree.Keys(defaults))
		}

		// Values the caller set for schema keys survive
		for _, p := range tree.Keys(before) {
			old, _ := tree.Get(before, p)
			if tree.IsMap(old) {
				continue
			}
			if _, inSchema := tree.Get(defaults, p); !inSchema {
				continue
			}
			now, ok := tree.Get(loaded, p)
			if !ok || !tree.Equal(old, now) {
				t.Fatalf("value at %s changed from %v to %v", p, old, now)
			}
		}
	})
}

func TestSanitize_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		defaults := genDefaults(t, 3, "defaults")
		loaded := genLoaded(t, defaults, "loaded")

		if _, err := Sanitize(loaded, defaults); err != nil {
			t.Fatalf("first Sanitize() error = %v", err)
		}
		once := tree.CopyMap(loaded)

		d, err := Sanitize(loaded, defaults)
		if err != nil {
			t.Fatalf("second Sanitize() error = %v", err)
		}
		if !d.Empty() {
			t.Fatalf("second sanitize produced %s", d)
		}
		if !tree.Equal(once, loaded) {
			t.Fatal("second sanitize changed the tree")
		}
	})
}

func TestSanitize_EmptyTreeBecomesDefaults(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		defaults := genDefaults(t, 3, "defaults")
		loaded := tree.New()

		d, err := Sanitize(loaded, defaults)
		if err != nil {
			t.Fatalf("Sanitize() error = %v", err)
		}
		if len(d.Remove) != 0 {
			t.Fatalf("empty tree produced removals: %v", d.RemoveStrings())
		}
		if len(d.Add) != tree.Len(defaults) {
			t.Fatalf("got %d additions, want one per top-level default key (%d)", len(d.Add), tree.Len(defaults))
		}
		if !tree.Equal(defaults, loaded) {
			t.Fatal("sanitized empty tree differs from defaults")
		}
	})
}
