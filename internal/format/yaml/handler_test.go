package yaml

import (
	"fmt"
	"strings"
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/tree"
)

func TestHandler_Parse(t *testing.T) {
	h := New()

	tests := []struct {
		name     string
		input    string
		wantKeys []string
		wantErr  bool
	}{
		{
			name:     "simple mapping",
			input:    "key: value\n",
			wantKeys: []string{"key"},
		},
		{
			name:     "document order kept",
			input:    "zebra: 1\napple: 2\nmango: 3\n",
			wantKeys: []string{"zebra", "apple", "mango"},
		},
		{
			name:     "empty document",
			input:    "",
			wantKeys: []string{},
		},
		{
			name:     "comment only",
			input:    "# nothing here\n",
			wantKeys: []string{},
		},
		{
			name:     "explicit null",
			input:    "~\n",
			wantKeys: []string{},
		},
		{
			name:    "sequence root",
			input:   "- a\n- b\n",
			wantErr: true,
		},
		{
			name:    "custom tag",
			input:   "key: !secret value\n",
			wantErr: true,
		},
		{
			name:    "malformed",
			input:   "key: [unclosed\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Parse([]byte(tt.input), format.ParseOptions{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKeys, got.Keys())
		})
	}
}

// laughs builds a document whose aliases expand to width^depth scalars.
func laughs(width, depth int) string {
	var b strings.Builder
	items := make([]string, width)
	for i := range items {
		items[i] = `"lol"`
	}
	fmt.Fprintf(&b, "l0: &l0 [%s]\n", strings.Join(items, ", "))
	for level := 1; level < depth; level++ {
		for i := range items {
			items[i] = fmt.Sprintf("*l%d", level-1)
		}
		fmt.Fprintf(&b, "l%d: &l%d [%s]\n", level, level, strings.Join(items, ", "))
	}
	return b.String()
}

func TestHandler_Parse_Aliases(t *testing.T) {
	h := New()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:  "shared anchor",
			input: "base: &b {timeout: 30}\none: *b\ntwo: *b\n",
		},
		{
			name:  "small expansion",
			input: laughs(3, 3),
		},
		{
			name:    "self-referencing sequence",
			input:   "a: &x [*x]\n",
			wantErr: `anchor "x" contains itself`,
		},
		{
			name:    "self-referencing mapping",
			input:   "a: &x {child: *x}\n",
			wantErr: `anchor "x" contains itself`,
		},
		{
			name:    "exponential expansion",
			input:   laughs(10, 9),
			wantErr: "document expands to more than",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Parse([]byte(tt.input), format.ParseOptions{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.Keys())
		})
	}
}

func TestHandler_Parse_StripCommentsError(t *testing.T) {
	h := New()

	_, err := h.Parse([]byte("key: value"), format.ParseOptions{StripComments: true})
	assert.Error(t, err)
}

func TestHandler_Parse_Values(t *testing.T) {
	h := New()

	input := `
auth:
  domain: localhost
  port: 389
  ratio: 0.5
  tls: false
  realm: null
  scopes:
    - student
    - teacher
defaults: &defaults
  timeout: 30
database:
  pool: *defaults
`
	got, err := h.Parse([]byte(input), format.ParseOptions{})
	require.NoError(t, err)

	authVal, _ := got.Get("auth")
	auth, ok := authVal.(*orderedmap.OrderedMap)
	require.True(t, ok, "nested map is %T", authVal)

	domain, _ := auth.Get("domain")
	assert.Equal(t, "localhost", domain)
	port, _ := auth.Get("port")
	assert.Equal(t, int64(389), port)
	ratio, _ := auth.Get("ratio")
	assert.Equal(t, 0.5, ratio)
	tls, _ := auth.Get("tls")
	assert.Equal(t, false, tls)
	realm, exists := auth.Get("realm")
	assert.True(t, exists)
	assert.Nil(t, realm)
	scopes, _ := auth.Get("scopes")
	assert.True(t, tree.Equal([]any{"student", "teacher"}, scopes))

	database, _ := got.Get("database")
	pool, _ := tree.AsMap(database).Get("pool")
	timeout, _ := tree.AsMap(pool).Get("timeout")
	assert.Equal(t, int64(30), timeout, "aliases resolve to their anchor")
}

func TestHandler_Serialize(t *testing.T) {
	h := New()

	auth := tree.New()
	auth.Set("domain", "localhost")
	auth.Set("port", int64(389))
	auth.Set("enabled", "true")
	auth.Set("realm", nil)
	root := tree.New()
	root.Set("zebra", []any{"a", int64(1)})
	root.Set("auth", auth)

	out, err := h.Serialize(root, format.SerializeOptions{})
	require.NoError(t, err)

	s := string(out)
	for _, line := range []string{"zebra:", "- a", "- 1", "auth:", "  domain: localhost", "  port: 389", `  enabled: "true"`, "  realm: null"} {
		assert.Contains(t, s, line)
	}
	assert.Less(t, strings.Index(s, "zebra:"), strings.Index(s, "auth:"), "key order kept")
}

func TestHandler_RoundTrip(t *testing.T) {
	h := New()

	inner := tree.New()
	inner.Set("y", []any{int64(1), "two", false})
	inner.Set("x", 1.25)
	root := tree.New()
	root.Set("b", inner)
	root.Set("a", nil)
	root.Set("empty", tree.New())

	out, err := h.Serialize(root, format.SerializeOptions{})
	require.NoError(t, err)

	got, err := h.Parse(out, format.ParseOptions{})
	require.NoError(t, err)
	assert.True(t, tree.Equal(root, got), "round trip changed tree:\n%s", out)
	assert.Equal(t, []string{"b", "a", "empty"}, got.Keys())
}
