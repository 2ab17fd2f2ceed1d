package registry

import (
	"errors"
	"testing"

	"github.com/thirteen37/keepconf/internal/format"
)

func TestDefault(t *testing.T) {
	r := Default()

	for _, f := range format.Supported {
		t.Run(string(f), func(t *testing.T) {
			h, err := r.Handler(f)
			if err != nil {
				t.Fatalf("Handler(%s) error = %v", f, err)
			}
			if h == nil {
				t.Fatalf("Handler(%s) returned nil", f)
			}
		})
	}
}

func TestHandler_Missing(t *testing.T) {
	tests := []struct {
		name string
		reg  *Registry
		f    format.Format
	}{
		{name: "removed yaml", reg: Default().Without(format.YAML), f: format.YAML},
		{name: "removed toml", reg: Default().Without(format.TOML), f: format.TOML},
		{name: "empty registry", reg: New(nil), f: format.JSON},
		{name: "nil registry", reg: nil, f: format.INI},
		{name: "unknown format", reg: Default(), f: format.Format("xml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.reg.Handler(tt.f)
			if !errors.Is(err, format.ErrMissingDependency) {
				t.Errorf("Handler(%s) error = %v, want ErrMissingDependency", tt.f, err)
			}
		})
	}
}

func TestWithout_LeavesOriginal(t *testing.T) {
	r := Default()
	reduced := r.Without(format.YAML, format.TOML)

	for _, f := range []format.Format{format.YAML, format.TOML} {
		if _, err := r.Handler(f); err != nil {
			t.Errorf("Without() modified the original registry: %v", err)
		}
	}
	for _, f := range []format.Format{format.JSON, format.INI} {
		if _, err := reduced.Handler(f); err != nil {
			t.Errorf("Without() dropped %s: %v", f, err)
		}
	}
}
