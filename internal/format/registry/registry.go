// Package registry maps file formats to their codecs.
package registry

import (
	"fmt"

	"github.com/thirteen37/keepconf/internal/format"
	"github.com/thirteen37/keepconf/internal/format/ini"
	"github.com/thirteen37/keepconf/internal/format/json"
	"github.com/thirteen37/keepconf/internal/format/toml"
	"github.com/thirteen37/keepconf/internal/format/yaml"
)

// Registry holds the codecs available to a settings manager.
// A Registry is immutable after construction.
type Registry struct {
	handlers map[format.Format]format.Handler
}

// New creates a registry from the given handlers. Nil handlers are ignored.
func New(handlers map[format.Format]format.Handler) *Registry {
	r := &Registry{handlers: make(map[format.Format]format.Handler, len(handlers))}
	for f, h := range handlers {
		if h != nil {
			r.handlers[f] = h
		}
	}
	return r
}

// Default returns a registry with every built-in codec.
func Default() *Registry {
	return New(map[format.Format]format.Handler{
		format.JSON: json.New(),
		format.YAML: yaml.New(),
		format.TOML: toml.New(),
		format.INI:  ini.New(),
	})
}

// Handler returns the codec for f, or an error wrapping
// format.ErrMissingDependency when none is registered.
func (r *Registry) Handler(f format.Format) (format.Handler, error) {
	if r != nil {
		if h, ok := r.handlers[f]; ok {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: no codec registered for %s", format.ErrMissingDependency, f)
}

// Without returns a copy of the registry lacking the given formats.
func (r *Registry) Without(formats ...format.Format) *Registry {
	out := New(nil)
	if r == nil {
		return out
	}
	for f, h := range r.handlers {
		out.handlers[f] = h
	}
	for _, f := range formats {
		delete(out.handlers, f)
	}
	return out
}
