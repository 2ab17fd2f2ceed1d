// Package lifecycle runs application shutdown hooks.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"
)

// hook is one named shutdown function.
type hook struct {
	name string
	fn   func() error
}

// Hooks is an ordered list of shutdown functions owned by the application.
// The zero value is ready to use.
type Hooks struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
}

// Add registers fn to run at shutdown. Hooks run in reverse order of
// registration, so later components are shut down before the ones they use.
func (h *Hooks) Add(name string, fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// Run calls every hook once, last registered first. A failing hook does not
// stop the others; all failures are joined into the returned error.
// Calls after the first are no-ops.
func (h *Hooks) Run() error {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return nil
	}
	h.ran = true
	hooks := h.hooks
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i].fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hooks[i].name, err))
		}
	}
	return errors.Join(errs...)
}
