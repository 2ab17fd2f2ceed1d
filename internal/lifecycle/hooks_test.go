package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHooks_RunOrder(t *testing.T) {
	var h Hooks
	var order []string

	h.Add("database", func() error { order = append(order, "database"); return nil })
	h.Add("settings", func() error { order = append(order, "settings"); return nil })
	h.Add("server", func() error { order = append(order, "server"); return nil })

	assert.Equal(t, 3, h.Len())
	assert.NoError(t, h.Run())
	assert.Equal(t, []string{"server", "settings", "database"}, order)
}

func TestHooks_RunOnce(t *testing.T) {
	var h Hooks
	calls := 0
	h.Add("count", func() error { calls++; return nil })

	assert.NoError(t, h.Run())
	assert.NoError(t, h.Run())
	assert.Equal(t, 1, calls)
}

func TestHooks_JoinsErrors(t *testing.T) {
	var h Hooks
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ranLast := false

	h.Add("last", func() error { ranLast = true; return nil })
	h.Add("b", func() error { return errB })
	h.Add("a", func() error { return errA })

	err := h.Run()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Contains(t, err.Error(), "a: a failed")
	assert.True(t, ranLast, "a failing hook must not stop the rest")
}

func TestHooks_Empty(t *testing.T) {
	var h Hooks
	assert.Equal(t, 0, h.Len())
	assert.NoError(t, h.Run())
}
