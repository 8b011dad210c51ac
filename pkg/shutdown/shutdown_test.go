package shutdown

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsInReverseOrderOnce(t *testing.T) {
	m := NewManager()
	var order []string
	m.OnShutdown("store", func(context.Context) error { order = append(order, "store"); return nil })
	m.OnShutdown("server", func(context.Context) error { order = append(order, "server"); return errors.New("boom") })
	m.OnShutdown("source", func(context.Context) error { order = append(order, "source"); return nil })

	assert.Equal(t, 1, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"source", "server", "store"}, order)

	assert.Equal(t, 0, m.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownStopsOnExpiredContext(t *testing.T) {
	m := NewManager()
	called := false
	m.OnShutdown("a", func(context.Context) error { called = true; return nil })
	m.OnShutdown("b", func(context.Context) error { called = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 2, m.Shutdown(ctx))
	assert.False(t, called)
}
