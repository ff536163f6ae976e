package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolveUnknownTarget(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("missing")
	require.Error(t, err)
	var unknown *ErrUnknownTarget
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.TargetName)
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("greeter", func(ctx context.Context, method string, args []any) Future {
		called = true
		f, resolve := NewFuture()
		resolve(nil)
		return f
	})

	h, err := r.Resolve("greeter")
	require.NoError(t, err)
	f := h(context.Background(), "greet", nil)
	require.NoError(t, f.Wait(context.Background()))
	assert.True(t, called)
}

func TestRegistryReRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register("t", func(context.Context, string, []any) Future {
		f, resolve := NewFuture()
		resolve(assert.AnError)
		return f
	})
	r.Register("t", func(context.Context, string, []any) Future {
		f, resolve := NewFuture()
		resolve(nil)
		return f
	})

	h, err := r.Resolve("t")
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), "m", nil).Wait(context.Background()))
}
