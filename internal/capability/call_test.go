package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftcove/driftcove/internal/schema"
)

func doubler(ctx context.Context, args map[string]any) (any, error) {
	x, ok := args["x"].(float64)
	if !ok {
		return nil, errors.New("x must be a number")
	}
	return x * 2, nil
}

func TestCallReturnsHandlerResult(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "double", Handler: doubler, Enabled: true})

	res := r.Call(context.Background(), "double", map[string]any{"x": float64(21)})
	require.True(t, res.Success)
	assert.Equal(t, float64(42), res.Result)
	assert.Empty(t, res.Error)

	c, _ := r.Get("double")
	assert.Equal(t, int64(1), c.CallCount)
	require.NotNil(t, c.LastCalledAt)
}

func TestCallMissingCapability(t *testing.T) {
	r := NewRegistry()

	res := r.Call(context.Background(), "missing", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "capability not found", res.Error)
	assert.Equal(t, schema.KindNotFound, res.Kind)
}

func TestCallDisabledLeavesCounterUntouched(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "double", Handler: doubler, Enabled: true})
	r.Disable("double")

	res := r.Call(context.Background(), "double", map[string]any{"x": float64(1)})
	assert.False(t, res.Success)
	assert.Equal(t, "disabled", res.Error)
	assert.Equal(t, schema.KindDisabled, res.Kind)

	c, _ := r.Get("double")
	assert.Equal(t, int64(0), c.CallCount)
	assert.Nil(t, c.LastCalledAt)
}

func TestCallWithoutHandlerIsUnimplemented(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "declared", Enabled: true})

	res := r.Call(context.Background(), "declared", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindUnimplemented, res.Kind)
}

func TestCallCounterIncrementsOnHandlerError(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{
		Name:    "flaky",
		Enabled: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	})

	res := r.Call(context.Background(), "flaky", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindInternalFault, res.Kind)
	assert.Equal(t, "boom", res.Error)

	c, _ := r.Get("flaky")
	assert.Equal(t, int64(1), c.CallCount)
}

func TestCallPanicBecomesInternalFault(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{
		Name:    "crash",
		Enabled: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("kaboom")
		},
	})

	res := r.Call(context.Background(), "crash", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindInternalFault, res.Kind)
	assert.Contains(t, res.Error, "kaboom")
}

func TestCallResultPassthrough(t *testing.T) {
	want := schema.Fail(schema.KindConnection, "connection refused")
	r := NewRegistry()
	r.Register(Definition{
		Name:    "proxy",
		Enabled: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return want, nil
		},
	})

	res := r.Call(context.Background(), "proxy", nil)
	assert.Equal(t, want, res)
}

func TestCallTimeout(t *testing.T) {
	r := NewRegistry(WithCallTimeout(50 * time.Millisecond))
	r.Register(Definition{
		Name:    "slow",
		Enabled: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			time.Sleep(500 * time.Millisecond) // well past the budget
			return "done", nil
		},
	})

	start := time.Now()
	res := r.Call(context.Background(), "slow", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindTimeout, res.Kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBuiltinsResolveFirst(t *testing.T) {
	r := NewRegistry()
	// Shadowing a built-in has no effect on resolution order.
	r.Register(Definition{
		Name:    "ping",
		Enabled: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "shadowed", nil
		},
	})

	res := r.Call(context.Background(), "ping", nil)
	require.True(t, res.Success)
	assert.Equal(t, "pong", res.Result)

	res = r.Call(context.Background(), "capability_stats", nil)
	require.True(t, res.Success)
	stats, ok := res.Result.(Stats)
	require.True(t, ok)
	assert.Equal(t, 1, stats.Total)
}

func TestCallAsyncDeliversOneResult(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "double", Handler: doubler, Enabled: true})

	ch := r.CallAsync(context.Background(), "double", map[string]any{"x": float64(4)})
	select {
	case res := <-ch:
		require.True(t, res.Success)
		assert.Equal(t, float64(8), res.Result)
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}
}

func TestCallAsyncExpectedFailureIsImmediate(t *testing.T) {
	r := NewRegistry()

	res := <-r.CallAsync(context.Background(), "missing", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindNotFound, res.Kind)
}
