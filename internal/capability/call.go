package capability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftcove/driftcove/internal/schema"
)

// reservedBuiltins returns the handlers resolved ahead of registry entries.
// They carry no contract and no counters; they exist so the hosting layer
// always has a liveness probe and a stats view through the uniform call path.
func reservedBuiltins(r *Registry) map[string]schema.Handler {
	return map[string]schema.Handler{
		"ping": func(ctx context.Context, args map[string]any) (any, error) {
			return "pong", nil
		},
		"capability_stats": func(ctx context.Context, args map[string]any) (any, error) {
			return r.Stats(), nil
		},
	}
}

// Call invokes the named capability and blocks for the result, bounded by the
// registry's call timeout and the caller's context. Reserved built-ins are
// resolved first, then registry entries. Expected failures (missing entry,
// disabled, no handler) come back as failure results; a handler error or
// panic is captured and reported as an internal fault, never propagated.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) schema.CallResult {
	handler, res, ok := r.resolve(name)
	if !ok {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	done := make(chan schema.CallResult, 1)
	go func() { done <- r.invoke(ctx, name, handler, args) }()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		slog.Warn("capability call timed out", "capability", name, "budget", r.callTimeout)
		return schema.Fail(schema.KindTimeout, fmt.Sprintf("call to %q timed out", name))
	}
}

// CallAsync invokes the named capability without blocking the caller. The
// returned channel delivers exactly one result; only the caller's context
// bounds the handler, not the blocking-path budget.
func (r *Registry) CallAsync(ctx context.Context, name string, args map[string]any) <-chan schema.CallResult {
	out := make(chan schema.CallResult, 1)
	handler, res, ok := r.resolve(name)
	if !ok {
		out <- res
		return out
	}
	go func() { out <- r.invoke(ctx, name, handler, args) }()
	return out
}

// resolve locates the handler for name and applies the expected-failure
// checks. It also updates the usage counters: the counter increments whenever
// an invocation reaches a registered capability, whether or not the handler
// then succeeds.
func (r *Registry) resolve(name string) (schema.Handler, schema.CallResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.builtins[name]; ok {
		return h, schema.CallResult{}, true
	}

	c, ok := r.caps[name]
	if !ok {
		return nil, schema.Fail(schema.KindNotFound, "capability not found"), false
	}
	if !c.Enabled {
		return nil, schema.Fail(schema.KindDisabled, "disabled"), false
	}
	if c.Handler == nil {
		return nil, schema.Fail(schema.KindUnimplemented, fmt.Sprintf("capability %q has no handler", name)), false
	}

	now := time.Now()
	c.CallCount++
	c.LastCalledAt = &now
	return c.Handler, schema.CallResult{}, true
}

// invoke runs the handler with a panic boundary. A handler that returns a
// CallResult passes it through unchanged so origin-specific failure kinds
// (broker connection errors, for example) survive the uniform call path.
func (r *Registry) invoke(ctx context.Context, name string, h schema.Handler, args map[string]any) (out schema.CallResult) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("capability handler panicked", "capability", name, "panic", rec)
			out = schema.Fail(schema.KindInternalFault, fmt.Sprintf("internal fault in %q: %v", name, rec))
		}
	}()

	v, err := h(ctx, args)
	if err != nil {
		slog.Error("capability handler failed", "capability", name, "err", err)
		return schema.Fail(schema.KindInternalFault, err.Error())
	}
	if res, ok := v.(schema.CallResult); ok {
		return res
	}
	return schema.Ok(v)
}
