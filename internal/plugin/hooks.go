package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/driftcove/driftcove/internal/schema"
)

// subscription is one registered (event kind, handler, priority) triple owned
// by a plugin. seq preserves insertion order among equal priorities.
type subscription struct {
	id       string
	pluginID string
	kind     schema.HookKind
	priority int
	seq      int
	handler  HookHandler
}

// RegisterHook subscribes handler to kind on behalf of pluginID and re-sorts
// that kind's list ascending by priority, ties keeping insertion order.
func (h *Host) RegisterHook(pluginID string, kind schema.HookKind, handler HookHandler, priority int) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	sub := &subscription{
		id:       uuid.NewString(),
		pluginID: pluginID,
		kind:     kind,
		priority: priority,
		seq:      h.seq,
		handler:  handler,
	}
	list := append(h.subs[kind], sub)
	sort.SliceStable(list, func(i, j int) bool { return list[i].priority < list[j].priority })
	h.subs[kind] = list

	slog.Debug("hook registered", "plugin", pluginID, "kind", kind, "priority", priority)
	return sub.id
}

// removeHooksLocked drops every subscription owned by pluginID. Caller holds
// the host lock.
func (h *Host) removeHooksLocked(pluginID string) {
	for kind, list := range h.subs {
		kept := list[:0]
		for _, sub := range list {
			if sub.pluginID != pluginID {
				kept = append(kept, sub)
			}
		}
		if len(kept) == 0 {
			delete(h.subs, kind)
		} else {
			h.subs[kind] = kept
		}
	}
}

// ExecuteHooks publishes an event to every subscriber of kind, in ascending
// priority order, skipping subscribers whose owning plugin is not currently
// enabled. A failing handler contributes a failure result and never aborts
// the dispatch for the others. With stopOnModify, a result carrying both
// modified and stopPropagation ends the dispatch early.
func (h *Host) ExecuteHooks(ctx context.Context, kind schema.HookKind, payload map[string]any, stopOnModify bool) []schema.HookResult {
	ev := &schema.HookEvent{
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	return h.dispatch(ctx, ev, stopOnModify)
}

// Emit is ExecuteHooks with an attributed source, used by plugin contexts.
func (h *Host) Emit(ctx context.Context, kind schema.HookKind, payload map[string]any, source string) []schema.HookResult {
	ev := &schema.HookEvent{
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
		Source:    source,
	}
	return h.dispatch(ctx, ev, false)
}

func (h *Host) dispatch(ctx context.Context, ev *schema.HookEvent, stopOnModify bool) []schema.HookResult {
	// Snapshot under the lock; handlers run without it so they may freely
	// register capabilities, subscribe, or emit further events.
	h.mu.Lock()
	subs := make([]*subscription, len(h.subs[ev.Kind]))
	copy(subs, h.subs[ev.Kind])
	h.mu.Unlock()

	results := make([]schema.HookResult, 0, len(subs))
	for _, sub := range subs {
		if !h.pluginEnabled(sub.pluginID) {
			continue
		}

		res, failed := h.invokeHook(ctx, sub, ev)
		results = append(results, res)
		h.bumpHookCounters(sub.pluginID, failed)

		if stopOnModify && res.Modified && res.StopPropagation {
			break
		}
	}
	return results
}

// invokeHook runs one handler behind a panic boundary and normalizes the
// outcome. failed reports an exceptional invocation (error or panic).
func (h *Host) invokeHook(ctx context.Context, sub *subscription, ev *schema.HookEvent) (res schema.HookResult, failed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("hook handler panicked", "plugin", sub.pluginID, "kind", ev.Kind, "panic", rec)
			res = schema.HookResult{
				Success:  false,
				Error:    fmt.Sprintf("hook panicked: %v", rec),
				PluginID: sub.pluginID,
			}
			failed = true
		}
	}()

	v, err := sub.handler(ctx, ev)
	if err != nil {
		slog.Error("hook handler failed", "plugin", sub.pluginID, "kind", ev.Kind, "err", err)
		return schema.HookResult{Success: false, Error: err.Error(), PluginID: sub.pluginID}, true
	}

	res = normalizeResult(v)
	res.PluginID = sub.pluginID
	return res, false
}

// normalizeResult is the total adapter from a handler's return value to a
// HookResult, over the closed set of accepted shapes: absent value, an
// already-typed result, a map with result fields, or any raw value.
func normalizeResult(v any) schema.HookResult {
	switch r := v.(type) {
	case nil:
		return schema.HookResult{Success: true}
	case schema.HookResult:
		return r
	case *schema.HookResult:
		if r == nil {
			return schema.HookResult{Success: true}
		}
		return *r
	case map[string]any:
		out := schema.HookResult{Success: true}
		if s, ok := r["success"].(bool); ok {
			out.Success = s
		}
		if e, ok := r["error"].(string); ok {
			out.Error = e
		}
		out.Data = r["data"]
		out.Modified, _ = r["modified"].(bool)
		out.StopPropagation, _ = r["stopPropagation"].(bool)
		return out
	default:
		return schema.HookResult{Success: true, Data: v}
	}
}

func (h *Host) pluginEnabled(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.plugins[id]
	return ok && p.Enabled
}

// bumpHookCounters increments hookCallCount on every non-exceptional
// invocation, and errorCount on every exceptional one.
func (h *Host) bumpHookCounters(pluginID string, failed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.plugins[pluginID]
	if !ok {
		return
	}
	if failed {
		p.ErrorCount++
	} else {
		p.HookCallCount++
	}
}
