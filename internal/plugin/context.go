package plugin

import (
	"context"

	"github.com/driftcove/driftcove/internal/capability"
	"github.com/driftcove/driftcove/internal/schema"
)

// Context is the scoped object handed to a plugin on enable. It exposes the
// capability registry, hook subscription, tracked background work, and the
// injected system accessors — everything a plugin may touch.
type Context struct {
	PluginID string
	Config   map[string]any

	Memory    schema.MemoryStore
	Sessions  schema.SessionStore
	Chat      schema.ChatClient
	Broadcast schema.Broadcaster

	host     *Host
	registry *capability.Registry
}

// Registry returns the shared capability registry.
func (c *Context) Registry() *capability.Registry { return c.registry }

// RegisterCapability registers a capability on behalf of this plugin. The
// plugin's id is appended to the tags so its entries can be identified.
func (c *Context) RegisterCapability(def capability.Definition) schema.Capability {
	def.Tags = append(def.Tags, c.PluginID)
	return c.registry.Register(def)
}

// Subscribe registers a hook handler owned by this plugin. Prefer declaring
// subscriptions through Instance.Hooks; Subscribe exists for handlers that
// only make sense after Initialize has run.
func (c *Context) Subscribe(kind schema.HookKind, handler HookHandler, priority int) string {
	return c.host.RegisterHook(c.PluginID, kind, handler, priority)
}

// Spawn starts fn as a tracked background work item owned by this plugin.
// The host cancels and awaits it when the plugin is disabled.
func (c *Context) Spawn(name string, fn TaskFunc) *Task {
	return c.host.spawn(c.PluginID, name, fn)
}

// Emit publishes an event to the hook bus, attributed to this plugin.
func (c *Context) Emit(ctx context.Context, kind schema.HookKind, payload map[string]any) []schema.HookResult {
	return c.host.Emit(ctx, kind, payload, c.PluginID)
}
