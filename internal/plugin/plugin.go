// Package plugin implements the plugin host: discovery, lifecycle management,
// scoped capability injection, the priority-ordered hook bus, and per-plugin
// tracked background work with cooperative cancellation.
//
// Plugins are ordinary Go values implementing the Instance contract,
// registered explicitly at process start through Host.RegisterFactory. A
// filesystem manifest only ever carries metadata; no code is loaded from disk.
package plugin

import (
	"context"
	"time"

	"github.com/driftcove/driftcove/internal/schema"
)

// Instance is the fixed contract every plugin implements.
type Instance interface {
	// Initialize is called once on enable with the plugin's scoped context.
	// Long-running setup should be spawned through Context.Spawn so enable
	// never blocks on it.
	Initialize(ctx context.Context, pc *Context) error

	// Shutdown is called on disable, after the plugin's tracked work has
	// been cancelled and awaited.
	Shutdown(ctx context.Context) error

	// Hooks declares the event subscriptions to register on enable.
	Hooks() []HookSpec
}

// ConfigWatcher is an optional extension: plugins implementing it are
// notified when their merged configuration changes while enabled.
type ConfigWatcher interface {
	OnConfigChange(cfg map[string]any) error
}

// Factory constructs a fresh plugin instance. Called by Host.Load.
type Factory func() Instance

// HookHandler processes one hook event. The returned value goes through the
// total normalization adapter: nil, a map, a raw value, or a HookResult are
// all accepted (see normalizeResult).
type HookHandler func(ctx context.Context, ev *schema.HookEvent) (any, error)

// HookSpec is one declared subscription: event kind, handler, and priority.
// Lower priority fires earlier; ties keep subscription order.
type HookSpec struct {
	Kind     schema.HookKind
	Handler  HookHandler
	Priority int
}

// DefaultPriority is used when a subscription does not care about ordering.
const DefaultPriority = 100

// Plugin is the host's record of one loaded extension unit.
type Plugin struct {
	Meta          schema.PluginMetadata `json:"metadata"`
	Enabled       bool                  `json:"enabled"`
	Config        map[string]any        `json:"config"`
	LoadedAt      time.Time             `json:"loadedAt"`
	HookCallCount int64                 `json:"hookCallCount"`
	ErrorCount    int64                 `json:"errorCount"`

	instance Instance
}

// Accessors bundles the opaque system handles the hosting layer injects into
// every enabled plugin's context.
type Accessors struct {
	Memory    schema.MemoryStore
	Sessions  schema.SessionStore
	Chat      schema.ChatClient
	Broadcast schema.Broadcaster
}
