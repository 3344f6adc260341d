// Package capability implements the capability registry: a guarded catalog
// mapping capability name to contract, handler, and usage stats. Plugins, the
// external broker, and the hosting layer all register into the same registry
// and invoke entries exclusively through its call paths, unaware of origin.
package capability

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/driftcove/driftcove/internal/schema"
)

// DefaultCallTimeout bounds the blocking call path. Handlers that outlive it
// keep running on their goroutine but the caller gets a timeout failure.
const DefaultCallTimeout = 60 * time.Second

// Definition carries everything Register needs for an upsert.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Handler     schema.Handler
	Enabled     bool
	Version     string
	Category    string
	Tags        []string
	Examples    []string
}

// Registry is the uniform callable catalog. All mutating operations are
// serialized by a single mutex because the registry is the one piece of state
// reached by more than one logical owner (plugins, broker, hosting layer).
type Registry struct {
	mu          sync.Mutex
	caps        map[string]*schema.Capability
	order       []string // insertion order for List/Export
	builtins    map[string]schema.Handler
	callTimeout time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithCallTimeout overrides the blocking call path budget.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Registry) { r.callTimeout = d }
}

// NewRegistry creates an empty registry with the reserved built-ins installed.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		caps:        make(map[string]*schema.Capability),
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.builtins = reservedBuiltins(r)
	return r
}

// Register upserts a capability by name. The first registration initializes
// counters and the creation time; later registrations update everything else
// but leave CreatedAt, CallCount, and LastCalledAt untouched.
func (r *Registry) Register(def Definition) schema.Capability {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	existing, ok := r.caps[def.Name]
	if !ok {
		existing = &schema.Capability{Name: def.Name, CreatedAt: now}
		r.caps[def.Name] = existing
		r.order = append(r.order, def.Name)
	}

	existing.Description = def.Description
	existing.Parameters = def.Parameters
	existing.Handler = def.Handler
	existing.Enabled = def.Enabled
	existing.Version = def.Version
	existing.Category = def.Category
	existing.Tags = slices.Clone(def.Tags)
	existing.Examples = slices.Clone(def.Examples)
	existing.UpdatedAt = now

	slog.Debug("capability registered", "name", def.Name, "category", def.Category, "new", !ok)
	return *existing
}

// Get returns a snapshot of the named capability.
func (r *Registry) Get(name string) (schema.Capability, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caps[name]
	if !ok {
		return schema.Capability{}, false
	}
	return *c, true
}

// List returns capability snapshots in insertion order.
func (r *Registry) List(enabledOnly bool) []schema.Capability {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]schema.Capability, 0, len(r.order))
	for _, name := range r.order {
		c := r.caps[name]
		if enabledOnly && !c.Enabled {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// Enable marks the named capability callable. Returns false if absent.
func (r *Registry) Enable(name string) bool { return r.setEnabled(name, true) }

// Disable marks the named capability inactive. Disabled capabilities are
// never invoked. Returns false if absent.
func (r *Registry) Disable(name string) bool { return r.setEnabled(name, false) }

func (r *Registry) setEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caps[name]
	if !ok {
		return false
	}
	c.Enabled = enabled
	c.UpdatedAt = time.Now()
	return true
}

// Delete removes the named capability. Returns false if absent.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.caps[name]; !ok {
		return false
	}
	delete(r.caps, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

// Definitions projects the enabled capabilities into OpenAI function-calling
// format for the LLM loop.
func (r *Registry) Definitions() []map[string]any {
	list := r.List(true)
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		var params any
		if err := json.Unmarshal(c.Parameters, &params); err != nil || params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        c.Name,
				"description": c.Description,
				"parameters":  params,
			},
		})
	}
	return out
}
