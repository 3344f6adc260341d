package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/driftcove/driftcove/internal/capability"
	"github.com/driftcove/driftcove/internal/schema"
)

// registration pairs a plugin's metadata with its instance factory.
type registration struct {
	meta    schema.PluginMetadata
	factory Factory
}

// Host manages plugin lifecycles: Discovered → Loaded → {Enabled ⇄ Disabled}
// → Unloaded. Enable auto-loads; unload auto-disables. The host also owns the
// hook bus and every plugin's tracked background work.
type Host struct {
	mu sync.Mutex

	registry  *capability.Registry
	accessors Accessors

	pluginsDir string
	cancelWait time.Duration
	overrides  map[string]map[string]any // plugin id → config overrides

	factories map[string]registration
	plugins   map[string]*Plugin
	order     []string

	subs  map[schema.HookKind][]*subscription
	seq   int
	tasks map[string]map[string]*Task
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithPluginsDir points discovery at a directory of manifest documents.
func WithPluginsDir(dir string) HostOption {
	return func(h *Host) { h.pluginsDir = dir }
}

// WithCancelWait overrides the per-task bounded wait used by disable.
func WithCancelWait(d time.Duration) HostOption {
	return func(h *Host) { h.cancelWait = d }
}

// WithConfigOverrides supplies per-plugin config overrides merged over each
// plugin's declared defaults at load time.
func WithConfigOverrides(overrides map[string]map[string]any) HostOption {
	return func(h *Host) { h.overrides = overrides }
}

// NewHost creates a Host around the shared registry and injected accessors.
func NewHost(registry *capability.Registry, accessors Accessors, opts ...HostOption) *Host {
	h := &Host{
		registry:   registry,
		accessors:  accessors,
		cancelWait: DefaultCancelWait,
		factories:  make(map[string]registration),
		plugins:    make(map[string]*Plugin),
		subs:       make(map[schema.HookKind][]*subscription),
		tasks:      make(map[string]map[string]*Task),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterFactory declares a plugin at process start: its metadata and the
// factory that builds its instance when loaded.
func (h *Host) RegisterFactory(meta schema.PluginMetadata, factory Factory) error {
	if meta.ID == "" {
		return fmt.Errorf("plugin factory: missing id")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.factories[meta.ID]; ok {
		return fmt.Errorf("plugin factory %q: %w", meta.ID, schema.ErrAlreadyExists)
	}
	h.factories[meta.ID] = registration{meta: meta, factory: factory}
	return nil
}

// Discover returns metadata for every known plugin — registered factories
// plus manifest documents found in the plugins directory — without executing
// any plugin code. Manifest metadata wins over factory metadata for the same
// id, so an operator can override declared defaults on disk.
func (h *Host) Discover() []schema.PluginMetadata {
	manifests := discoverManifests(h.pluginsDir)

	h.mu.Lock()
	byID := make(map[string]schema.PluginMetadata, len(h.factories)+len(manifests))
	for id, reg := range h.factories {
		byID[id] = reg.meta
	}
	h.mu.Unlock()

	for id, meta := range manifests {
		byID[id] = meta
	}

	out := make([]schema.PluginMetadata, 0, len(byID))
	for _, meta := range byID {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load transitions a discovered plugin to Loaded. It is idempotent: loading
// an already-loaded plugin returns its existing record. Dependency and
// conflict declarations are validated against the currently loaded set.
func (h *Host) Load(id string) (Plugin, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadLocked(id)
}

func (h *Host) loadLocked(id string) (Plugin, error) {
	if p, ok := h.plugins[id]; ok {
		return *p, nil
	}

	meta, factory, err := h.resolveLocked(id)
	if err != nil {
		return Plugin{}, err
	}
	if err := h.checkDependenciesLocked(meta); err != nil {
		return Plugin{}, err
	}

	var instance Instance
	if factory != nil {
		instance = factory()
	}

	cfg := make(map[string]any)
	maps.Copy(cfg, meta.DefaultConfig)
	maps.Copy(cfg, h.overrides[id])

	p := &Plugin{
		Meta:     meta,
		Enabled:  false,
		Config:   cfg,
		LoadedAt: time.Now(),
		instance: instance,
	}
	h.plugins[id] = p
	h.order = append(h.order, id)

	slog.Info("plugin loaded", "plugin", id, "version", meta.Version, "hasCode", instance != nil)
	return *p, nil
}

// resolveLocked finds a plugin's metadata and factory. A manifest on disk
// overrides factory metadata; a manifest without a factory yields a
// metadata-only plugin with no instance.
func (h *Host) resolveLocked(id string) (schema.PluginMetadata, Factory, error) {
	reg, haveFactory := h.factories[id]
	meta := reg.meta

	if manifests := discoverManifests(h.pluginsDir); len(manifests) > 0 {
		if m, ok := manifests[id]; ok {
			meta = m
		} else if !haveFactory {
			return meta, nil, fmt.Errorf("plugin %q: %w", id, schema.ErrNotFound)
		}
	} else if !haveFactory {
		return meta, nil, fmt.Errorf("plugin %q: %w", id, schema.ErrNotFound)
	}
	return meta, reg.factory, nil
}

// checkDependenciesLocked enforces the lifecycle invariant: every required
// plugin must be loaded, and no conflicting plugin may be loaded and enabled.
func (h *Host) checkDependenciesLocked(meta schema.PluginMetadata) error {
	for _, req := range meta.Requires {
		if _, ok := h.plugins[req]; !ok {
			return fmt.Errorf("plugin %q requires %q which is not loaded: %w",
				meta.ID, req, schema.ErrConflict)
		}
	}
	for _, conflict := range meta.Conflicts {
		if p, ok := h.plugins[conflict]; ok && p.Enabled {
			return fmt.Errorf("plugin %q conflicts with enabled plugin %q: %w",
				meta.ID, conflict, schema.ErrConflict)
		}
	}
	return nil
}

// Enable transitions a plugin to Enabled, auto-loading it first. On any
// failure the plugin remains exactly where it was: no partial hook
// registrations survive a failed enable.
func (h *Host) Enable(ctx context.Context, id string) error {
	h.mu.Lock()
	if _, err := h.loadLocked(id); err != nil {
		h.mu.Unlock()
		return err
	}
	p := h.plugins[id]
	if p.Enabled {
		h.mu.Unlock()
		return nil
	}
	if err := h.checkDependenciesLocked(p.Meta); err != nil {
		h.mu.Unlock()
		return err
	}
	pc := h.contextLocked(p)
	instance := p.instance
	h.mu.Unlock()

	if instance != nil {
		if err := h.initialize(ctx, id, instance, pc); err != nil {
			h.rollbackEnable(id)
			return fmt.Errorf("plugin %q initialize: %w", id, err)
		}
		for _, spec := range instance.Hooks() {
			if spec.Handler == nil {
				h.rollbackEnable(id)
				return fmt.Errorf("plugin %q declares a nil hook handler for %s", id, spec.Kind)
			}
			priority := spec.Priority
			if priority == 0 {
				priority = DefaultPriority
			}
			h.RegisterHook(id, spec.Kind, spec.Handler, priority)
		}
	}

	h.mu.Lock()
	p.Enabled = true
	h.mu.Unlock()

	slog.Info("plugin enabled", "plugin", id)
	return nil
}

// initialize runs the plugin's Initialize behind a panic boundary.
func (h *Host) initialize(ctx context.Context, id string, instance Instance, pc *Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return instance.Initialize(ctx, pc)
}

// rollbackEnable removes whatever a failed enable registered on the bus and
// cancels any work it already spawned, leaving the plugin loaded+disabled.
func (h *Host) rollbackEnable(id string) {
	h.drainTasks(id)
	h.mu.Lock()
	h.removeHooksLocked(id)
	h.mu.Unlock()
}

// contextLocked builds the scoped context for p. Caller holds the host lock.
func (h *Host) contextLocked(p *Plugin) *Context {
	cfg := make(map[string]any, len(p.Config))
	maps.Copy(cfg, p.Config)
	return &Context{
		PluginID:  p.Meta.ID,
		Config:    cfg,
		Memory:    h.accessors.Memory,
		Sessions:  h.accessors.Sessions,
		Chat:      h.accessors.Chat,
		Broadcast: h.accessors.Broadcast,
		host:      h,
		registry:  h.registry,
	}
}

// Disable transitions a plugin to Disabled: first its tracked work is
// cancelled and awaited (bounded), then Shutdown runs, then every hook
// subscription it owns is removed. No stale subscriptions survive.
func (h *Host) Disable(ctx context.Context, id string) error {
	h.mu.Lock()
	p, ok := h.plugins[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", id, schema.ErrNotFound)
	}
	if !p.Enabled {
		h.mu.Unlock()
		return nil
	}
	instance := p.instance
	h.mu.Unlock()

	h.drainTasks(id)

	if instance != nil {
		if err := h.shutdown(ctx, id, instance); err != nil {
			slog.Warn("plugin shutdown failed", "plugin", id, "err", err)
		}
	}

	h.mu.Lock()
	h.removeHooksLocked(id)
	p.Enabled = false
	h.mu.Unlock()

	slog.Info("plugin disabled", "plugin", id)
	return nil
}

func (h *Host) shutdown(ctx context.Context, id string, instance Instance) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return instance.Shutdown(ctx)
}

// Unload disables the plugin if needed, detaches its instance, and removes
// its record.
func (h *Host) Unload(ctx context.Context, id string) error {
	if err := h.Disable(ctx, id); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.plugins[id]
	if !ok {
		return fmt.Errorf("plugin %q: %w", id, schema.ErrNotFound)
	}
	p.instance = nil
	delete(h.plugins, id)
	for i, pid := range h.order {
		if pid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	slog.Info("plugin unloaded", "plugin", id)
	return nil
}

// Get returns a snapshot of the named plugin record.
func (h *Host) Get(id string) (Plugin, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.plugins[id]
	if !ok {
		return Plugin{}, false
	}
	return *p, true
}

// List returns plugin snapshots in load order.
func (h *Host) List() []Plugin {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Plugin, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, *h.plugins[id])
	}
	return out
}

// UpdateConfig merges partial into the plugin's current config. If the plugin
// is enabled and watches config changes, it is notified with the merged view.
func (h *Host) UpdateConfig(id string, partial map[string]any) error {
	h.mu.Lock()
	p, ok := h.plugins[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", id, schema.ErrNotFound)
	}
	maps.Copy(p.Config, partial)
	merged := make(map[string]any, len(p.Config))
	maps.Copy(merged, p.Config)
	enabled := p.Enabled
	watcher, watches := p.instance.(ConfigWatcher)
	h.mu.Unlock()

	if enabled && watches {
		if err := h.notifyConfig(watcher, merged); err != nil {
			slog.Warn("plugin config callback failed", "plugin", id, "err", err)
		}
	}
	return nil
}

func (h *Host) notifyConfig(w ConfigWatcher, cfg map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return w.OnConfigChange(cfg)
}

// ShutdownAll disables every enabled plugin best-effort, then cancels any
// work items still outstanding across all plugins.
func (h *Host) ShutdownAll(ctx context.Context) {
	h.mu.Lock()
	ids := make([]string, len(h.order))
	copy(ids, h.order)
	h.mu.Unlock()

	for _, id := range ids {
		if err := h.Disable(ctx, id); err != nil {
			slog.Warn("shutdown: disable failed", "plugin", id, "err", err)
		}
	}

	h.mu.Lock()
	leftover := make([]*Task, 0)
	for _, set := range h.tasks {
		for _, t := range set {
			leftover = append(leftover, t)
		}
	}
	h.mu.Unlock()

	for _, t := range leftover {
		t.RequestCancel()
	}
	for _, t := range leftover {
		if !t.AwaitSettled(h.cancelWait) {
			slog.Warn("shutdown: task still running", "plugin", t.PluginID, "task", t.Name)
		}
	}
}

// HostStats is the aggregate view of the host.
type HostStats struct {
	Total         int   `json:"total"`
	Enabled       int   `json:"enabled"`
	Subscriptions int   `json:"subscriptions"`
	ActiveTasks   int   `json:"activeTasks"`
	HookCalls     int64 `json:"hookCalls"`
	HookErrors    int64 `json:"hookErrors"`
}

// Stats computes the aggregate view under the host lock.
func (h *Host) Stats() HostStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := HostStats{Total: len(h.plugins)}
	for _, p := range h.plugins {
		if p.Enabled {
			s.Enabled++
		}
		s.HookCalls += p.HookCallCount
		s.HookErrors += p.ErrorCount
	}
	for _, list := range h.subs {
		s.Subscriptions += len(list)
	}
	for _, set := range h.tasks {
		s.ActiveTasks += len(set)
	}
	return s
}
