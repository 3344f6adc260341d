// Package dependency wires the driftcove core services using go.uber.org/dig.
package dependency

import (
	"fmt"
	"time"

	"go.uber.org/dig"

	"github.com/driftcove/driftcove/internal/broadcast"
	"github.com/driftcove/driftcove/internal/broker"
	"github.com/driftcove/driftcove/internal/capability"
	"github.com/driftcove/driftcove/internal/config"
	"github.com/driftcove/driftcove/internal/llm"
	"github.com/driftcove/driftcove/internal/memory"
	"github.com/driftcove/driftcove/internal/plugin"
	"github.com/driftcove/driftcove/internal/plugins/journal"
	"github.com/driftcove/driftcove/internal/plugins/webtools"
	"github.com/driftcove/driftcove/internal/session"
)

// Container holds the resolved core service singletons. Callers use the typed
// getter methods; they never need to import dig directly.
type Container struct {
	registry  *capability.Registry
	host      *plugin.Host
	brk       *broker.Broker
	scheduler *broker.SyncScheduler
	hub       *broadcast.Hub
}

func (c *Container) Registry() *capability.Registry       { return c.registry }
func (c *Container) Host() *plugin.Host                   { return c.host }
func (c *Container) Broker() *broker.Broker               { return c.brk }
func (c *Container) SyncScheduler() *broker.SyncScheduler { return c.scheduler }
func (c *Container) Hub() *broadcast.Hub                  { return c.hub }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		newRegistry,
		broadcast.NewHub,
		newAccessors,
		newHost,
		newBroker,
		newSyncScheduler,
	}
	for _, ctor := range constructors {
		if err := d.Provide(ctor); err != nil {
			return nil, fmt.Errorf("dependency wiring: %w", err)
		}
	}

	out := &Container{}
	err := d.Invoke(func(
		registry *capability.Registry,
		host *plugin.Host,
		brk *broker.Broker,
		scheduler *broker.SyncScheduler,
		hub *broadcast.Hub,
	) {
		out.registry = registry
		out.host = host
		out.brk = brk
		out.scheduler = scheduler
		out.hub = hub
	})
	if err != nil {
		return nil, fmt.Errorf("dependency resolution: %w", err)
	}
	return out, nil
}

func newRegistry(cfg *config.Config) *capability.Registry {
	return capability.NewRegistry(
		capability.WithCallTimeout(time.Duration(cfg.Registry.CallTimeoutSeconds) * time.Second),
	)
}

func newAccessors(cfg *config.Config, hub *broadcast.Hub) (plugin.Accessors, error) {
	workspace := cfg.WorkspacePath()

	mem, err := memory.NewFileStore(workspace)
	if err != nil {
		return plugin.Accessors{}, fmt.Errorf("memory store: %w", err)
	}
	sessions, err := session.NewFileStore(workspace)
	if err != nil {
		return plugin.Accessors{}, fmt.Errorf("session store: %w", err)
	}

	return plugin.Accessors{
		Memory:    mem,
		Sessions:  sessions,
		Chat:      llm.NewClient(cfg.LLM.APIKey, cfg.LLM.APIBase, cfg.LLM.Model),
		Broadcast: hub,
	}, nil
}

// newHost builds the plugin host and declares every built-in plugin factory.
func newHost(cfg *config.Config, registry *capability.Registry, accessors plugin.Accessors) (*plugin.Host, error) {
	overrides := make(map[string]map[string]any, len(cfg.Plugins.Plugins))
	for id, pc := range cfg.Plugins.Plugins {
		overrides[id] = pc.Config
	}

	host := plugin.NewHost(registry, accessors,
		plugin.WithPluginsDir(cfg.PluginsDir()),
		plugin.WithCancelWait(time.Duration(cfg.Plugins.CancelWaitSeconds)*time.Second),
		plugin.WithConfigOverrides(overrides),
	)

	if err := webtools.Register(host); err != nil {
		return nil, err
	}
	if err := journal.Register(host); err != nil {
		return nil, err
	}
	return host, nil
}

// newBroker builds the broker and records every configured server.
func newBroker(cfg *config.Config, registry *capability.Registry) (*broker.Broker, error) {
	b := broker.New(registry,
		broker.WithSettleInterval(time.Duration(cfg.Broker.SettleMillis)*time.Millisecond),
		broker.WithStopWait(time.Duration(cfg.Broker.StopWaitSeconds)*time.Second),
		broker.WithSyncTimeout(time.Duration(cfg.Broker.SyncTimeoutSeconds)*time.Second),
		broker.WithCallTimeout(time.Duration(cfg.Broker.CallTimeoutSeconds)*time.Second),
	)
	for name, sc := range cfg.Broker.Servers {
		if err := b.AddServer(name, sc.Command, sc.Args, sc.Env, sc.Endpoint); err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
	}
	return b, nil
}

func newSyncScheduler(cfg *config.Config, b *broker.Broker) *broker.SyncScheduler {
	return broker.NewSyncScheduler(b, cfg.Broker.SyncSchedule)
}
