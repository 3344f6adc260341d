package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/driftcove/driftcove/internal/capability"
)

// SyncTools queries the server's catalog and mirrors each tool into the
// registry under the reserved external category, tagged with the server's
// name. On any failure a descriptive lastError is recorded on the server and
// the registry is left untouched. Nothing removes previously mirrored
// capabilities: the external catalog is sticky.
func (b *Broker) SyncTools(ctx context.Context, name string) error {
	b.mu.Lock()
	s, ok := b.servers[name]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("server %q not found", name)
	}
	endpoint := s.Endpoint
	b.mu.Unlock()

	tools, err := b.fetchTools(ctx, endpoint)
	if err != nil {
		b.mu.Lock()
		s.LastError = fmt.Sprintf("sync: %v", err)
		s.LastCheckAt = time.Now()
		b.mu.Unlock()
		slog.Warn("tool catalog sync failed", "server", name, "err", err)
		return err
	}

	b.mu.Lock()
	s.Tools = tools
	s.LastError = ""
	s.LastCheckAt = time.Now()
	b.mu.Unlock()

	for _, tool := range tools {
		b.mirror(name, tool)
	}
	slog.Info("tool catalog synced", "server", name, "tools", len(tools))
	return nil
}

// mirror registers one external tool as an enabled registry capability whose
// handler proxies back through CallTool. The handler returns the structured
// CallResult directly so transport failure kinds survive the uniform call
// path unchanged.
func (b *Broker) mirror(serverName string, tool ToolDef) {
	params, err := json.Marshal(tool.Parameters)
	if err != nil || tool.Parameters == nil {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}

	toolName := tool.Name
	b.registry.Register(capability.Definition{
		Name:        toolName,
		Description: tool.Description,
		Parameters:  params,
		Enabled:     true,
		Category:    Category,
		Tags:        []string{serverName},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return b.CallTool(ctx, serverName, toolName, args), nil
		},
	})
}

// SyncAll refreshes the catalog of every connected server.
func (b *Broker) SyncAll(ctx context.Context) {
	for _, s := range b.ListServers() {
		if s.Status != StatusConnected {
			continue
		}
		_ = b.SyncTools(ctx, s.Name) // recorded on the server, best-effort
	}
}

// SyncScheduler re-runs SyncAll on a cron schedule so catalogs stay fresh
// while servers run.
type SyncScheduler struct {
	broker *Broker
	cron   *cron.Cron
	spec   string
}

// NewSyncScheduler creates a scheduler; spec accepts standard cron syntax or
// descriptors like "@every 5m".
func NewSyncScheduler(b *Broker, spec string) *SyncScheduler {
	if spec == "" {
		spec = "@every 5m"
	}
	return &SyncScheduler{broker: b, cron: cron.New(), spec: spec}
}

// Start arms the schedule and runs until ctx is cancelled.
func (s *SyncScheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.broker.SyncAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("sync schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	slog.Info("catalog sync scheduled", "spec", s.spec)

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
