// Package heartbeat publishes a periodic system health-check event to the
// hook bus so plugins can run their own liveness work.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/driftcove/driftcove/internal/plugin"
	"github.com/driftcove/driftcove/internal/schema"
)

// Service emits system.health_check on a fixed interval.
type Service struct {
	host     *plugin.Host
	interval time.Duration
}

// NewService creates a heartbeat. interval defaults to 30 minutes if zero.
func NewService(host *plugin.Host, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Service{host: host, interval: interval}
}

// Start runs the heartbeat loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("heartbeat: started", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			results := s.host.ExecuteHooks(ctx, schema.HookSystemHealthCheck, map[string]any{
				"at": time.Now().UTC().Format(time.RFC3339),
			}, false)
			for _, res := range results {
				if !res.Success {
					slog.Warn("heartbeat: subscriber failed", "plugin", res.PluginID, "err", res.Error)
				}
			}
		case <-ctx.Done():
			slog.Info("heartbeat: stopped")
			return ctx.Err()
		}
	}
}
