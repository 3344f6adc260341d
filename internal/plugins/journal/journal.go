// Package journal is a built-in plugin that records lifecycle events into the
// memory history file through a tracked background flusher.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftcove/driftcove/internal/plugin"
	"github.com/driftcove/driftcove/internal/schema"
)

const bufferSize = 64

// Metadata describes the plugin for the host's factory registry.
func Metadata() schema.PluginMetadata {
	return schema.PluginMetadata{
		ID:          "journal",
		Name:        "Event Journal",
		Version:     "1.0.0",
		Description: "Appends session, memory, and tool events to the memory history",
		Author:      "driftcove",
		Hooks: []schema.HookKind{
			schema.HookSessionCreated,
			schema.HookSessionDeleted,
			schema.HookMemoryCreated,
			schema.HookToolAfterExecute,
		},
	}
}

// Register declares the plugin on the host at process start.
func Register(host *plugin.Host) error {
	return host.RegisterFactory(Metadata(), func() plugin.Instance { return &Journal{} })
}

// Journal implements the plugin contract. Hook handlers enqueue entries; a
// tracked background task drains the queue into the memory store so the bus
// never blocks on disk.
type Journal struct {
	memory  schema.MemoryStore
	entries chan string
}

// Initialize wires the accessor and spawns the tracked flusher task; the
// host cancels and awaits it when the plugin is disabled.
func (j *Journal) Initialize(ctx context.Context, pc *plugin.Context) error {
	if pc.Memory == nil {
		return fmt.Errorf("journal requires a memory store accessor")
	}
	j.memory = pc.Memory
	j.entries = make(chan string, bufferSize)

	pc.Spawn("journal-flusher", j.flush)
	return nil
}

// Shutdown implements the plugin contract. By the time it runs the host has
// already drained the flusher task.
func (j *Journal) Shutdown(ctx context.Context) error { return nil }

// Hooks subscribes early (priority 10) so the journal observes events before
// mutating subscribers run.
func (j *Journal) Hooks() []plugin.HookSpec {
	record := func(ctx context.Context, ev *schema.HookEvent) (any, error) {
		j.enqueue(ev)
		return nil, nil
	}
	specs := make([]plugin.HookSpec, 0, len(Metadata().Hooks))
	for _, kind := range Metadata().Hooks {
		specs = append(specs, plugin.HookSpec{Kind: kind, Handler: record, Priority: 10})
	}
	return specs
}

func (j *Journal) enqueue(ev *schema.HookEvent) {
	entry := fmt.Sprintf("[%s] %s source=%s payload=%v",
		ev.Timestamp.UTC().Format(time.RFC3339), ev.Kind, ev.Source, ev.Payload)
	select {
	case j.entries <- entry:
	default:
		slog.Warn("journal: buffer full, dropping entry", "kind", ev.Kind)
	}
}

// flush drains queued entries until cancelled, then writes whatever is left.
func (j *Journal) flush(ctx context.Context) error {
	for {
		select {
		case entry := <-j.entries:
			if err := j.memory.AppendHistory(entry); err != nil {
				slog.Warn("journal: append failed", "err", err)
			}
		case <-ctx.Done():
			for {
				select {
				case entry := <-j.entries:
					_ = j.memory.AppendHistory(entry)
				default:
					return ctx.Err()
				}
			}
		}
	}
}
