// Package broker manages out-of-process tool servers: process lifecycle,
// health, catalog synchronization into the capability registry, and proxied
// invocation over a small HTTP contract.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driftcove/driftcove/internal/capability"
	"github.com/driftcove/driftcove/internal/schema"
)

// Status is the connection state of one external server.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Category is the reserved registry category for externally-mirrored
// capabilities. Entries are tagged with their owning server's name.
const Category = "external"

// defaultPortBase seeds derived endpoints for servers added without one.
const defaultPortBase = 8700

// ToolDef is one catalog entry reported by a server.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ServerInfo is a snapshot of one server record.
type ServerInfo struct {
	Name        string            `json:"name"`
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Endpoint    string            `json:"endpoint"`
	Status      Status            `json:"status"`
	LastCheckAt time.Time         `json:"lastCheckAt"`
	LastError   string            `json:"lastError,omitempty"`
	Tools       []ToolDef         `json:"tools,omitempty"`
}

// server is the broker-owned record behind a ServerInfo snapshot.
type server struct {
	ServerInfo
	proc *process
}

// Broker owns every external server record and mirrors their catalogs into
// the shared capability registry.
type Broker struct {
	mu       sync.Mutex
	servers  map[string]*server
	order    []string
	registry *capability.Registry

	httpClient  *http.Client
	nextPort    int
	settle      time.Duration
	stopWait    time.Duration
	syncTimeout time.Duration
	callTimeout time.Duration
}

// Option configures a Broker.
type Option func(*Broker)

// WithSettleInterval overrides how long startServer waits before re-checking
// process liveness.
func WithSettleInterval(d time.Duration) Option {
	return func(b *Broker) { b.settle = d }
}

// WithStopWait overrides the graceful-termination bound.
func WithStopWait(d time.Duration) Option {
	return func(b *Broker) { b.stopWait = d }
}

// WithSyncTimeout overrides the catalog query budget.
func WithSyncTimeout(d time.Duration) Option {
	return func(b *Broker) { b.syncTimeout = d }
}

// WithCallTimeout overrides the tool-call proxy budget.
func WithCallTimeout(d time.Duration) Option {
	return func(b *Broker) { b.callTimeout = d }
}

// New creates a Broker that mirrors discovered tools into registry.
func New(registry *capability.Registry, opts ...Option) *Broker {
	b := &Broker{
		servers:     make(map[string]*server),
		registry:    registry,
		httpClient:  &http.Client{},
		nextPort:    defaultPortBase,
		settle:      time.Second,
		stopWait:    5 * time.Second,
		syncTimeout: 10 * time.Second,
		callTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddServer records a named server. When no endpoint is given, a local one is
// derived from the next free default port. The record starts disconnected.
func (b *Broker) AddServer(name, command string, args []string, env map[string]string, endpoint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == "" {
		return fmt.Errorf("server name required")
	}
	if _, ok := b.servers[name]; ok {
		return fmt.Errorf("server %q: %w", name, schema.ErrAlreadyExists)
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("http://localhost:%d", b.nextPort)
		b.nextPort++
	}

	b.servers[name] = &server{ServerInfo: ServerInfo{
		Name:     name,
		Command:  command,
		Args:     args,
		Env:      env,
		Endpoint: endpoint,
		Status:   StatusDisconnected,
	}}
	b.order = append(b.order, name)
	slog.Info("external server added", "server", name, "endpoint", endpoint)
	return nil
}

// RemoveServer terminates any live process, then drops the record. Mirrored
// capabilities are left in the registry (sticky catalog).
func (b *Broker) RemoveServer(name string) error {
	b.mu.Lock()
	s, ok := b.servers[name]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("server %q: %w", name, schema.ErrNotFound)
	}
	proc := s.proc
	delete(b.servers, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	if proc != nil {
		proc.stop(b.stopWait)
	}
	slog.Info("external server removed", "server", name)
	return nil
}

// StartServer spawns the server process and, once it survives the settle
// interval, synchronizes its tool catalog. A process that exits immediately
// is reported as a startup failure with its error stream captured.
func (b *Broker) StartServer(ctx context.Context, name string) error {
	b.mu.Lock()
	s, ok := b.servers[name]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("server %q: %w", name, schema.ErrNotFound)
	}
	if s.Status == StatusConnected {
		b.mu.Unlock()
		return nil
	}
	if s.Command == "" {
		// Endpoint-only server: nothing to spawn, just mark connected.
		s.Status = StatusConnected
		s.LastError = ""
		b.mu.Unlock()
		b.SyncTools(ctx, name)
		return nil
	}

	proc, err := startProcess(s.Command, s.Args, s.Env)
	if err != nil {
		s.Status = StatusError
		s.LastError = err.Error()
		b.mu.Unlock()
		return fmt.Errorf("start server %q: %w", name, err)
	}
	s.proc = proc
	s.Status = StatusConnected
	s.LastError = ""
	b.mu.Unlock()

	select {
	case <-time.After(b.settle):
	case <-ctx.Done():
	}

	if !proc.alive() {
		detail := proc.errOutput()
		b.mu.Lock()
		s.Status = StatusError
		s.LastError = detail
		s.proc = nil
		b.mu.Unlock()
		return fmt.Errorf("server %q exited during startup: %s", name, detail)
	}

	slog.Info("external server started", "server", name, "pid", proc.pid())
	b.SyncTools(ctx, name)
	return nil
}

// StopServer terminates the process with a bounded graceful wait and marks
// the server disconnected.
func (b *Broker) StopServer(name string) error {
	b.mu.Lock()
	s, ok := b.servers[name]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("server %q: %w", name, schema.ErrNotFound)
	}
	proc := s.proc
	s.proc = nil
	s.Status = StatusDisconnected
	b.mu.Unlock()

	if proc != nil {
		proc.stop(b.stopWait)
	}
	slog.Info("external server stopped", "server", name)
	return nil
}

// CheckHealth reflects current process liveness into the record without
// touching the registry.
func (b *Broker) CheckHealth(name string) (ServerInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.servers[name]
	if !ok {
		return ServerInfo{}, fmt.Errorf("server %q: %w", name, schema.ErrNotFound)
	}
	s.LastCheckAt = time.Now()
	if s.proc != nil && !s.proc.alive() {
		s.Status = StatusError
		s.LastError = s.proc.errOutput()
		s.proc = nil
	}
	return s.ServerInfo, nil
}

// ListServers returns snapshots in insertion order.
func (b *Broker) ListServers() []ServerInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ServerInfo, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.servers[name].ServerInfo)
	}
	return out
}

// BrokerStats aggregates server status counts.
type BrokerStats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
	Tools    int            `json:"tools"`
}

// Stats computes the aggregate view under the broker lock.
func (b *Broker) Stats() BrokerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := BrokerStats{Total: len(b.servers), ByStatus: make(map[Status]int)}
	for _, srv := range b.servers {
		s.ByStatus[srv.Status]++
		s.Tools += len(srv.Tools)
	}
	return s
}

// Close terminates every live process and tears down the network client.
func (b *Broker) Close() error {
	b.mu.Lock()
	procs := make([]*process, 0, len(b.servers))
	for _, s := range b.servers {
		if s.proc != nil {
			procs = append(procs, s.proc)
			s.proc = nil
		}
		s.Status = StatusDisconnected
	}
	b.mu.Unlock()

	var g errgroup.Group
	for _, p := range procs {
		g.Go(func() error {
			p.stop(b.stopWait)
			return nil
		})
	}
	err := g.Wait()
	b.httpClient.CloseIdleConnections()
	return err
}
