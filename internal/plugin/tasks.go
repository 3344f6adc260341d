package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultCancelWait bounds how long disable waits for each tracked task to
// acknowledge cancellation before proceeding with a logged warning.
const DefaultCancelWait = 5 * time.Second

// TaskFunc is the body of one tracked background work item. It must observe
// ctx: a cancel request only takes effect when the function next checks it.
type TaskFunc func(ctx context.Context) error

// Task is an opaque handle to background work owned by exactly one plugin.
// Cancellation is cooperative and best-effort, not a real-time guarantee.
type Task struct {
	ID       string
	PluginID string
	Name     string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// RequestCancel asks the task to stop at its next suspension point.
func (t *Task) RequestCancel() { t.cancel() }

// AwaitSettled waits up to d for the task to finish (success, failure, or
// cancellation) and reports whether it did.
func (t *Task) AwaitSettled(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

// Settled reports whether the task has finished without waiting.
func (t *Task) Settled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns the task's outcome. Only meaningful once settled.
func (t *Task) Err() error { return t.err }

// spawn starts fn as a tracked work item owned by pluginID. The handle is
// registered at spawn time and removes itself on natural completion, so the
// per-plugin set is exactly what disable and shutdownAll drain.
func (h *Host) spawn(pluginID, name string, fn TaskFunc) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		ID:       uuid.NewString(),
		PluginID: pluginID,
		Name:     name,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	if h.tasks[pluginID] == nil {
		h.tasks[pluginID] = make(map[string]*Task)
	}
	h.tasks[pluginID][t.ID] = t
	h.mu.Unlock()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				t.err = fmt.Errorf("task panicked: %v", rec)
				slog.Error("tracked task panicked", "plugin", pluginID, "task", name, "panic", rec)
			}
			cancel()
			h.removeTask(t)
			close(t.done)
		}()
		t.err = fn(ctx)
	}()

	slog.Debug("tracked task spawned", "plugin", pluginID, "task", name, "id", t.ID)
	return t
}

func (h *Host) removeTask(t *Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.tasks[t.PluginID]; ok {
		delete(set, t.ID)
		if len(set) == 0 {
			delete(h.tasks, t.PluginID)
		}
	}
}

// drainTasks requests cancellation of every work item owned by pluginID and
// awaits each with a bounded wait. Already-finished items are tolerated;
// uncooperative ones are logged and left to remove themselves on completion.
func (h *Host) drainTasks(pluginID string) {
	h.mu.Lock()
	snapshot := make([]*Task, 0, len(h.tasks[pluginID]))
	for _, t := range h.tasks[pluginID] {
		snapshot = append(snapshot, t)
	}
	h.mu.Unlock()

	for _, t := range snapshot {
		t.RequestCancel()
	}
	for _, t := range snapshot {
		if !t.AwaitSettled(h.cancelWait) {
			slog.Warn("tracked task did not acknowledge cancellation",
				"plugin", pluginID, "task", t.Name, "id", t.ID, "waited", h.cancelWait)
		}
	}
}
