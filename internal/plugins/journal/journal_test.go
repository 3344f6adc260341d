package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftcove/driftcove/internal/capability"
	"github.com/driftcove/driftcove/internal/memory"
	"github.com/driftcove/driftcove/internal/plugin"
	"github.com/driftcove/driftcove/internal/schema"
)

func journalHost(t *testing.T) (*plugin.Host, *memory.FileStore) {
	t.Helper()
	store, err := memory.NewFileStore(t.TempDir())
	require.NoError(t, err)

	host := plugin.NewHost(capability.NewRegistry(), plugin.Accessors{Memory: store})
	require.NoError(t, Register(host))
	require.NoError(t, host.Enable(context.Background(), "journal"))
	return host, store
}

func TestJournalRecordsLifecycleEvents(t *testing.T) {
	host, store := journalHost(t)

	host.ExecuteHooks(context.Background(), schema.HookSessionCreated,
		map[string]any{"key": "cli:default"}, false)
	host.ExecuteHooks(context.Background(), schema.HookToolAfterExecute,
		map[string]any{"capability": "web_fetch"}, false)

	// The flusher is asynchronous; entries land shortly after dispatch.
	require.Eventually(t, func() bool {
		return len(store.Search("session.created", 10)) == 1 &&
			len(store.Search("web_fetch", 10)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJournalFlushesRemainderOnDisable(t *testing.T) {
	host, store := journalHost(t)

	for range 5 {
		host.ExecuteHooks(context.Background(), schema.HookMemoryCreated,
			map[string]any{"n": 1}, false)
	}
	require.NoError(t, host.Disable(context.Background(), "journal"))

	// Disable drains the tracked flusher, which writes whatever is queued.
	assert.Len(t, store.Search("memory.created", 10), 5)
	assert.Zero(t, host.Stats().ActiveTasks)
}

func TestJournalRequiresMemoryAccessor(t *testing.T) {
	host := plugin.NewHost(capability.NewRegistry(), plugin.Accessors{})
	require.NoError(t, Register(host))

	err := host.Enable(context.Background(), "journal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory store")

	p, ok := host.Get("journal")
	require.True(t, ok)
	assert.False(t, p.Enabled)
}

func TestJournalIgnoresUnsubscribedEvents(t *testing.T) {
	host, store := journalHost(t)

	host.ExecuteHooks(context.Background(), schema.HookChatStream,
		map[string]any{"chunk": "..."}, false)
	require.NoError(t, host.Disable(context.Background(), "journal"))

	assert.Empty(t, store.Search("chat.stream", 10))
}
