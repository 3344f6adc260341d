package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftcove/driftcove/internal/capability"
	"github.com/driftcove/driftcove/internal/schema"
)

// toolServer is an in-test implementation of the wire contract.
func toolServer(t *testing.T, tools []ToolDef, call http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"tools": tools})
	})
	if call != nil {
		mux.HandleFunc("POST /call", call)
	}
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func echoTools() []ToolDef {
	return []ToolDef{{
		Name:        "echo",
		Description: "returns its arguments",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{"msg": map[string]any{"type": "string"}}},
	}}
}

// connect adds an endpoint-only server and marks it connected via StartServer.
func connect(t *testing.T, b *Broker, name, endpoint string) {
	t.Helper()
	require.NoError(t, b.AddServer(name, "", nil, nil, endpoint))
	require.NoError(t, b.StartServer(context.Background(), name))
}

func TestAddServer(t *testing.T) {
	b := New(capability.NewRegistry())

	require.NoError(t, b.AddServer("s1", "python3", []string{"server.py"}, nil, ""))
	assert.Error(t, b.AddServer("s1", "", nil, nil, ""), "duplicate names are rejected")
	assert.Error(t, b.AddServer("", "", nil, nil, ""))
	require.NoError(t, b.AddServer("s2", "", nil, nil, ""))

	servers := b.ListServers()
	require.Len(t, servers, 2)
	assert.Equal(t, "http://localhost:8700", servers[0].Endpoint)
	assert.Equal(t, "http://localhost:8701", servers[1].Endpoint, "derived ports advance")
	assert.Equal(t, StatusDisconnected, servers[0].Status)
}

func TestRemoveServer(t *testing.T) {
	b := New(capability.NewRegistry())
	require.NoError(t, b.AddServer("s1", "", nil, nil, ""))

	require.NoError(t, b.RemoveServer("s1"))
	assert.Empty(t, b.ListServers())
	assert.ErrorIs(t, b.RemoveServer("s1"), schema.ErrNotFound)
}

func TestSyncToolsMirrorsCatalog(t *testing.T) {
	registry := capability.NewRegistry()
	ts := toolServer(t, echoTools(), nil)

	b := New(registry)
	connect(t, b, "s1", ts.URL)

	c, ok := registry.Get("echo")
	require.True(t, ok, "synced tool appears in the registry")
	assert.True(t, c.Enabled)
	assert.Equal(t, Category, c.Category)
	assert.Equal(t, []string{"s1"}, c.Tags)
	assert.Equal(t, "returns its arguments", c.Description)

	servers := b.ListServers()
	require.Len(t, servers, 1)
	assert.Equal(t, StatusConnected, servers[0].Status)
	require.Len(t, servers[0].Tools, 1)
	assert.False(t, servers[0].LastCheckAt.IsZero())
}

func TestSyncFailureLeavesRegistryUntouched(t *testing.T) {
	registry := capability.NewRegistry()
	b := New(registry, WithSyncTimeout(200*time.Millisecond))

	// Nothing listens on this endpoint. The failure is recorded on the
	// server record; start itself is best-effort for endpoint-only servers.
	require.NoError(t, b.AddServer("dead", "", nil, nil, "http://127.0.0.1:1"))
	require.NoError(t, b.StartServer(context.Background(), "dead"))

	assert.Empty(t, registry.List(false))
	servers := b.ListServers()
	assert.NotEmpty(t, servers[0].LastError)
	assert.False(t, servers[0].LastCheckAt.IsZero())
}

func TestMirroredCapabilityProxiesCall(t *testing.T) {
	registry := capability.NewRegistry()
	ts := toolServer(t, echoTools(), func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tool      string         `json:"tool"`
			Arguments map[string]any `json:"arguments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "echo", req.Tool)
		json.NewEncoder(w).Encode(map[string]any{"echoed": req.Arguments["msg"]})
	})

	b := New(registry)
	connect(t, b, "s1", ts.URL)

	// Through the uniform registry call path, not the broker directly.
	res := registry.Call(context.Background(), "echo", map[string]any{"msg": "hello"})
	require.True(t, res.Success)
	assert.Equal(t, map[string]any{"echoed": "hello"}, res.Result)
}

func TestCallToolNotConnected(t *testing.T) {
	b := New(capability.NewRegistry())
	require.NoError(t, b.AddServer("s1", "", nil, nil, "http://127.0.0.1:1"))

	res := b.CallTool(context.Background(), "s1", "echo", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindDisabled, res.Kind)
	assert.Equal(t, string(StatusDisconnected), res.Detail)
}

func TestCallToolUnknownServer(t *testing.T) {
	b := New(capability.NewRegistry())
	res := b.CallTool(context.Background(), "ghost", "echo", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindNotFound, res.Kind)
}

func TestCallToolConnectionRefused(t *testing.T) {
	registry := capability.NewRegistry()
	ts := toolServer(t, echoTools(), nil)

	b := New(registry, WithCallTimeout(500*time.Millisecond))
	connect(t, b, "s1", ts.URL)

	// Kill the server after connecting so the proxy hits a dead endpoint.
	ts.Close()

	res := b.CallTool(context.Background(), "s1", "echo", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindConnection, res.Kind)

	// A failed call never flips the recorded status.
	servers := b.ListServers()
	assert.Equal(t, StatusConnected, servers[0].Status)
}

func TestCallToolProtocolError(t *testing.T) {
	registry := capability.NewRegistry()
	ts := toolServer(t, echoTools(), func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tool exploded", http.StatusInternalServerError)
	})

	b := New(registry)
	connect(t, b, "s1", ts.URL)

	res := b.CallTool(context.Background(), "s1", "echo", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindProtocol, res.Kind)
	assert.Contains(t, res.Error, "status 500")
	assert.Contains(t, res.Detail, "tool exploded")
}

func TestCallToolTimeout(t *testing.T) {
	registry := capability.NewRegistry()
	ts := toolServer(t, echoTools(), func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	b := New(registry, WithCallTimeout(50*time.Millisecond))
	connect(t, b, "s1", ts.URL)

	res := b.CallTool(context.Background(), "s1", "echo", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindTimeout, res.Kind)
}

func TestCallToolNonJSONBody(t *testing.T) {
	registry := capability.NewRegistry()
	ts := toolServer(t, echoTools(), func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text answer"))
	})

	b := New(registry)
	connect(t, b, "s1", ts.URL)

	res := b.CallTool(context.Background(), "s1", "echo", nil)
	require.True(t, res.Success)
	assert.Equal(t, "plain text answer", res.Result)
}

func TestRemoveServerKeepsMirroredCapabilities(t *testing.T) {
	registry := capability.NewRegistry()
	ts := toolServer(t, echoTools(), nil)

	b := New(registry)
	connect(t, b, "s1", ts.URL)
	require.NoError(t, b.RemoveServer("s1"))

	// Sticky catalog: the entry survives, calls through it report the
	// server as gone.
	_, ok := registry.Get("echo")
	require.True(t, ok)
	res := registry.Call(context.Background(), "echo", nil)
	assert.False(t, res.Success)
	assert.Equal(t, schema.KindNotFound, res.Kind)
}

func TestSyncAllSkipsDisconnected(t *testing.T) {
	registry := capability.NewRegistry()
	ts := toolServer(t, echoTools(), nil)

	b := New(registry)
	connect(t, b, "up", ts.URL)
	require.NoError(t, b.AddServer("down", "", nil, nil, "http://127.0.0.1:1"))

	b.SyncAll(context.Background())
	servers := b.ListServers()
	require.Len(t, servers, 2)
	assert.Empty(t, servers[1].LastError, "disconnected servers are not queried")
}

func TestStats(t *testing.T) {
	registry := capability.NewRegistry()
	ts := toolServer(t, echoTools(), nil)

	b := New(registry)
	connect(t, b, "up", ts.URL)
	require.NoError(t, b.AddServer("idle", "", nil, nil, ""))

	s := b.Stats()
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.ByStatus[StatusConnected])
	assert.Equal(t, 1, s.ByStatus[StatusDisconnected])
	assert.Equal(t, 1, s.Tools)
}

func TestCheckHealth(t *testing.T) {
	b := New(capability.NewRegistry())
	require.NoError(t, b.AddServer("s1", "", nil, nil, ""))

	info, err := b.CheckHealth("s1")
	require.NoError(t, err)
	assert.False(t, info.LastCheckAt.IsZero())

	_, err = b.CheckHealth("ghost")
	assert.ErrorIs(t, err, schema.ErrNotFound)
}
