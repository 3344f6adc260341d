package broadcast

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesAllObservers(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Close()

	a := dial(t, ts)
	b := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Observers() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(context.Background(), "plugin.enabled",
		map[string]any{"plugin": "webtools"}))

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg map[string]any
		require.NoError(t, json.Unmarshal(frame, &msg))
		assert.Equal(t, "plugin.enabled", msg["event"])
		assert.Equal(t, "webtools", msg["payload"].(map[string]any)["plugin"])
		assert.NotEmpty(t, msg["timestamp"])
	}
}

func TestBroadcastWithoutObservers(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.Broadcast(context.Background(), "quiet", nil))
	assert.Zero(t, hub.Observers())
}

func TestDisconnectedObserverIsDropped(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Close()

	conn := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Observers() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Observers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestCloseDisconnectsEveryone(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	dial(t, ts)
	dial(t, ts)
	require.Eventually(t, func() bool { return hub.Observers() == 2 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Observers())
}
