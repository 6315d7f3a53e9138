package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/filebridge/internal/pool"
)

func dialTestClient(t *testing.T, hub *Hub, streams []string, allowed map[string]struct{}) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve("tester", streams, allowed, w, r)
	}))
	t.Cleanup(server.Close)

	wsURL := strings.Replace(server.URL, "http", "ws", 1)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	hub := NewHub()
	conn := dialTestClient(t, hub, []string{StreamSessions}, nil)

	require.Eventually(t, func() bool {
		return hub.Subscribers(StreamSessions) == 1
	}, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastStream(StreamSessions, Message{
		Event: EventSessionConnected,
		Data:  map[string]any{"session": "primary"},
	})

	msg := readMessage(t, conn)
	require.Equal(t, StreamSessions, msg.Stream)
	require.Equal(t, EventSessionConnected, msg.Event)

	payload, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "primary", payload["session"])
}

func TestHub_ControlMessagesManageSubscriptions(t *testing.T) {
	hub := NewHub()
	conn := dialTestClient(t, hub, nil, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":  "subscribe",
		"streams": []string{StreamTransfers},
	}))
	require.Eventually(t, func() bool {
		return hub.Subscribers(StreamTransfers) == 1
	}, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastStream(StreamTransfers, Message{Event: EventTransferCompleted})
	msg := readMessage(t, conn)
	require.Equal(t, StreamTransfers, msg.Stream)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":  "unsubscribe",
		"streams": []string{StreamTransfers},
	}))
	require.Eventually(t, func() bool {
		return hub.Subscribers(StreamTransfers) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHub_AllowedSetFiltersStreams(t *testing.T) {
	hub := NewHub()
	allowed := map[string]struct{}{StreamSessions: {}}
	dialTestClient(t, hub, []string{StreamSessions, StreamTransfers}, allowed)

	require.Eventually(t, func() bool {
		return hub.Subscribers(StreamSessions) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 0, hub.Subscribers(StreamTransfers))
}

func TestPoolEvents_BroadcastsLifecycle(t *testing.T) {
	hub := NewHub()
	conn := dialTestClient(t, hub, []string{StreamSessions}, nil)

	require.Eventually(t, func() bool {
		return hub.Subscribers(StreamSessions) == 1
	}, 2*time.Second, 5*time.Millisecond)

	sink := PoolEvents(hub)
	sink(pool.Event{
		Session:  "primary",
		State:    pool.StateRestarting,
		Restarts: 1,
		Error:    "remotefs: connect primary: dial tcp: refused",
		At:       time.Now(),
	})

	down := readMessage(t, conn)
	require.Equal(t, EventSessionDown, down.Event)
	payload, ok := down.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "primary", payload["session"])
	require.NotEmpty(t, payload["error"])

	restarting := readMessage(t, conn)
	require.Equal(t, EventSessionRestarting, restarting.Event)
}
