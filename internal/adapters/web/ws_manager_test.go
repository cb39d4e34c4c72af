package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/services/events"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dialWS(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketReceivesBroadcasts(t *testing.T) {
	bus := events.NewBus()
	manager := NewWSManager(bus)
	ts := httptest.NewServer(http.HandlerFunc(manager.HandleWebSocket))
	defer ts.Close()

	conn := dialWS(t, ts, nil)
	require.Eventually(t, func() bool { return manager.Count() == 1 }, time.Second, 5*time.Millisecond)

	bus.Broadcast(domain.NewCardInsertedEvent("Card detected - ready for reading", "ACS ACR39U"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, domain.EventCardInserted, got.Type)
	assert.Equal(t, "ACS ACR39U", got.Reader)
}

func TestWebSocketEventOrder(t *testing.T) {
	bus := events.NewBus()
	manager := NewWSManager(bus)
	ts := httptest.NewServer(http.HandlerFunc(manager.HandleWebSocket))
	defer ts.Close()

	conn := dialWS(t, ts, nil)
	require.Eventually(t, func() bool { return manager.Count() == 1 }, time.Second, 5*time.Millisecond)

	bus.Broadcast(domain.NewCardInsertedEvent("in", "r"))
	bus.Broadcast(domain.NewCardReadEvent("read", "r", map[string]interface{}{"cid": "1234567890123"}))
	bus.Broadcast(domain.NewCardRemovedEvent("out", "r"))

	want := []domain.EventType{
		domain.EventCardInserted,
		domain.EventCardRead,
		domain.EventCardRemoved,
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, wt := range want {
		var got domain.Event
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, wt, got.Type)
	}
}

func TestWebSocketDisconnectDetaches(t *testing.T) {
	bus := events.NewBus()
	manager := NewWSManager(bus)
	ts := httptest.NewServer(http.HandlerFunc(manager.HandleWebSocket))
	defer ts.Close()

	conn := dialWS(t, ts, nil)
	require.Eventually(t, func() bool { return manager.Count() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, bus.Count())

	conn.Close()
	require.Eventually(t, func() bool { return manager.Count() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return bus.Count() == 0 }, time.Second, 5*time.Millisecond)

	// Broadcasting with no subscribers left must not panic.
	bus.Broadcast(domain.NewErrorEvent(domain.ErrCodeMonitoring, "boom"))
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	bus := events.NewBus()
	manager := NewWSManager(bus)
	ts := httptest.NewServer(http.HandlerFunc(manager.HandleWebSocket))
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.Error(t, err)
	if resp != nil {
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestWebSocketAllowsExtensionOrigin(t *testing.T) {
	bus := events.NewBus()
	manager := NewWSManager(bus)
	ts := httptest.NewServer(http.HandlerFunc(manager.HandleWebSocket))
	defer ts.Close()

	header := http.Header{"Origin": []string{"chrome-extension://abcdefghijklmnop"}}
	conn := dialWS(t, ts, header)
	assert.NotNil(t, conn)
}
