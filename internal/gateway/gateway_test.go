package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/livetrack/internal/bus"
	"github.com/p-blackswan/livetrack/internal/models"
	"github.com/p-blackswan/livetrack/internal/registry"
)

type testFixture struct {
	registry *registry.Registry
	bus      *bus.Bus
	server   *httptest.Server
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	reg := registry.New()
	b := bus.New(64, nil, zerolog.Nop())
	t.Cleanup(b.Close)

	gw := New(reg, b, time.Second, zerolog.Nop())
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	return &testFixture{registry: reg, bus: b, server: srv}
}

func (f *testFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.LiveEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev models.LiveEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestGateway_SnapshotReplayOnConnect(t *testing.T) {
	f := newFixture(t)
	first := f.registry.Create("first")
	second := f.registry.Create("second")

	conn := f.dial(t)

	ev1 := readEvent(t, conn)
	ev2 := readEvent(t, conn)
	assert.Equal(t, models.EventProjectState, ev1.Type)
	assert.Equal(t, first.ID, ev1.ProjectID)
	assert.Equal(t, models.EventProjectState, ev2.Type)
	assert.Equal(t, second.ID, ev2.ProjectID)

	data, ok := ev1.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "first", data["name"])
	assert.Equal(t, string(models.StatusInitializing), data["status"])
}

func TestGateway_LiveEventsAfterSnapshot(t *testing.T) {
	f := newFixture(t)
	p := f.registry.Create("demo")

	conn := f.dial(t)
	readEvent(t, conn) // snapshot for "demo"

	f.bus.Publish(models.NewProgressUpdate(p.ID, 15, "folders"))
	f.bus.Publish(models.NewLogAdded(p.ID, "[12:00:00] created src/"))

	ev := readEvent(t, conn)
	assert.Equal(t, models.EventProgressUpdate, ev.Type)
	assert.Equal(t, p.ID, ev.ProjectID)

	ev = readEvent(t, conn)
	assert.Equal(t, models.EventLogAdded, ev.Type)
}

func TestGateway_EmptyRegistry_NoReplay(t *testing.T) {
	f := newFixture(t)

	conn := f.dial(t)
	require.Eventually(t, func() bool { return f.bus.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Nothing to replay; the first frame is the first live event.
	f.bus.Publish(models.NewLogAdded("p1", "hello"))
	ev := readEvent(t, conn)
	assert.Equal(t, models.EventLogAdded, ev.Type)
}

func TestGateway_Heartbeat(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(raw))
}

func TestGateway_DisconnectRemovesSubscriber(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.Eventually(t, func() bool { return f.bus.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return f.bus.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_MultipleSubscribersEachGetEvents(t *testing.T) {
	f := newFixture(t)
	a := f.dial(t)
	c := f.dial(t)

	require.Eventually(t, func() bool { return f.bus.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	f.bus.Publish(models.NewLogAdded("p1", "fan-out"))

	for _, conn := range []*websocket.Conn{a, c} {
		ev := readEvent(t, conn)
		assert.Equal(t, models.EventLogAdded, ev.Type)
		assert.Equal(t, "p1", ev.ProjectID)
	}
}
