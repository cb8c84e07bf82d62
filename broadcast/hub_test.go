package broadcast

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"memwatch/entity"
	"memwatch/sampler"
	"memwatch/session"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(cycle uint64) *session.Frame {
	return &session.Frame{
		Cycle:   cycle,
		MapName: "woods",
		Snapshots: []sampler.Snapshot{{
			Faction:  entity.FactionA,
			Human:    true,
			Class:    entity.Networked,
			Vitality: sampler.Full,
			Rotation: entity.Vector2{X: 1, Y: 2},
		}},
	}
}

func newServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	reg := prometheus.NewRegistry()
	hub := NewHub(reg)
	srv := httptest.NewServer(hub.Handler(reg))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) session.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got session.Frame
	require.NoError(t, json.Unmarshal(data, &got))
	return got
}

func TestPublishReachesSubscribers(t *testing.T) {
	hub, srv := newServer(t)
	a, b := dial(t, srv), dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers() == 2 }, 5*time.Second, time.Millisecond)

	hub.Publish(frame(7))
	for _, conn := range []*websocket.Conn{a, b} {
		got := readFrame(t, conn)
		assert.Equal(t, uint64(7), got.Cycle)
		assert.Equal(t, "woods", got.MapName)
		require.Len(t, got.Snapshots, 1)
	}

	a.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 5*time.Second, time.Millisecond)
}

func TestLatestSentOnConnect(t *testing.T) {
	hub, srv := newServer(t)
	hub.Publish(frame(3))

	conn := dial(t, srv)
	assert.Equal(t, uint64(3), readFrame(t, conn).Cycle)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(nil)
	sub := &subscriber{id: 1, send: make(chan []byte, sendBuffer)}
	hub.add(sub)

	for i := range sendBuffer + 1 {
		hub.Publish(frame(uint64(i)))
	}
	assert.Equal(t, 0, hub.Subscribers())
	assert.Equal(t, 1.0, testutil.ToFloat64(hub.dropped))

	// the queue was closed after the buffered frames
	n := 0
	for range sub.send {
		n++
	}
	assert.Equal(t, sendBuffer, n)
}

func TestLatestAndMetricsEndpoints(t *testing.T) {
	hub, srv := newServer(t)

	resp, err := http.Get(srv.URL + "/latest")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	hub.Publish(frame(11))
	resp, err = http.Get(srv.URL + "/latest")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `"cycle":11`)
	assert.Contains(t, string(body), `"vitality":"full"`)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "memwatch_broadcast_subscribers")
}
