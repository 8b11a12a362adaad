package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.viam.com/test"

	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

func TestWsHandlerSendsSnapshotBeforeRegistering(t *testing.T) {
	m := &types.Measurement{
		Timestamp: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		Meter:     "isw8001",
		Function:  "W",
		Value:     types.Float(0.02),
		Unit:      "W",
	}
	latestMutex.Lock()
	latestMeasurement = m
	latestMutex.Unlock()

	srv := httptest.NewServer(http.HandlerFunc(wsHandler))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()

	// The snapshot is written before the connection joins the broadcast set,
	// so it is always the first message.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"function":"W"`)

	// Wait for registration, then confirm broadcasts reach the client.
	deadline := time.Now().Add(5 * time.Second)
	for {
		wsClientsMutex.RLock()
		registered := len(wsClients) > 0
		wsClientsMutex.RUnlock()
		if registered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered for broadcasts")
		}
		time.Sleep(time.Millisecond)
	}
	broadcastToWebSockets(m)

	_, data, err = conn.ReadMessage()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"meter":"isw8001"`)
}
