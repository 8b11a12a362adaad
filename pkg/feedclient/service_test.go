package feedclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.viam.com/test"

	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

func feedHost(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestListenerDeliversMeasurements(t *testing.T) {
	upgrader := websocket.Upgrader{}
	sent := &types.Measurement{
		Timestamp: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		Meter:     "isw8001",
		Function:  "W",
		Value:     types.Float(0.02),
		Unit:      "W",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("not a measurement"))
		conn.WriteMessage(websocket.TextMessage, ToJsonBytes(sent))
		// Hold the connection until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	got := make(chan *types.Measurement, 1)
	l := NewListener(feedHost(srv), false, func(m *types.Measurement) { got <- m })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- l.Run(ctx) }()

	select {
	case m := <-got:
		// The junk message was skipped; the real one came through intact.
		test.That(t, m, test.ShouldResemble, sent)
	case <-time.After(5 * time.Second):
		t.Fatal("no measurement delivered")
	}

	cancel()
	select {
	case err := <-runDone:
		test.That(t, err, test.ShouldEqual, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop on cancellation")
	}
}

func TestListenerGivesUpWhenFeedUnreachable(t *testing.T) {
	l := NewListener("127.0.0.1:1", false, func(m *types.Measurement) {})
	l.retryDelay = time.Millisecond
	l.maxRetries = 3

	err := l.Run(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestListenerReconnectsAfterConnectionLoss(t *testing.T) {
	upgrader := websocket.Upgrader{}
	connections := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case connections <- struct{}{}:
		default:
		}
		// Drop the connection immediately to force a reconnect.
		conn.Close()
	}))
	defer srv.Close()

	l := NewListener(feedHost(srv), false, func(m *types.Measurement) {})
	l.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- l.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-connections:
		case <-time.After(5 * time.Second):
			t.Fatalf("connection %d never arrived", i+1)
		}
	}

	cancel()
	select {
	case err := <-runDone:
		test.That(t, err, test.ShouldEqual, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop on cancellation")
	}
}
