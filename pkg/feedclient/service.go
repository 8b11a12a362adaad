package feedclient

import (
	"context"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

const (
	defaultRetryDelay = 2 * time.Second
	maxRetryDelay     = 60 * time.Second
	defaultMaxRetries = 10

	// A feed in auto mode pushes several measurements per second, so a
	// connection silent this long is dead.
	readTimeout  = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Listener maintains a websocket subscription to a profiler feed and calls
// the handler for every measurement the feed broadcasts. Dropped connections
// reconnect with exponential backoff; shutdown is driven by the caller's
// context, not by signals.
type Listener struct {
	host    string
	useTLS  bool
	handler types.MeasurementHandler
	log     *logrus.Logger
	dialer  *websocket.Dialer

	retryDelay time.Duration
	maxRetries int
}

func NewListener(host string, useTLS bool, handler types.MeasurementHandler) *Listener {
	return &Listener{
		host:       host,
		useTLS:     useTLS,
		handler:    handler,
		log:        logrus.StandardLogger(),
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
	}
}

func (l *Listener) feedURL() url.URL {
	scheme := "ws"
	if l.useTLS {
		scheme = "wss"
	}
	return url.URL{Scheme: scheme, Host: l.host, Path: "/ws"}
}

// Run blocks until ctx is cancelled or the feed stays unreachable past the
// retry budget. A successful connection resets the budget.
func (l *Listener) Run(ctx context.Context) error {
	u := l.feedURL()
	retries := 0
	delay := l.retryDelay
	for {
		conn, _, err := l.dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			retries++
			if retries >= l.maxRetries {
				return errors.Wrapf(err, "feed %s unreachable after %d attempts", l.host, retries)
			}
			l.log.Errorf("Feed connection failed: %v", err)
			l.log.Infof("Retrying in %v (attempt %d/%d)", delay, retries+1, l.maxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			continue
		}

		retries = 0
		delay = l.retryDelay
		l.log.Infof("Connected to feed at %s", l.host)
		err = l.consume(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Infof("Feed connection lost: %v", err)
	}
}

// consume reads measurements off one connection until it breaks or ctx is
// cancelled. On cancellation a close message goes out and the reader gets a
// grace period to observe the close handshake.
func (l *Listener) consume(ctx context.Context, conn *websocket.Conn) error {
	readErr := make(chan error, 1)
	go func() { readErr <- l.readMeasurements(conn) }()

	pings := time.NewTicker(pingInterval)
	defer pings.Stop()
	for {
		select {
		case err := <-readErr:
			return err
		case <-pings.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				l.log.Errorf("Failed to ping feed: %v", err)
			}
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
				l.log.Debugf("Failed to send close message: %v", err)
			}
			select {
			case <-readErr:
			case <-time.After(time.Second):
			}
			return ctx.Err()
		}
	}
}

func (l *Listener) readMeasurements(conn *websocket.Conn) error {
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.log.Errorf("Feed read failed: %v", err)
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		m := MeasurementFromJsonBytes(data)
		if m == nil {
			l.log.Warnf("Discarding unparseable feed message: %s", data)
			continue
		}
		l.handler(m)
	}
}
