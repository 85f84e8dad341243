package nwc

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/lnbits/nwc-client/nip01"
)

// relayConn owns the single outbound websocket to the relay. A supervisor
// goroutine dials, runs the receive loop, and re-dials after a fixed
// backoff on any failure, until the root context is cancelled. Nothing
// outside this type touches the socket.
type relayConn struct {
	url     string
	backoff time.Duration
	logger  *log.Logger

	// handler receives every successfully parsed inbound frame.
	handler func(*nip01.RelayMessage)

	// shutdown releases callers waiting on the connection gate when the
	// client shuts down, even while the relay is unreachable.
	shutdown <-chan struct{}

	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	readyCh   chan struct{} // closed while connected, swapped on disconnect
}

func newRelayConn(url string, backoff time.Duration, logger *log.Logger, handler func(*nip01.RelayMessage), shutdown <-chan struct{}) *relayConn {
	return &relayConn{
		url:      url,
		backoff:  backoff,
		logger:   logger,
		handler:  handler,
		shutdown: shutdown,
		readyCh:  make(chan struct{}),
	}
}

// run is the connection supervisor. It returns when ctx is cancelled.
func (c *relayConn) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithError(err).Errorf("Failed to connect to relay %s, retrying in %s", c.url, c.backoff)
			if !sleepCtx(ctx, c.backoff) {
				return
			}
			continue
		}
		c.logger.Infof("Connected to relay %s", c.url)
		c.setConnected(conn)

		c.readLoop(ctx, conn)

		c.setDisconnected()
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Infof("Disconnected from relay, reconnecting in %s", c.backoff)
		if !sleepCtx(ctx, c.backoff) {
			return
		}
	}
}

// readLoop parses and dispatches inbound frames until the socket fails or
// ctx is cancelled (the caller closes the socket to unblock the read).
func (c *relayConn) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.WithError(err).Error("Relay read failed")
			}
			return
		}
		msg, err := nip01.ParseRelayMessage(data)
		if err != nil {
			c.logger.WithError(err).Warn("Dropping unparseable relay frame")
			continue
		}
		c.handler(msg)
	}
}

// send serializes one frame onto the socket. It waits for a live
// connection first; concurrent sends are serialized. Write failures are
// not surfaced to the caller: they close the socket so the supervisor
// reconnects, and the caller's request times out through the registry.
func (c *relayConn) send(ctx context.Context, frame []byte) error {
	if err := c.waitForConnection(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.WithError(err).Error("Relay write failed")
		conn.Close()
	}
	return nil
}

// waitForConnection blocks until the socket is up, ctx is cancelled, or
// the client shuts down.
func (c *relayConn) waitForConnection(ctx context.Context) error {
	for {
		c.mu.Lock()
		connected, ready := c.connected, c.readyCh
		c.mu.Unlock()
		if connected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.shutdown:
			return ErrShutdown
		case <-ready:
		}
	}
}

func (c *relayConn) setConnected(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	close(c.readyCh)
	c.mu.Unlock()
}

func (c *relayConn) setDisconnected() {
	c.mu.Lock()
	c.conn = nil
	if c.connected {
		c.connected = false
		c.readyCh = make(chan struct{})
	}
	c.mu.Unlock()
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
