// Package connection owns the physical WebSocket socket: dialing,
// ready/close semantics, the JSON keepalive loop, and a queue of outbound
// frames written once the socket reaches the open state.
package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// pingFrame is the wire-level keepalive message.
var pingFrame = []byte(`{"method":"ping"}`)

// Client is a single duplex WebSocket channel to one endpoint.
//
// Register handlers and open/close callbacks before calling Connect;
// they are invoked from the connection's own goroutines.
type Client struct {
	cfg    Config
	logger *slog.Logger

	// Write serialization
	writeMu sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	started bool
	closed  bool
	lastErr error
	queue   [][]byte      // outbound frames deferred until open
	openCh  chan struct{} // closed while the socket is open; replaced on disconnect
	handler Handler
	onOpen  []func()
	onClose []func(err error)

	closedCh chan struct{} // closed once, on Close or terminal failure
	runDone  chan struct{} // closed when the run goroutine exits
}

// NewClient creates a new connection. The socket is not dialed until
// Connect is called.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Client{
		cfg:      cfg,
		logger:   logger,
		state:    StateConnecting,
		openCh:   make(chan struct{}),
		closedCh: make(chan struct{}),
		runDone:  make(chan struct{}),
	}
}

// SetHandler sets the callback invoked with each inbound text frame.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// OnOpen registers a callback fired each time the socket reaches the open
// state, after any queued outbound frames have been written.
func (c *Client) OnOpen(fn func()) {
	c.mu.Lock()
	c.onOpen = append(c.onOpen, fn)
	c.mu.Unlock()
}

// OnClose registers a callback fired each time the socket drops. err is
// nil for a clean, caller-initiated close.
func (c *Client) OnClose(fn func(err error)) {
	c.mu.Lock()
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

// Connect starts dialing in the background. Use Ready to wait for the
// open state.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.state = StateConnecting
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Ready blocks until the socket is open, the connection fails terminally,
// or ctx is cancelled.
func (c *Client) Ready(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state == StateOpen {
			c.mu.Unlock()
			return nil
		}
		if c.closed {
			err := c.lastErr
			c.mu.Unlock()
			if err == nil {
				err = ErrClosed
			}
			return err
		}
		open := c.openCh
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-open:
		case <-c.closedCh:
		}
	}
}

// Close initiates closure and blocks until the connection is fully torn
// down or ctx is cancelled. Calling Close on an already-closed connection
// returns immediately.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	conn := c.conn
	if !c.closed {
		c.closed = true
		c.state = StateClosing
		close(c.closedCh)
	}
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}

	if !started {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		return nil
	}

	select {
	case <-c.runDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes a text frame, or queues it for delivery on the open
// transition if the socket is not open yet.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateOpen && c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return c.write(conn, data)
	}
	c.queue = append(c.queue, data)
	c.mu.Unlock()
	return nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// run dials and serves the socket, redialing with backoff when reconnect
// is enabled.
func (c *Client) run(ctx context.Context) {
	defer close(c.runDone)

	wait := c.cfg.ReconnectBaseWait

	for {
		if c.isClosed() {
			return
		}

		dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if err != nil {
			if ctx.Err() != nil || !c.cfg.Reconnect || c.isClosed() {
				c.fail(err)
				return
			}
			c.logger.Warn("dial failed, retrying", "url", c.cfg.URL, "wait", wait, "error", err)
			select {
			case <-ctx.Done():
				c.fail(ctx.Err())
				return
			case <-c.closedCh:
				return
			case <-time.After(wait):
			}
			wait *= 2
			if wait > c.cfg.ReconnectMaxWait {
				wait = c.cfg.ReconnectMaxWait
			}
			continue
		}

		wait = c.cfg.ReconnectBaseWait
		err = c.serve(conn)

		if ctx.Err() != nil || c.isClosed() {
			c.setClosedState()
			return
		}
		if !c.cfg.Reconnect {
			c.fail(err)
			return
		}

		c.logger.Warn("connection dropped, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			c.fail(ctx.Err())
			return
		case <-c.closedCh:
			return
		case <-time.After(wait):
		}
	}
}

// serve runs one connection generation: drains the outbound queue, fires
// open callbacks, starts the keepalive loop, and reads until the socket
// drops. Returns the read error (nil on clean close).
func (c *Client) serve(conn *websocket.Conn) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateOpen
	queue := c.queue
	c.queue = nil
	close(c.openCh)
	onOpen := append([]func(){}, c.onOpen...)
	c.mu.Unlock()

	c.logger.Debug("websocket open", "url", c.cfg.URL)

	for _, frame := range queue {
		if err := c.write(conn, frame); err != nil {
			c.logger.Warn("failed to send queued frame", "error", err)
			break
		}
	}
	for _, fn := range onOpen {
		fn()
	}

	// Keepalive is stopped when this generation's done channel closes,
	// so the timer can never outlive the socket.
	done := make(chan struct{})
	go c.pingLoop(conn, done)

	var readErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h(data)
		}
	}
	close(done)
	conn.Close()

	c.mu.Lock()
	c.conn = nil
	if !c.closed {
		c.state = StateConnecting
	}
	c.openCh = make(chan struct{})
	closed := c.closed
	onClose := append([]func(error){}, c.onClose...)
	c.mu.Unlock()

	cause := readErr
	if closed {
		cause = nil
	}
	for _, fn := range onClose {
		fn(cause)
	}

	return readErr
}

// pingLoop sends the JSON keepalive frame at a fixed interval while the
// socket is open.
func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.closedCh:
			return
		case <-ticker.C:
			if err := c.write(conn, pingFrame); err != nil {
				c.logger.Debug("failed to send keepalive", "error", err)
				return
			}
		}
	}
}

func (c *Client) write(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fail marks the connection terminally failed.
func (c *Client) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.state = StateClosed
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	c.mu.Unlock()
}

func (c *Client) setClosedState() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}
