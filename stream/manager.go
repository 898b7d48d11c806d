// Package stream multiplexes realtime subscriptions over a single shared
// WebSocket connection: request/response correlation, de-duplication of
// subscriptions shared by multiple listeners, and automatic resubscription
// after reconnect.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"github.com/grvt-dev/grvt-go/connection"
)

// subscriptionKeySep joins stream and feed into a composite key. Feed
// strings use '@' and '-' as sub-delimiters, so a NUL byte can never
// collide.
const subscriptionKeySep = "\x00"

// Listener receives the unwrapped feed payload of each data frame for a
// subscribed stream.
type Listener func(feed json.RawMessage)

// listenerKey identifies a callback by its func value's data pointer.
// Distinct closures created from the same literal carry distinct
// allocations, while the same value passed twice maps to the same key.
// The code pointer would collapse same-literal closures into one.
func listenerKey(fn Listener) uintptr {
	return uintptr(*(*unsafe.Pointer)(unsafe.Pointer(&fn)))
}

// Manager multiplexes logical (stream, feed) subscriptions over one
// connection. Any number of listeners may share one wire-level
// subscription; exactly one subscribe frame is sent per unique key.
type Manager struct {
	conn    *connection.Client
	router  *Router
	logger  *slog.Logger
	timeout time.Duration

	mu          sync.Mutex
	nextID      int64
	pending     map[int64]*pendingRequest
	entries     map[string]*entry
	resubscribe bool
}

// pendingRequest is one in-flight subscribe/unsubscribe round-trip.
// err is written exactly once before done is closed.
type pendingRequest struct {
	id    int64
	done  chan struct{}
	err   error
	timer *time.Timer
}

// entry is one logical (stream, feed) subscription shared by its
// registered listeners.
type entry struct {
	stream, feed string
	listeners    map[uintptr]*registration
	settled      bool     // current subscribe attempt has completed (success or failure)
	attempt      *attempt // in-flight or most recent subscribe attempt
	failCh       chan error
	failOnce     sync.Once
}

// attempt tracks one subscribe round-trip for an entry. done is closed
// when the attempt settles; err is set first.
type attempt struct {
	done chan struct{}
	err  error
}

// fail triggers the entry's failure signal. Fires at most once.
func (e *entry) fail(err error) {
	e.failOnce.Do(func() {
		e.failCh <- err
		close(e.failCh)
	})
}

type registration struct {
	routerID int64
	fn       Listener
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	m      *Manager
	key    string
	stream string
	ptr    uintptr
	failCh <-chan error
}

// Failed returns a channel that receives an error (then closes) if the
// entry is lost after establishment: a failed resubscription attempt
// after a reconnect, or teardown on close with resubscription disabled.
func (s *Subscription) Failed() <-chan error {
	return s.failCh
}

// Unsubscribe removes this listener. If it was the last one for the
// (stream, feed) key, a wire-level unsubscribe frame is sent when the
// socket is open and the entry is discarded. Unsubscribe failures are
// never surfaced.
func (s *Subscription) Unsubscribe() {
	s.m.removeListener(s.key, s.ptr)
}

// NewManager creates a subscription manager bound to conn. It installs
// itself as the connection's frame handler and open/close observer, so it
// must be created before conn.Connect is called.
func NewManager(conn *connection.Client, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SubscribeTimeout == 0 {
		cfg.SubscribeTimeout = DefaultConfig().SubscribeTimeout
	}

	m := &Manager{
		conn:        conn,
		router:      NewRouter(logger),
		logger:      logger,
		timeout:     cfg.SubscribeTimeout,
		pending:     make(map[int64]*pendingRequest),
		entries:     make(map[string]*entry),
		resubscribe: true,
	}

	m.router.SetResponseHandler(m.handleResponse)
	m.router.SetErrorHandler(m.handleError)
	conn.SetHandler(m.router.Dispatch)
	conn.OnOpen(m.handleOpen)
	conn.OnClose(m.handleClose)

	return m
}

// Router returns the manager's message router.
func (m *Manager) Router() *Router {
	return m.router
}

// SetResubscribe toggles automatic resubscription after reconnect
// (enabled by default).
func (m *Manager) SetResubscribe(v bool) {
	m.mu.Lock()
	m.resubscribe = v
	m.mu.Unlock()
}

// ManagerStats reports current index sizes.
type ManagerStats struct {
	Entries   int
	Listeners int
	Pending   int
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	listeners := 0
	for _, e := range m.entries {
		listeners += len(e.listeners)
	}
	return ManagerStats{
		Entries:   len(m.entries),
		Listeners: listeners,
		Pending:   len(m.pending),
	}
}

// Subscribe registers fn for data frames on (stream, feed) and blocks
// until the server acknowledges the subscription (or the round-trip
// fails). If an entry for the key already exists, the caller joins its
// in-flight or completed request; no duplicate frame is sent. The same
// callback passed twice for the same key is registered once.
func (m *Manager) Subscribe(ctx context.Context, stream, feed string, fn Listener) (*Subscription, error) {
	if fn == nil {
		return nil, errors.New("stream: nil listener")
	}

	key := stream + subscriptionKeySep + feed
	ptr := listenerKey(fn)

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{
			stream:    stream,
			feed:      feed,
			listeners: make(map[uintptr]*registration),
			failCh:    make(chan error, 1),
		}
		m.entries[key] = e
		m.startAttemptLocked(e, false)
	}
	if _, dup := e.listeners[ptr]; !dup {
		reg := &registration{fn: fn}
		reg.routerID = m.router.AddListener(stream, func(df *DataFrame) {
			fn(df.Feed)
		})
		e.listeners[ptr] = reg
	}
	att := e.attempt
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		m.removeListener(key, ptr)
		return nil, ctx.Err()
	case <-att.done:
	}

	if att.err != nil {
		m.removeListener(key, ptr)
		return nil, att.err
	}

	return &Subscription{m: m, key: key, stream: stream, ptr: ptr, failCh: e.failCh}, nil
}

// startAttemptLocked issues the send-subscribe protocol for an entry and
// spawns a waiter that settles the entry when the round-trip completes.
// When notifyFail is set (reconnect replay), a failed attempt fires the
// entry's failure signal. Caller must hold m.mu.
func (m *Manager) startAttemptLocked(e *entry, notifyFail bool) {
	att := &attempt{done: make(chan struct{})}
	e.attempt = att
	e.settled = false

	p := m.sendRequestLocked(methodSubscribe, e.stream, e.feed)

	go func() {
		<-p.done

		m.mu.Lock()
		if e.attempt == att {
			e.settled = true
		}
		m.mu.Unlock()

		att.err = p.err
		close(att.done)

		if p.err != nil {
			m.logger.Warn("subscribe failed",
				"stream", e.stream,
				"feed", e.feed,
				"error", p.err,
			)
			if notifyFail {
				e.fail(p.err)
			}
		} else {
			m.logger.Debug("subscribed", "stream", e.stream, "feed", e.feed)
		}
	}()
}

// sendRequestLocked assigns the next correlation id, registers a pending
// request with the round-trip timeout, and sends (or queues) the frame.
// Correlation ids are strictly increasing and never reused. Caller must
// hold m.mu.
func (m *Manager) sendRequestLocked(method, stream, feed string) *pendingRequest {
	m.nextID++
	id := m.nextID

	p := &pendingRequest{id: id, done: make(chan struct{})}
	m.pending[id] = p
	p.timer = time.AfterFunc(m.timeout, func() {
		m.finishPending(id, ErrTimeout)
	})

	frame := requestFrame{
		RequestID: id,
		Stream:    normalizeStream(stream),
		Feed:      []string{feed},
		Method:    method,
		IsFull:    method == methodSubscribe,
	}
	data, err := json.Marshal(frame)
	if err == nil {
		err = m.conn.Send(data)
	}
	if err != nil {
		delete(m.pending, id)
		p.timer.Stop()
		p.err = err
		close(p.done)
	}

	return p
}

// finishPending settles the pending request with the given id, if still
// outstanding.
func (m *Manager) finishPending(id int64, err error) {
	m.mu.Lock()
	p, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	p.timer.Stop()
	p.err = err
	close(p.done)
}

// handleResponse resolves the pending request matching the response's
// correlation id. Responses without one cannot be correlated and are
// ignored.
func (m *Manager) handleResponse(resp *Response) {
	if resp.RequestID == 0 {
		return
	}
	m.finishPending(resp.RequestID, nil)
}

// handleError rejects the matching pending request with the server error.
func (m *Manager) handleError(wsErr *WSError) {
	if wsErr.RequestID == 0 {
		m.logger.Debug("uncorrelated server error", "code", wsErr.Code, "message", wsErr.Message)
		return
	}
	m.finishPending(wsErr.RequestID, wsErr)
}

// handleOpen replays every previously established subscription after the
// socket re-opens. Entries still pending at disconnect time were already
// failed by handleClose; their callers retry if desired.
func (m *Manager) handleOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.resubscribe {
		return
	}
	for _, e := range m.entries {
		if !e.settled {
			continue
		}
		m.startAttemptLocked(e, true)
	}
}

// handleClose rejects every outstanding pending request with a
// connection-closed error. When resubscription is disabled, all listeners
// are discarded and each dropped entry's failure signal fires, so callers
// blocked on Failed are released; teardown is best-effort since the
// socket is already gone.
func (m *Manager) handleClose(cause error) {
	m.mu.Lock()
	pending := m.pending
	m.pending = make(map[int64]*pendingRequest)

	var dropped map[string]*entry
	if !m.resubscribe {
		dropped = m.entries
		m.entries = make(map[string]*entry)
	}
	m.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.err = ErrConnectionClosed
		close(p.done)
	}
	if len(pending) > 0 {
		m.logger.Debug("rejected pending requests on close",
			"count", len(pending),
			"cause", cause,
		)
	}

	for _, e := range dropped {
		for _, reg := range e.listeners {
			m.router.RemoveListener(e.stream, reg.routerID)
		}
		e.fail(ErrConnectionClosed)
	}
}

// removeListener drops one listener registration. Removing the last one
// for a key sends a wire-level unsubscribe (when the socket is open) and
// deletes the entry.
func (m *Manager) removeListener(key string, ptr uintptr) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	reg, ok := e.listeners[ptr]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(e.listeners, ptr)
	m.router.RemoveListener(e.stream, reg.routerID)

	if len(e.listeners) == 0 {
		delete(m.entries, key)
		if m.conn.State() == connection.StateOpen {
			// Correlation-tracked so the response does not leak, but
			// fire-and-forget: failures are not surfaced.
			m.sendRequestLocked(methodUnsubscribe, e.stream, e.feed)
		}
	}
	m.mu.Unlock()
}
