package stream

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
)

// Router parses each inbound text frame as JSON and classifies it into
// exactly one of four categories: pong, error, subscription response, or
// data. Malformed frames are dropped; a single bad frame must not break
// the connection.
type Router struct {
	logger *slog.Logger

	mu         sync.Mutex
	nextID     int64
	listeners  map[string][]dataListener // bare stream name → registered callbacks, in order
	onPong     func()
	onResponse func(*Response)
	onError    func(*WSError)

	stats RouterStats
}

type dataListener struct {
	id int64
	fn func(*DataFrame)
}

// RouterStats contains frame counters.
type RouterStats struct {
	Pongs       int64
	Errors      int64
	Responses   int64
	Data        int64
	ParseErrors int64
	Dropped     int64
}

// NewRouter creates a new message router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:    logger,
		listeners: make(map[string][]dataListener),
	}
}

// SetPongHandler sets the callback for keepalive pongs.
func (r *Router) SetPongHandler(fn func()) {
	r.mu.Lock()
	r.onPong = fn
	r.mu.Unlock()
}

// SetResponseHandler sets the callback for subscription acknowledgements.
func (r *Router) SetResponseHandler(fn func(*Response)) {
	r.mu.Lock()
	r.onResponse = fn
	r.mu.Unlock()
}

// SetErrorHandler sets the callback for server-reported errors.
func (r *Router) SetErrorHandler(fn func(*WSError)) {
	r.mu.Lock()
	r.onError = fn
	r.mu.Unlock()
}

// AddListener registers a callback for data frames on a stream. The
// stream name may be given with or without the version prefix. Returns a
// token for RemoveListener.
func (r *Router) AddListener(stream string, fn func(*DataFrame)) int64 {
	key := bareStream(stream)

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners[key] = append(r.listeners[key], dataListener{id: id, fn: fn})
	r.mu.Unlock()
	return id
}

// RemoveListener removes a previously registered data callback.
func (r *Router) RemoveListener(stream string, id int64) {
	key := bareStream(stream)

	r.mu.Lock()
	regs := r.listeners[key]
	for i, reg := range regs {
		if reg.id == id {
			r.listeners[key] = append(regs[:i], regs[i+1:]...)
			break
		}
	}
	if len(r.listeners[key]) == 0 {
		delete(r.listeners, key)
	}
	r.mu.Unlock()
}

// RemoveAllListeners discards every registered data callback.
func (r *Router) RemoveAllListeners() {
	r.mu.Lock()
	r.listeners = make(map[string][]dataListener)
	r.mu.Unlock()
}

// Stats returns current counters.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Dispatch classifies one inbound frame. Classification order: pong,
// error, data, subscription response. Data takes precedence over the
// response shape whenever a stream is present and feed carries payload
// rather than echoing the request's feed list (an array alongside
// request metadata).
func (r *Router) Dispatch(raw []byte) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		r.count(&r.stats.Dropped)
		return
	}

	// Bare string frame: only the literal "pong" is meaningful.
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil || s != "pong" {
			r.count(&r.stats.Dropped)
			return
		}
		r.dispatchPong()
		return
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		r.count(&r.stats.ParseErrors)
		r.logger.Debug("dropping malformed frame", "error", err)
		return
	}

	if t, ok := obj["type"]; ok && bytes.Equal(bytes.TrimSpace(t), []byte(`"pong"`)) {
		r.dispatchPong()
		return
	}

	codeRaw, hasCode := obj["code"]
	msgRaw, hasMsg := obj["message"]
	if hasCode && hasMsg && isJSONNumber(codeRaw) && isJSONString(msgRaw) {
		var wsErr WSError
		if err := json.Unmarshal(trimmed, &wsErr); err != nil {
			r.count(&r.stats.ParseErrors)
			return
		}
		r.dispatchError(&wsErr)
		return
	}

	streamRaw, hasStream := obj["stream"]
	feedRaw, hasFeed := obj["feed"]
	_, hasMethod := obj["method"]
	_, hasRequestID := obj["request_id"]

	echoedFeedList := hasFeed && isJSONArray(feedRaw) && (hasMethod || hasRequestID)
	if hasStream && isJSONString(streamRaw) && hasFeed && !echoedFeedList {
		var df DataFrame
		if err := json.Unmarshal(trimmed, &df); err != nil {
			r.count(&r.stats.ParseErrors)
			return
		}
		df.Stream = bareStream(df.Stream)
		r.dispatchData(&df)
		return
	}

	if hasMethod || hasStream {
		var resp Response
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			r.count(&r.stats.ParseErrors)
			return
		}
		r.dispatchResponse(&resp)
		return
	}

	r.count(&r.stats.Dropped)
}

func (r *Router) dispatchPong() {
	r.mu.Lock()
	r.stats.Pongs++
	fn := r.onPong
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *Router) dispatchError(wsErr *WSError) {
	r.mu.Lock()
	r.stats.Errors++
	fn := r.onError
	r.mu.Unlock()
	if fn != nil {
		fn(wsErr)
	}
}

func (r *Router) dispatchResponse(resp *Response) {
	r.mu.Lock()
	r.stats.Responses++
	fn := r.onResponse
	r.mu.Unlock()
	if fn != nil {
		fn(resp)
	}
}

func (r *Router) dispatchData(df *DataFrame) {
	// Callbacks are invoked outside the router lock; the slice is copied
	// so concurrent add/remove cannot race the iteration.
	r.mu.Lock()
	r.stats.Data++
	regs := append([]dataListener{}, r.listeners[df.Stream]...)
	r.mu.Unlock()

	for _, reg := range regs {
		reg.fn(df)
	}
}

func (r *Router) count(field *int64) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}

func isJSONString(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '"'
}

func isJSONNumber(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && (t[0] == '-' || (t[0] >= '0' && t[0] <= '9'))
}

func isJSONArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}
