package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors
var (
	ErrTimeout          = errors.New("subscribe request timeout")
	ErrConnectionClosed = errors.New("connection closed")
)

// streamVersionPrefix is required on stream names over the wire. Callers
// work in terms of bare stream names; the prefix is added on send and
// stripped before dispatch.
const streamVersionPrefix = "v1."

const (
	methodSubscribe   = "subscribe"
	methodUnsubscribe = "unsubscribe"
)

// requestFrame is an outbound subscribe or unsubscribe command.
type requestFrame struct {
	RequestID int64    `json:"request_id"`
	Stream    string   `json:"stream"`
	Feed      []string `json:"feed"`
	Method    string   `json:"method"`
	IsFull    bool     `json:"is_full,omitempty"`
}

// Response is a subscription acknowledgement from the server.
type Response struct {
	RequestID int64    `json:"request_id"`
	Method    string   `json:"method"`
	Stream    string   `json:"stream"`
	Feed      []string `json:"feed"`
}

// DataFrame is a realtime data message. Stream carries the bare name
// (version prefix already stripped); Feed is the payload.
type DataFrame struct {
	Stream     string          `json:"stream"`
	SequenceID string          `json:"sequence_id"`
	Feed       json.RawMessage `json:"feed"`
}

// WSError is a server-reported application error.
type WSError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID int64  `json:"request_id"`
}

func (e *WSError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// Config configures a subscription Manager.
type Config struct {
	SubscribeTimeout time.Duration // Round-trip timeout for subscribe/unsubscribe commands
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SubscribeTimeout: 10 * time.Second,
	}
}

func normalizeStream(stream string) string {
	if strings.HasPrefix(stream, streamVersionPrefix) {
		return stream
	}
	return streamVersionPrefix + stream
}

func bareStream(stream string) string {
	return strings.TrimPrefix(stream, streamVersionPrefix)
}
