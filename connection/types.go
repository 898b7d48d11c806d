package connection

import (
	"errors"
	"net/http"
	"time"
)

// Errors
var (
	ErrClosed         = errors.New("connection closed")
	ErrAlreadyStarted = errors.New("already started")
)

// State is the lifecycle state of the connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives each raw inbound text frame.
type Handler func(data []byte)

// Config configures a WebSocket connection.
type Config struct {
	URL              string        // WebSocket URL (e.g., wss://market-data.grvt.io/ws)
	Header           http.Header   // Extra handshake headers (nil = none)
	PingInterval     time.Duration // Interval between JSON keepalive frames
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Dial handshake timeout

	// Reconnect enables redialing with exponential backoff after the
	// socket drops. When disabled the first failure is terminal.
	Reconnect         bool
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:      30 * time.Second,
		WriteTimeout:      5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		Reconnect:         true,
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.PingInterval == 0 {
		c.PingInterval = def.PingInterval
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ReconnectBaseWait == 0 {
		c.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if c.ReconnectMaxWait == 0 {
		c.ReconnectMaxWait = def.ReconnectMaxWait
	}
}
