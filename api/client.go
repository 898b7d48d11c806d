// Package api is the HTTP transport for the exchange REST endpoints. It
// transparently obtains and refreshes the session cookie for requests
// that require authentication.
package api

import (
	"log/slog"
	"net/http"
	"time"
)

// EndpointType selects which base URL a request is routed to.
type EndpointType int

const (
	// EndpointMarketData serves instrument metadata, tickers, and books.
	EndpointMarketData EndpointType = iota
	// EndpointTradeData serves order entry and account state.
	EndpointTradeData
	// EndpointEdge serves authentication and session management.
	EndpointEdge
)

// Default endpoint bases.
const (
	DefaultMarketDataURL = "https://market-data.grvt.io"
	DefaultTradeDataURL  = "https://trade-data.grvt.io"
	DefaultEdgeURL       = "https://edge.grvt.io"
)

// DefaultTimeout is the per-request timeout. Disable with WithTimeout(0).
const DefaultTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	MarketDataURL string
	TradeDataURL  string
	EdgeURL       string

	// APIKey is exchanged for a session cookie on the first authenticated
	// request. Calls flagged as requiring auth fail immediately when it
	// is empty.
	APIKey string
}

// Client issues typed requests against the exchange REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration

	session sessionState
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.MarketDataURL == "" {
		cfg.MarketDataURL = DefaultMarketDataURL
	}
	if cfg.TradeDataURL == "" {
		cfg.TradeDataURL = DefaultTradeDataURL
	}
	if cfg.EdgeURL == "" {
		cfg.EdgeURL = DefaultEdgeURL
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		timeout:    DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// baseFor returns the base URL for an endpoint type.
func (c *Client) baseFor(endpoint EndpointType) string {
	switch endpoint {
	case EndpointTradeData:
		return c.cfg.TradeDataURL
	case EndpointEdge:
		return c.cfg.EdgeURL
	default:
		return c.cfg.MarketDataURL
	}
}
