package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultMarketDataURL = "https://market-data.grvt.io"
	DefaultTradeDataURL  = "https://trade-data.grvt.io"
	DefaultEdgeURL       = "https://edge.grvt.io"
	DefaultWSURL         = "wss://market-data.grvt.io/ws"
	DefaultAPITimeout    = 10 * time.Second
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 10
	DefaultMinConns      = 2
	DefaultBatchSize     = 500
	DefaultFlushInterval = 1 * time.Second
)

func (c *RecorderConfig) applyDefaults() {
	// API defaults
	if c.API.MarketDataURL == "" {
		c.API.MarketDataURL = DefaultMarketDataURL
	}
	if c.API.TradeDataURL == "" {
		c.API.TradeDataURL = DefaultTradeDataURL
	}
	if c.API.EdgeURL == "" {
		c.API.EdgeURL = DefaultEdgeURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
}
