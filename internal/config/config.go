// Package config loads and validates the recorder's YAML configuration.
package config

import "time"

// RecorderConfig is the root configuration for the tick recorder.
type RecorderConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Database DBConfig       `yaml:"database"`
	Recorder RecorderOpts   `yaml:"recorder"`
}

// InstanceConfig identifies a recorder deployment.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds exchange endpoint settings.
type APIConfig struct {
	MarketDataURL string        `yaml:"market_data_url"`
	TradeDataURL  string        `yaml:"trade_data_url"`
	EdgeURL       string        `yaml:"edge_url"`
	WSURL         string        `yaml:"ws_url"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// FeedConfig names one (stream, feed) pair to record.
type FeedConfig struct {
	Stream string `yaml:"stream"`
	Feed   string `yaml:"feed"`
}

// RecorderOpts controls subscription and batching behavior.
type RecorderOpts struct {
	Feeds         []FeedConfig  `yaml:"feeds"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}
