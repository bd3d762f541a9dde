// Package config handles configuration for the channelhub CLI: defaults,
// an optional JSON file and command-line flags, applied in that order.
package config

import "time"

// Config holds runtime settings for the CLI.
type Config struct {
	// ServerEndpointAddr is the host:port of the server's gRPC endpoint.
	ServerEndpointAddr string
	// DatabasePath is the SQLite file holding the saved session.
	DatabasePath   string
	RequestTimeout time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "channelhub.db"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then JSON, then flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
