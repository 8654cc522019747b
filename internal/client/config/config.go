// Package config handles configuration for the FileKeeper command-line
// client: defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the FileKeeper client.
//
// Fields:
//   - ServerURL: base URL of the FileKeeper HTTP API.
//   - Token: bearer token sent with every request, if any.
//   - ChunkSize: bytes sent per upload request.
//   - Timeout: per-request timeout.
//   - Retries: attempts per chunk before an upload gives up.
type Config struct {
	ServerURL string
	Token     string
	ChunkSize int64
	Timeout   time.Duration
	Retries   int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.Token = ""
	c.ChunkSize = 4 << 20
	c.Timeout = time.Minute
	c.Retries = 3
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
