package config

import "time"

// Config is the root configuration for a streaming client instance.
type Config struct {
	Feed    FeedConfig    `yaml:"feed"`
	Signals SignalsConfig `yaml:"signals"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// FeedConfig holds WebSocket connection settings.
type FeedConfig struct {
	URL                string        `yaml:"url"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	MessageBufferSize  int           `yaml:"message_buffer_size"`
}

// SignalsConfig holds the derived-signal thresholds.
type SignalsConfig struct {
	StaleThreshold time.Duration `yaml:"stale_threshold"`
	MovePercent    float64       `yaml:"move_percent"`
}

// MetricsConfig holds Prometheus exposure settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
