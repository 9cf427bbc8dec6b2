package models

// ConfigError indicates invalid or incomplete configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return "config error: " + e.Message
}

type ServerConfig struct {
	Port            int    `json:"port"`
	CORSOrigin      string `json:"corsOrigin"`
	ReadTimeoutSec  int    `json:"readTimeoutSec"`
	WriteTimeoutSec int    `json:"writeTimeoutSec"`
	IdleTimeoutSec  int    `json:"idleTimeoutSec"`
}

type MongoConfig struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
	// EnableChangeStreams turns on publishing of externally-driven
	// insert/update events. Requires a replica-set deployment.
	EnableChangeStreams bool `json:"enableChangeStreams"`
	SeedOnEmpty         bool `json:"seedOnEmpty"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

type Config struct {
	LogLevel string        `json:"logLevel"`
	Server   ServerConfig  `json:"server"`
	Mongo    MongoConfig   `json:"mongo"`
	Retry    RetryConfig   `json:"retry"`
	Tracing  TracingConfig `json:"tracing"`
}
