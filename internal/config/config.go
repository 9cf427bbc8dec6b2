package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"whatsview/internal/constants"
	"whatsview/internal/models"
	"whatsview/internal/security"
)

var (
	ErrMissingMongoURI = models.ConfigError{Message: "missing MongoDB URI"}
	ErrInvalidPort     = models.ConfigError{Message: "server port out of range"}
)

// LoadConfig reads the JSON config file, applies defaults and environment
// overrides, and validates the result. Environment variables win over file
// values so deployments can keep credentials out of the file.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = constants.DefaultCORSOrigin
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Mongo.Database == "" {
		c.Mongo.Database = constants.DefaultMongoDatabase
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = constants.DefaultMongoCollection
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultStoreRetryAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "whatsview"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		c.Mongo.URI = uri
	}
	if db := os.Getenv("MONGODB_DATABASE"); db != "" {
		c.Mongo.Database = db
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
		c.Server.CORSOrigin = origin
	}
	if v := os.Getenv("ENABLE_CHANGE_STREAMS"); v != "" {
		c.Mongo.EnableChangeStreams = v == "true"
	}
}

func validate(c *models.Config) error {
	if c.Mongo.URI == "" {
		return ErrMissingMongoURI
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}
