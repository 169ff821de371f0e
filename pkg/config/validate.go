package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// app.id is required.
	if c.App.ID == "" {
		errs = append(errs, fmt.Errorf("app.id is required"))
	}

	// app.memory_mode must be a known value.
	switch c.App.MemoryMode {
	case "last_user_message", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("app.memory_mode must be \"last_user_message\", got %q", c.App.MemoryMode))
	}

	// engine.base_url is required.
	if c.Engine.BaseURL == "" {
		errs = append(errs, fmt.Errorf("engine.base_url is required"))
	}

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "redis", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"redis\", or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "redis", a URL must be set.
	if c.Storage.Type == "redis" && c.Storage.Redis.URL == "" {
		errs = append(errs, fmt.Errorf("storage.redis.url is required when storage.type is \"redis\""))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	return errors.Join(errs...)
}
