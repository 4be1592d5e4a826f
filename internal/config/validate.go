package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors returned by [Config.Validate]. They are wrapped with the
// offending field, so match them with errors.Is.
var (
	ErrInvalidServerConfig  = errors.New("invalid server configuration")
	ErrInvalidStorageConfig = errors.New("invalid storage configuration")
	ErrInvalidAuthConfig    = errors.New("invalid auth configuration")
	ErrInvalidQuotaConfig   = errors.New("invalid quota configuration")
	ErrInvalidLogConfig     = errors.New("invalid log configuration")
)

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidServerConfig, c.Server.Port)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite path is empty", ErrInvalidStorageConfig)
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" || c.Storage.MongoDatabase == "" {
			return fmt.Errorf("%w: mongo uri and database are required", ErrInvalidStorageConfig)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidStorageConfig, c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: AUTH_JWT_SECRET is required", ErrInvalidAuthConfig)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", ErrInvalidAuthConfig)
	}

	if c.Quota.DefaultLimit <= 0 || c.Quota.ElevatedLimit < c.Quota.DefaultLimit {
		return fmt.Errorf("%w: need 0 < default (%d) <= elevated (%d)",
			ErrInvalidQuotaConfig, c.Quota.DefaultLimit, c.Quota.ElevatedLimit)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: level %q", ErrInvalidLogConfig, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: format %q", ErrInvalidLogConfig, c.Log.Format)
	}

	return nil
}
