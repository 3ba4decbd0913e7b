package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validatePrefs(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLibrary() error {
	if c.Library.PageSize < 1 {
		return fmt.Errorf("library.page_size must be positive, got %d", c.Library.PageSize)
	}
	if c.Library.MaxDepth < 0 {
		return fmt.Errorf("library.max_depth must not be negative, got %d", c.Library.MaxDepth)
	}
	if c.Library.PresignExpirySeconds < 1 || c.Library.PresignExpirySeconds > 7*24*3600 {
		return fmt.Errorf("library.presign_expiry_seconds must be between 1 and 604800, got %d", c.Library.PresignExpirySeconds)
	}
	if !c.UsesBucket() && c.Library.Directory == "" {
		return errors.New("library.directory or library.bucket must be set")
	}
	return nil
}

func (c *Config) validatePrefs() error {
	switch c.Prefs.Backend {
	case PrefsBackendFile:
		return nil
	case PrefsBackendDynamoDB:
		if c.Prefs.Table == "" {
			return errors.New("prefs.table is required when prefs.backend is dynamodb")
		}
		return nil
	default:
		return fmt.Errorf("prefs.backend must be %q or %q, got %q", PrefsBackendFile, PrefsBackendDynamoDB, c.Prefs.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
}
