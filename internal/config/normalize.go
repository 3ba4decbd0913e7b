package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	if err := c.normalizePrefs(); err != nil {
		return err
	}
	c.Web.Bind = strings.TrimSpace(c.Web.Bind)
	if c.Web.Bind == "" {
		c.Web.Bind = defaultWebBind
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func (c *Config) normalizeLibrary() error {
	c.Library.Bucket = strings.TrimSpace(c.Library.Bucket)
	c.Library.Prefix = strings.TrimLeft(strings.TrimSpace(c.Library.Prefix), "/")
	if c.Library.PageSize == 0 {
		c.Library.PageSize = defaultPageSize
	}
	if c.Library.PresignExpirySeconds == 0 {
		c.Library.PresignExpirySeconds = defaultPresignSecs
	}
	if c.UsesBucket() {
		return nil
	}
	var err error
	if c.Library.Directory, err = expandPath(strings.TrimSpace(c.Library.Directory)); err != nil {
		return fmt.Errorf("library.directory: %w", err)
	}
	return nil
}

func (c *Config) normalizePrefs() error {
	c.Prefs.Backend = strings.ToLower(strings.TrimSpace(c.Prefs.Backend))
	if c.Prefs.Backend == "" {
		c.Prefs.Backend = PrefsBackendFile
	}
	c.Prefs.Table = strings.TrimSpace(c.Prefs.Table)
	c.Prefs.Profile = strings.TrimSpace(c.Prefs.Profile)
	if c.Prefs.Profile == "" {
		c.Prefs.Profile = "default"
	}
	if strings.TrimSpace(c.Prefs.Path) == "" {
		c.Prefs.Path = defaultPrefsPath
	}
	var err error
	if c.Prefs.Path, err = expandPath(strings.TrimSpace(c.Prefs.Path)); err != nil {
		return fmt.Errorf("prefs.path: %w", err)
	}
	return nil
}
