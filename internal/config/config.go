// Package config loads gallery-sweep settings from a TOML file, applies
// environment overrides, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Library selects and configures the media library backend. A non-empty
// Bucket selects S3; otherwise Directory is used.
type Library struct {
	Directory            string `toml:"directory"`
	MaxDepth             int    `toml:"max_depth"`
	PageSize             int    `toml:"page_size"`
	Bucket               string `toml:"bucket"`
	Prefix               string `toml:"prefix"`
	PresignExpirySeconds int    `toml:"presign_expiry_seconds"`
}

// Prefs configures where the onboarding preference is kept.
type Prefs struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	Table   string `toml:"table"`
	Profile string `toml:"profile"`
}

// Web configures gallery-web.
type Web struct {
	Bind string `toml:"bind"`
}

// Logging configures the log level.
type Logging struct {
	Level string `toml:"level"`
}

// Config is the full configuration.
type Config struct {
	Library Library `toml:"library"`
	Prefs   Prefs   `toml:"prefs"`
	Web     Web     `toml:"web"`
	Logging Logging `toml:"logging"`
}

// Prefs backends.
const (
	PrefsBackendFile     = "file"
	PrefsBackendDynamoDB = "dynamodb"
)

// Environment overrides.
const (
	EnvDirectory  = "GALLERY_SWEEP_DIRECTORY"
	EnvBucket     = "GALLERY_SWEEP_BUCKET"
	EnvPrefsTable = "GALLERY_SWEEP_PREFS_TABLE"
)

const (
	defaultConfigPath  = "~/.config/gallery-sweep/config.toml"
	projectConfigFile  = "gallery-sweep.toml"
	defaultPrefsPath   = "~/.config/gallery-sweep/prefs.toml"
	defaultPageSize    = 20
	defaultMaxDepth    = 0
	defaultPresignSecs = 3600
	defaultWebBind     = "127.0.0.1:8471"
	defaultLogLevel    = "info"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Library: Library{
			Directory:            ".",
			MaxDepth:             defaultMaxDepth,
			PageSize:             defaultPageSize,
			PresignExpirySeconds: defaultPresignSecs,
		},
		Prefs: Prefs{
			Backend: PrefsBackendFile,
			Path:    defaultPrefsPath,
			Profile: "default",
		},
		Web:     Web{Bind: defaultWebBind},
		Logging: Logging{Level: defaultLogLevel},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file
// is not an error; defaults and environment overrides still apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// UsesBucket reports whether the S3 backend is selected.
func (c *Config) UsesBucket() bool {
	return strings.TrimSpace(c.Library.Bucket) != ""
}

// PresignExpiry returns the presigned URL lifetime.
func (c *Config) PresignExpiry() time.Duration {
	return time.Duration(c.Library.PresignExpirySeconds) * time.Second
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDirectory)); v != "" {
		c.Library.Directory = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBucket)); v != "" {
		c.Library.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPrefsTable)); v != "" {
		c.Prefs.Table = v
		c.Prefs.Backend = PrefsBackendDynamoDB
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigFile)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for flag values.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
