// Package logging configures the global zerolog logger for gallery-sweep
// binaries and emits the startup summary event.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogLevel names the environment variable that sets the log level.
const EnvLogLevel = "GALLERY_SWEEP_LOG_LEVEL"

// Init initializes the global logger with configuration from environment variables.
// GALLERY_SWEEP_LOG_LEVEL controls the log level: debug, info, warn, error (default: info)
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(EnvLogLevel)))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// InitFromConfig applies the level from the config file unless the
// environment variable is set, which always wins.
func InitFromConfig(level string) {
	if os.Getenv(EnvLogLevel) != "" {
		return
	}
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
