// Package logger builds the service's zerolog root logger. Components
// derive their own loggers from it with With().Str(...) context fields.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn or error; anything else means info
	Pretty bool   // console output for dev runs, JSON otherwise
}

// New creates the root logger. The level is attached to the logger itself
// rather than the zerolog global, so tests can run loggers at different
// levels side by side.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// SetGlobalLogger points zerolog's package-level logger at l so stray
// log.Logger callers share the service output.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
