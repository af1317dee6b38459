package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// NewLogger returns a component-tagged JSON logger on stdout. The level
// comes from MENA_LOG_LEVEL (debug, info, warn, error); unset or
// unrecognized means info.
func NewLogger(component string) zerolog.Logger {
	return NewLoggerWithLevel(component, levelFromEnv())
}

// NewLoggerWithLevel is NewLogger with the level fixed by the caller,
// for tests and tools that must not read the environment.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("MENA_LOG_LEVEL")) {
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
