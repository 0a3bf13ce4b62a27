package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// NewLogger builds the standard JSON logger for a component: stdout,
// timestamped, tagged with the component name. The level comes from the
// DEBT_LOG_LEVEL env var (debug, info, warn, error) and defaults to info.
func NewLogger(component string) zerolog.Logger {
	return NewLoggerWithLevel(component, levelFromEnv())
}

// NewLoggerWithLevel is NewLogger with the level fixed by the caller,
// bypassing the environment. Tests use it to silence output.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func levelFromEnv() zerolog.Level {
	switch os.Getenv("DEBT_LOG_LEVEL") {
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
