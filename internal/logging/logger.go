package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
// CAPTION_LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// CAPTION_LOG_FORMAT=json disables the console writer (used by the Lambda build,
// where CloudWatch wants one JSON object per line).
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv("CAPTION_LOG_LEVEL")))

	if os.Getenv("CAPTION_LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
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
