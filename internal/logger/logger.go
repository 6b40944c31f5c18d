package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Init builds the process logger. Level comes from config; format "console"
// gets the human writer, anything else stays structured JSON.
func Init(serviceName, level, format string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(logLevel).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// WithJobID returns a child logger scoped to one print job.
func WithJobID(log zerolog.Logger, jobID string) zerolog.Logger {
	return log.With().Str("job_id", jobID).Logger()
}
