// Package logger holds the process-wide zerolog logger shared by the
// server, the worker pool, and the pipeline.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the shared logger. The zero value discards everything
// until Init runs.
var Logger zerolog.Logger

// Init configures the shared logger. LOG_LEVEL selects the severity
// floor and LOG_FORMAT=json switches the console output to plain JSON
// for log collectors.
func Init(serviceName string) {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	if os.Getenv("LOG_FORMAT") == "json" {
		out = os.Stderr
	}

	Logger = log.Output(out).
		With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

func WithJobID(jobID string) *zerolog.Logger {
	l := Logger.With().Str("job_id", jobID).Logger()
	return &l
}

func WithSlide(jobID string, slideNumber int) *zerolog.Logger {
	l := Logger.With().Str("job_id", jobID).Int("slide", slideNumber).Logger()
	return &l
}

func WithCorrelationID(correlationID string) *zerolog.Logger {
	l := Logger.With().Str("correlation_id", correlationID).Logger()
	return &l
}
