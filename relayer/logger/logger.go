// Package logger builds the zerolog logger shared by every component.
package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

const (
	serviceName = "pdurable"

	// sampleEvery keeps one in N debug and info events when sampling is on.
	sampleEvery = 5
)

// New creates a logger writing to out in "json" or console format at the
// given zerolog level. With sampling on, debug and info events are thinned
// while warnings and errors, such as a record retained by a drain, are
// always written.
func New(out io.Writer, logLevel int, logFormat string, logSampler bool) zerolog.Logger {
	writer := out
	if logFormat != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).
		Level(zerolog.Level(logLevel)).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	if logSampler {
		logger = logger.Sample(zerolog.LevelSampler{
			TraceSampler: &zerolog.BasicSampler{N: sampleEvery},
			DebugSampler: &zerolog.BasicSampler{N: sampleEvery},
			InfoSampler:  &zerolog.BasicSampler{N: sampleEvery},
		})
	}
	return logger
}
