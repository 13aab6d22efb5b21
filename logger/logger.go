// Package logger wraps zerolog with printf-style helpers so callers can
// write logger.Infof("...", args) the way the rest of the codebase does.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	Init("development")
}

// Init (re)configures the package logger. env = "production" emits
// structured JSON to stdout; anything else uses a human console writer.
func Init(env string) {
	var w io.Writer = os.Stdout
	if env != "production" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	log = zerolog.New(w).With().Timestamp().Logger()
}

func Debugf(format string, args ...any) { log.Debug().Msgf(format, args...) }
func Infof(format string, args ...any)  { log.Info().Msgf(format, args...) }
func Warnf(format string, args ...any)  { log.Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { log.Error().Msgf(format, args...) }

// WithField returns an event builder pre-populated with a single field,
// for the handful of call sites that want structured rather than
// formatted output (e.g. risk-state transitions).
func WithField(key string, value any) *zerolog.Event {
	return log.Info().Interface(key, value)
}
