package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog logger writing to w. When verbose is set the
// level drops to debug whatever the configured level.
func (l LoggingConfig) NewLogger(w io.Writer, verbose bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		level = zerolog.WarnLevel
	}
	if verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	if l.Format == "json" {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
