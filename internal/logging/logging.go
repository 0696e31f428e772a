// Package logging configures the process-wide zerolog logger, mapping
// spec.md §6's 0..4 logging_level onto zerolog.Level and choosing between
// the teacher's terse human-facing console lines and a JSON writer for
// CI/machine consumption.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// levelFor maps the closed 0..4 logging_level range onto zerolog's levels,
// 0 being the quietest (errors only) and 4 the most verbose (trace).
func levelFor(level int) zerolog.Level {
	switch {
	case level <= 0:
		return zerolog.ErrorLevel
	case level == 1:
		return zerolog.WarnLevel
	case level == 2:
		return zerolog.InfoLevel
	case level == 3:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// New builds the root logger. format is "json" or anything else for the
// default human-facing console writer.
func New(level int, format string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(levelFor(level)).With().Timestamp().Logger()
}
