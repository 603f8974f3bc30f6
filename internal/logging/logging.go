// Package logging builds the process logger. Stdout carries the MCP protocol, so
// everything here writes to stderr (or the writer given in tests).
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger for service writing to w. Unknown levels fall back to info.
func New(w io.Writer, service, level, format string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if !strings.EqualFold(strings.TrimSpace(format), "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service).Logger()
}
