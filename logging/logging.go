// Package logging builds the zerolog logger shared by every component.
//
// Libraries take a zerolog.Logger and default to zerolog.Nop(); only the
// command wires a real writer, so user-facing stdout stays clean.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	Level  string // trace, debug, info, warn, error; unknown values fall back to warn
	Pretty bool   // human-readable console output
	Writer io.Writer
}

// New creates a logger writing to opts.Writer, or stderr when nil.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
}

// ParseLevel parses a level name, defaulting to warn.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.WarnLevel
	}
	return level
}
