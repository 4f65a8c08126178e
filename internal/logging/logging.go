// Package logging builds the zerolog logger shared by hostconf components.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the log encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options configures New.
type Options struct {
	// Level is a zerolog level name. Empty means "info".
	Level string
	// Format is "console" or "json". Empty means console.
	Format Format
	// Out defaults to stderr.
	Out io.Writer
	// NoColor disables ANSI colours in console output.
	NoColor bool
}

// New returns a logger for the given options.
func New(opts Options) (zerolog.Logger, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}

	switch opts.Format {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q: want console or json", opts.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "hostconf").Logger(), nil
}
