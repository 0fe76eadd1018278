// Package logger builds the zerolog logger used for diagnostics.
//
// Trace output goes to stdout through the output package; log lines always
// go to stderr so they never mix with JSON or CSV results.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "warn"

// Options controls how the logger is built.
type Options struct {
	Level   string    // trace, debug, info, warn, error, disabled
	Out     io.Writer // defaults to os.Stderr
	NoColor bool
}

// ParseLevel parses a level name, treating the empty string as DefaultLevel.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = DefaultLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("cannot parse log level %q: %w", level, err)
	}
	return parsed, nil
}

// New returns a console logger at the requested level.
func New(opts Options) (zerolog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	noColor := opts.NoColor
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		noColor = true
	}

	writer := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), nil
}
