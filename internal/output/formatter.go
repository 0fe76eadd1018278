// Package output renders hoptrace runs for the terminal and for machines.
package output

import (
	"github.com/hoptrace/hoptrace/internal/trace"
)

// Format represents the output format type.
type Format int

const (
	// FormatText is the classic traceroute-style output, streamed per hop
	FormatText Format = iota
	// FormatVerbose is the detailed table output
	FormatVerbose
	// FormatJSON is JSON output
	FormatJSON
	// FormatCSV is CSV output
	FormatCSV
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatVerbose:
		return "verbose"
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	default:
		return "unknown"
	}
}

// Streams reports whether the format is written hop by hop as the run
// progresses rather than once the run is over.
func (f Format) Streams() bool {
	return f == FormatText
}

// Formatter renders a finished (or interrupted) run.
type Formatter interface {
	// Format converts a Result to formatted output bytes.
	Format(result *trace.Result) ([]byte, error)
}

// Config holds configuration for formatters.
type Config struct {
	// Colors enables ANSI color output
	Colors bool

	// NoHostname disables hostname display
	NoHostname bool

	// NoASN disables ASN information display
	NoASN bool

	// NoGeoIP disables GeoIP information display
	NoGeoIP bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Colors: true}
}

// NewFormatter creates a formatter based on the specified format.
func NewFormatter(format Format, config Config) Formatter {
	switch format {
	case FormatVerbose:
		return NewTableFormatter(config)
	case FormatJSON:
		return NewJSONFormatter(config)
	case FormatCSV:
		return NewCSVFormatter(config)
	default:
		return NewTextFormatter(config)
	}
}
