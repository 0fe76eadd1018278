package output

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether out is a terminal.
func IsTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorsFor returns config with colors enabled only when out is a terminal
// and noColor is not set.
func ColorsFor(out io.Writer, config Config, noColor bool) Config {
	config.Colors = !noColor && IsTerminal(out)
	return config
}
