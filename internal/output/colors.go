package output

import (
	"github.com/fatih/color"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// Latency thresholds for RTT coloring, in milliseconds.
const (
	rttFast = 50.0
	rttSlow = 150.0
)

// ColorScheme defines colors for different output elements. A disabled
// scheme renders every element as plain text.
type ColorScheme struct {
	Hop      *color.Color
	IP       *color.Color
	Hostname *color.Color
	RTTLow   *color.Color // < 50ms
	RTTMed   *color.Color // 50-150ms
	RTTHigh  *color.Color // > 150ms
	Timeout  *color.Color
	ASN      *color.Color
	Geo      *color.Color
	Header   *color.Color
}

// NewColorScheme returns the default scheme, or a plain one when enabled is
// false.
func NewColorScheme(enabled bool) *ColorScheme {
	s := &ColorScheme{
		Hop:      color.New(color.FgCyan, color.Bold),
		IP:       color.New(color.FgWhite),
		Hostname: color.New(color.FgGreen),
		RTTLow:   color.New(color.FgGreen),
		RTTMed:   color.New(color.FgYellow),
		RTTHigh:  color.New(color.FgRed),
		Timeout:  color.New(color.FgRed, color.Bold),
		ASN:      color.New(color.FgMagenta),
		Geo:      color.New(color.FgBlue),
		Header:   color.New(color.FgWhite, color.Bold),
	}

	if !enabled {
		for _, c := range []*color.Color{
			s.Hop, s.IP, s.Hostname, s.RTTLow, s.RTTMed, s.RTTHigh,
			s.Timeout, s.ASN, s.Geo, s.Header,
		} {
			c.DisableColor()
		}
	}
	return s
}

// RTT renders text in the color for an rtt given in milliseconds.
func (s *ColorScheme) RTT(rtt float64, text string) string {
	switch {
	case rtt < rttFast:
		return s.RTTLow.Sprint(text)
	case rtt < rttSlow:
		return s.RTTMed.Sprint(text)
	default:
		return s.RTTHigh.Sprint(text)
	}
}

// State renders text in the color for a run's terminal state: green for
// success, yellow for exhaustion, red otherwise.
func (s *ColorScheme) State(state trace.State, text string) string {
	switch state {
	case trace.StateSucceeded:
		return s.RTTLow.Sprint(text)
	case trace.StateExhausted:
		return s.RTTMed.Sprint(text)
	case trace.StateAborted:
		return s.Timeout.Sprint(text)
	default:
		return text
	}
}
