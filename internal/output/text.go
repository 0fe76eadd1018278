package output

import (
	"fmt"
	"strings"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// TextFormatter formats runs in classic traceroute style. Its per-event
// methods are what StreamSink writes while the run is in progress.
type TextFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(config Config) *TextFormatter {
	return &TextFormatter{
		config: config,
		colors: NewColorScheme(config.Colors),
	}
}

// Format formats a whole run as text: header, one line per hop, final message.
func (f *TextFormatter) Format(result *trace.Result) ([]byte, error) {
	var b strings.Builder

	b.WriteString(f.FormatHeader(result.Destination, result.MaxHops))
	for i := range result.Hops {
		b.WriteString(f.FormatHop(&result.Hops[i]))
	}
	b.WriteString(f.FormatOutcome(result))

	return []byte(b.String()), nil
}

// FormatHeader returns the line printed when a run starts.
func (f *TextFormatter) FormatHeader(dest trace.Destination, maxHops int) string {
	return f.colors.Header.Sprintf("hoptrace to %s, %d hops max", dest, maxHops) + "\n\n"
}

// FormatHop formats a single hop line:
//
//	  3  host.example (192.0.2.1)  12.345 ms  [AS64500 Example]  City, CC
//	  4  *
func (f *TextFormatter) FormatHop(hop *trace.HopRecord) string {
	fields := []string{f.colors.Hop.Sprintf("%3d", hop.Number)}

	if hop.TimedOut() {
		fields = append(fields, f.colors.Timeout.Sprint("*"))
		return strings.Join(fields, "  ") + "\n"
	}

	addr := f.colors.IP.Sprint(hop.IP.String())
	if hop.Hostname != "" && !f.config.NoHostname {
		addr = fmt.Sprintf("%s (%s)", f.colors.Hostname.Sprint(hop.Hostname), addr)
	}
	fields = append(fields, addr, f.colors.RTT(hop.RTTMillis(), fmt.Sprintf("%.3f ms", hop.RTTMillis())))

	if hop.ASN != nil && !f.config.NoASN {
		fields = append(fields, f.colors.ASN.Sprintf("[AS%d %s]", hop.ASN.Number, truncateString(hop.ASN.Org, 20)))
	}
	if loc := hop.Geo.Location(); loc != "" && !f.config.NoGeoIP {
		fields = append(fields, f.colors.Geo.Sprint(loc))
	}

	return strings.Join(fields, "  ") + "\n"
}

// FormatOutcome returns the final message for the state the run ended in.
// Runs still in the probing state were interrupted.
func (f *TextFormatter) FormatOutcome(result *trace.Result) string {
	var msg string

	switch result.State {
	case trace.StateSucceeded:
		msg = fmt.Sprintf("Destination reached in %d hops, %.2f ms",
			result.Summary.TotalHops, result.Summary.TotalTimeMs)
	case trace.StateAborted:
		msg = fmt.Sprintf("Aborted after %d consecutive timeouts: destination is likely unreachable or filtered",
			result.MaxConsecutiveTimeouts)
	case trace.StateExhausted:
		msg = fmt.Sprintf("Max hops (%d) reached without reaching the destination", result.MaxHops)
	default:
		msg = fmt.Sprintf("Trace interrupted after %d hops", result.Summary.TotalHops)
	}

	return "\n" + f.colors.State(result.State, msg) + "\n"
}

// truncateString shortens s to at most maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
