package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// TableFormatter formats runs as a detailed table.
type TableFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(config Config) *TableFormatter {
	return &TableFormatter{
		config: config,
		colors: NewColorScheme(config.Colors),
	}
}

// Format formats the run as a detailed table.
func (f *TableFormatter) Format(result *trace.Result) ([]byte, error) {
	var buf bytes.Buffer

	f.writeHeader(&buf, result)

	table := tablewriter.NewWriter(&buf)
	f.configureTable(table)
	table.SetHeader(f.getHeaders())

	for i := range result.Hops {
		table.Append(f.formatHopRow(&result.Hops[i]))
	}

	table.Render()

	f.writeSummary(&buf, result)

	return buf.Bytes(), nil
}

func (f *TableFormatter) writeHeader(buf *bytes.Buffer, result *trace.Result) {
	header := fmt.Sprintf("Target: %s (%s)\n", result.Target, result.Destination)
	header += fmt.Sprintf("Method: %s | Max hops: %d | Timeout limit: %d | Time: %s\n\n",
		strings.ToUpper(result.ProbeMethod),
		result.MaxHops,
		result.MaxConsecutiveTimeouts,
		result.Timestamp.Format("2006-01-02 15:04:05"))

	buf.WriteString(f.colors.Header.Sprint(header))
}

func (f *TableFormatter) configureTable(table *tablewriter.Table) {
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("│")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding(" ")
}

func (f *TableFormatter) getHeaders() []string {
	headers := []string{"Hop", "IP Address", "Hostname"}

	if !f.config.NoASN {
		headers = append(headers, "ASN", "Organization")
	}
	if !f.config.NoGeoIP {
		headers = append(headers, "Location")
	}

	return append(headers, "RTT")
}

func (f *TableFormatter) formatHopRow(hop *trace.HopRecord) []string {
	row := []string{fmt.Sprintf("%d", hop.Number)}

	if hop.TimedOut() {
		row = append(row, "*", "-")
	} else {
		ip := hop.IP.String()
		if hop.Destination {
			ip += " ✓"
		}
		row = append(row, ip, truncateString(hop.Hostname, 25))
	}

	if !f.config.NoASN {
		if hop.ASN != nil {
			row = append(row,
				fmt.Sprintf("%d", hop.ASN.Number),
				truncateString(hop.ASN.Org, 20))
		} else {
			row = append(row, "-", "-")
		}
	}

	if !f.config.NoGeoIP {
		if loc := hop.Geo.Location(); loc != "" {
			row = append(row, truncateString(loc, 20))
		} else {
			row = append(row, "-")
		}
	}

	if hop.TimedOut() {
		return append(row, "timeout")
	}
	return append(row, f.colors.RTT(hop.RTTMillis(), fmt.Sprintf("%.2f ms", hop.RTTMillis())))
}

func (f *TableFormatter) writeSummary(buf *bytes.Buffer, result *trace.Result) {
	buf.WriteString("\nSummary:\n")

	fmt.Fprintf(buf, "  Total Hops:    %d\n", result.Summary.TotalHops)
	fmt.Fprintf(buf, "  Responding:    %d\n", result.Summary.Responding)
	fmt.Fprintf(buf, "  Timeouts:      %d\n", result.Summary.Timeouts)
	fmt.Fprintf(buf, "  Total Time:    %.2f ms\n", result.Summary.TotalTimeMs)

	fmt.Fprintf(buf, "  Status:        %s\n", f.colors.State(result.State, statusLabel(result.State)))
}

// statusLabel returns the human readable name of a run state.
func statusLabel(state trace.State) string {
	switch state {
	case trace.StateSucceeded:
		return "Destination reached"
	case trace.StateAborted:
		return "Aborted (consecutive timeouts)"
	case trace.StateExhausted:
		return "Max hops reached"
	default:
		return "Interrupted"
	}
}
