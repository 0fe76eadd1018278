package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// CSVFormatter formats runs as CSV, one row per probe.
type CSVFormatter struct {
	config  Config
	columns []string
}

var defaultCSVColumns = []string{
	"hop", "outcome", "ip", "hostname", "asn", "org", "country", "city",
	"rtt_ms", "destination",
}

// NewCSVFormatter creates a new CSV formatter.
func NewCSVFormatter(config Config) *CSVFormatter {
	return &CSVFormatter{
		config:  config,
		columns: defaultCSVColumns,
	}
}

// Format formats the run as CSV.
func (f *CSVFormatter) Format(result *trace.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(f.columns); err != nil {
		return nil, err
	}

	for i := range result.Hops {
		if err := writer.Write(f.formatRow(&result.Hops[i])); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (f *CSVFormatter) formatRow(hop *trace.HopRecord) []string {
	row := make([]string, len(f.columns))
	for i, col := range f.columns {
		row[i] = f.getValue(hop, col)
	}
	return row
}

func (f *CSVFormatter) getValue(hop *trace.HopRecord, column string) string {
	switch column {
	case "hop":
		return strconv.Itoa(hop.Number)

	case "outcome":
		return hop.Outcome.String()

	case "ip":
		if hop.IP != nil {
			return hop.IP.String()
		}
		return "*"

	case "hostname":
		if f.config.NoHostname {
			return ""
		}
		return hop.Hostname

	case "asn":
		if hop.ASN != nil && !f.config.NoASN {
			return strconv.Itoa(hop.ASN.Number)
		}
		return ""

	case "org":
		if hop.ASN != nil && !f.config.NoASN {
			return hop.ASN.Org
		}
		return ""

	case "country":
		if hop.Geo != nil && !f.config.NoGeoIP {
			return hop.Geo.CountryCode
		}
		return ""

	case "city":
		if hop.Geo != nil && !f.config.NoGeoIP {
			return hop.Geo.City
		}
		return ""

	case "rtt_ms":
		if hop.TimedOut() {
			return ""
		}
		return fmt.Sprintf("%.3f", hop.RTTMillis())

	case "destination":
		return strconv.FormatBool(hop.Destination)

	default:
		return ""
	}
}
