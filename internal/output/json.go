package output

import (
	"encoding/json"
	"math"
	"time"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// JSONFormatter formats runs as JSON.
type JSONFormatter struct {
	config Config
	pretty bool
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(config Config) *JSONFormatter {
	return &JSONFormatter{
		config: config,
		pretty: true,
	}
}

// SetPretty enables or disables pretty-printing.
func (f *JSONFormatter) SetPretty(pretty bool) {
	f.pretty = pretty
}

// Format formats the run as JSON.
func (f *JSONFormatter) Format(result *trace.Result) ([]byte, error) {
	output := f.toJSONOutput(result)

	var (
		data []byte
		err  error
	)
	if f.pretty {
		data, err = json.MarshalIndent(output, "", "  ")
	} else {
		data, err = json.Marshal(output)
	}
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// JSONOutput is the JSON-serializable representation of a run.
type JSONOutput struct {
	Target                 string      `json:"target"`
	DestinationIP          string      `json:"destination_ip"`
	DestinationName        string      `json:"destination_name,omitempty"`
	Timestamp              string      `json:"timestamp"`
	ProbeMethod            string      `json:"probe_method"`
	MaxHops                int         `json:"max_hops"`
	MaxConsecutiveTimeouts int         `json:"max_consecutive_timeouts"`
	State                  string      `json:"state"`
	Hops                   []JSONHop   `json:"hops"`
	Summary                JSONSummary `json:"summary"`
}

// JSONHop represents a single hop in JSON format.
type JSONHop struct {
	Hop         int            `json:"hop"`
	Outcome     string         `json:"outcome"`
	IP          string         `json:"ip,omitempty"`
	Hostname    string         `json:"hostname,omitempty"`
	RTT         *float64       `json:"rtt_ms,omitempty"`
	ASN         *trace.ASNInfo `json:"asn,omitempty"`
	Geo         *trace.GeoInfo `json:"geo,omitempty"`
	Destination bool           `json:"destination,omitempty"`
}

// JSONSummary represents the run summary in JSON format.
type JSONSummary struct {
	TotalHops   int     `json:"total_hops"`
	Responding  int     `json:"responding"`
	Timeouts    int     `json:"timeouts"`
	TotalTimeMs float64 `json:"total_time_ms"`
}

func (f *JSONFormatter) toJSONOutput(result *trace.Result) *JSONOutput {
	output := &JSONOutput{
		Target:                 result.Target,
		DestinationName:        result.Destination.Name,
		Timestamp:              result.Timestamp.Format(time.RFC3339),
		ProbeMethod:            result.ProbeMethod,
		MaxHops:                result.MaxHops,
		MaxConsecutiveTimeouts: result.MaxConsecutiveTimeouts,
		State:                  result.State.String(),
		Hops:                   make([]JSONHop, len(result.Hops)),
		Summary: JSONSummary{
			TotalHops:   result.Summary.TotalHops,
			Responding:  result.Summary.Responding,
			Timeouts:    result.Summary.Timeouts,
			TotalTimeMs: roundFloat(result.Summary.TotalTimeMs, 3),
		},
	}
	if result.Destination.IP != nil {
		output.DestinationIP = result.Destination.IP.String()
	}

	for i := range result.Hops {
		output.Hops[i] = f.toJSONHop(&result.Hops[i])
	}

	return output
}

func (f *JSONFormatter) toJSONHop(hop *trace.HopRecord) JSONHop {
	jh := JSONHop{
		Hop:         hop.Number,
		Outcome:     hop.Outcome.String(),
		Destination: hop.Destination,
	}
	if hop.TimedOut() {
		return jh
	}

	rtt := roundFloat(hop.RTTMillis(), 3)
	jh.RTT = &rtt
	jh.IP = hop.IP.String()

	if !f.config.NoHostname {
		jh.Hostname = hop.Hostname
	}
	if !f.config.NoASN {
		jh.ASN = hop.ASN
	}
	if !f.config.NoGeoIP {
		jh.Geo = hop.Geo
	}

	return jh
}

func roundFloat(val float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(val*p) / p
}
