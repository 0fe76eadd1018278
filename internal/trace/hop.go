// Package trace implements the hop-by-hop probing loop of hoptrace.
package trace

import (
	"net"
	"time"
)

// Destination is the resolved identity of a trace target.
type Destination struct {
	// IP is the address probes are sent to
	IP net.IP `json:"ip"`

	// Name is the display name (hostname as given, or reverse DNS for IP literals)
	Name string `json:"name"`
}

// String returns "ip (name)".
func (d Destination) String() string {
	if d.Name == "" || d.Name == d.IP.String() {
		return d.IP.String()
	}
	return d.IP.String() + " (" + d.Name + ")"
}

// Response is the outcome of a single probe as reported by a Transport.
type Response struct {
	// TimedOut is set when no answer arrived within the transport timeout
	TimedOut bool

	// Succeeded is set when the destination itself answered
	Succeeded bool

	// Host is the address that answered (nil on timeout)
	Host net.IP

	// RTT is the round-trip time (zero on timeout)
	RTT time.Duration
}

// Outcome classifies a single probe attempt.
type Outcome int

const (
	// OutcomeTimeout means no answer was received for the probe
	OutcomeTimeout Outcome = iota
	// OutcomeResponse means a router or the destination answered
	OutcomeResponse
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeTimeout:
		return "timeout"
	case OutcomeResponse:
		return "response"
	default:
		return "unknown"
	}
}

// HopRecord is the per-probe record handed to a Sink.
type HopRecord struct {
	// Number is the hop number (TTL value of the probe)
	Number int `json:"hop"`

	// Outcome is timeout or response
	Outcome Outcome `json:"-"`

	// IP is the address of the responding router/host
	IP net.IP `json:"ip,omitempty"`

	// Hostname is the reverse DNS name (if resolved)
	Hostname string `json:"hostname,omitempty"`

	// RTT is the round-trip time; zero for timeouts
	RTT time.Duration `json:"-"`

	// ASN contains Autonomous System information
	ASN *ASNInfo `json:"asn,omitempty"`

	// Geo contains geographic information
	Geo *GeoInfo `json:"geo,omitempty"`

	// Destination is set on the hop that reached the target
	Destination bool `json:"destination"`
}

// TimedOut reports whether the probe for this hop got no answer.
func (h *HopRecord) TimedOut() bool {
	return h.Outcome == OutcomeTimeout
}

// RTTMillis returns the round-trip time in milliseconds.
func (h *HopRecord) RTTMillis() float64 {
	return float64(h.RTT.Microseconds()) / 1000.0
}

// ASNInfo contains Autonomous System Number information.
type ASNInfo struct {
	// Number is the AS number
	Number int `json:"number"`

	// Org is the organization name
	Org string `json:"org"`

	// Country is the country code (optional)
	Country string `json:"country,omitempty"`
}

// GeoInfo contains geographic location information.
type GeoInfo struct {
	// Country is the full country name
	Country string `json:"country"`

	// CountryCode is the ISO country code (e.g., "US", "TR")
	CountryCode string `json:"country_code"`

	// City is the city name (if available)
	City string `json:"city,omitempty"`

	// Latitude is the geographic latitude
	Latitude float64 `json:"latitude,omitempty"`

	// Longitude is the geographic longitude
	Longitude float64 `json:"longitude,omitempty"`
}

// Location returns "City, CC" or just the country code.
func (g *GeoInfo) Location() string {
	if g == nil {
		return ""
	}
	if g.City != "" {
		return g.City + ", " + g.CountryCode
	}
	return g.CountryCode
}

// Result contains the complete result of a trace run.
type Result struct {
	// Target is the original target (hostname or IP)
	Target string `json:"target"`

	// Destination is the resolved target
	Destination Destination `json:"destination"`

	// MaxHops and MaxConsecutiveTimeouts are the limits the run used
	MaxHops                int `json:"max_hops"`
	MaxConsecutiveTimeouts int `json:"max_consecutive_timeouts"`

	// Timestamp is when the run started
	Timestamp time.Time `json:"timestamp"`

	// ProbeMethod is the transport name (icmp, icmp6)
	ProbeMethod string `json:"probe_method"`

	// Hops contains one record per probe, in TTL order
	Hops []HopRecord `json:"hops"`

	// State is the terminal state of the run
	State State `json:"state"`

	// Summary contains aggregate statistics
	Summary Summary `json:"summary"`
}

// Completed reports whether the destination answered.
func (r *Result) Completed() bool {
	return r.State == StateSucceeded
}

// Summary contains aggregate statistics for a trace.
type Summary struct {
	// TotalHops is the number of probes sent
	TotalHops int `json:"total_hops"`

	// Responding is the number of hops that answered
	Responding int `json:"responding"`

	// Timeouts is the number of hops that did not answer
	Timeouts int `json:"timeouts"`

	// TotalTimeMs is the RTT of the last responding hop
	TotalTimeMs float64 `json:"total_time_ms"`
}

// summarize calculates aggregate statistics for the hops.
func summarize(hops []HopRecord) Summary {
	summary := Summary{TotalHops: len(hops)}

	for _, hop := range hops {
		if hop.TimedOut() {
			summary.Timeouts++
		} else {
			summary.Responding++
		}
	}

	for i := len(hops) - 1; i >= 0; i-- {
		if !hops[i].TimedOut() {
			summary.TotalTimeMs = hops[i].RTTMillis()
			break
		}
	}

	return summary
}
