// Package probe provides the ICMP echo transport used by the tracer.
package probe

import (
	"context"
	"net"
	"time"
)

// Prober sends a single probe with a given TTL.
type Prober interface {
	// Probe sends a probe packet with the given TTL and waits for the answer.
	// It returns ErrTimeout when nothing matching arrives within the
	// prober's timeout.
	Probe(ctx context.Context, dest net.IP, ttl int) (*Result, error)

	// Name returns the probe method name (e.g., "icmp", "icmp6").
	Name() string

	// Close releases any resources held by the prober.
	Close() error
}

// Result contains the result of a single probe.
type Result struct {
	// ResponseIP is the IP address that responded
	ResponseIP net.IP

	// RTT is the round-trip time
	RTT time.Duration

	// ICMPType is the ICMP message type of the answer
	ICMPType int

	// ICMPCode is the ICMP message code
	ICMPCode int

	// Reached indicates the destination itself answered
	// (Echo Reply, or Destination Unreachable sent by the destination)
	Reached bool

	// TTLExpired indicates the answer was a Time Exceeded message
	TTLExpired bool
}
