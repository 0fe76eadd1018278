package trace

import (
	"time"
)

// Defaults mirror the classic traceroute behavior.
const (
	DefaultMaxHops                = 30
	DefaultMaxConsecutiveTimeouts = 5
	DefaultTimeout                = 3 * time.Second
)

// Config holds the configuration for a trace operation.
type Config struct {
	// Probe settings
	MaxHops                int           // TTL ceiling; probing stops before TTL reaches it (default: 30)
	MaxConsecutiveTimeouts int           // Abort after this many timeouts in a row (default: 5)
	Timeout                time.Duration // Per-probe timeout applied by the transport (default: 3s)

	// Network settings
	IPv4 bool // Force IPv4
	IPv6 bool // Force IPv6

	// Enrichment settings
	EnableEnrichment bool // Enable any enrichment
	EnableRDNS       bool // Enable reverse DNS lookup
	EnableASN        bool // Enable ASN lookup
	EnableGeoIP      bool // Enable GeoIP lookup
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxHops:                DefaultMaxHops,
		MaxConsecutiveTimeouts: DefaultMaxConsecutiveTimeouts,
		Timeout:                DefaultTimeout,
		EnableEnrichment:       true,
		EnableRDNS:             true,
		EnableASN:              true,
		EnableGeoIP:            true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxHops < 1 || c.MaxHops > 255 {
		return ErrInvalidMaxHops
	}
	if c.MaxConsecutiveTimeouts < 1 || c.MaxConsecutiveTimeouts > 255 {
		return ErrInvalidMaxTimeouts
	}
	if c.Timeout < 100*time.Millisecond {
		return ErrInvalidTimeout
	}
	if c.IPv4 && c.IPv6 {
		return ErrConflictingFamily
	}
	return nil
}
