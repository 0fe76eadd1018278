// Package enrich decorates responding hops with reverse DNS, ASN and
// geolocation data.
package enrich

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HostnameLookup resolves an address to a host name.
type HostnameLookup interface {
	Lookup(ctx context.Context, ip net.IP) (string, error)
	Close() error
}

// RDNSResolver performs reverse DNS lookups.
type RDNSResolver struct {
	timeout    time.Duration
	cache      *Cache[string]
	lookupAddr func(ctx context.Context, addr string) ([]string, error)
}

// RDNSConfig holds configuration for the rDNS resolver.
type RDNSConfig struct {
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultRDNSConfig returns default rDNS configuration.
func DefaultRDNSConfig() RDNSConfig {
	return RDNSConfig{
		Timeout:   2 * time.Second,
		CacheSize: 1000,
		CacheTTL:  5 * time.Minute,
	}
}

// NewRDNSResolver creates a new reverse DNS resolver.
func NewRDNSResolver(config RDNSConfig) *RDNSResolver {
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Second
	}

	var cache *Cache[string]
	if config.CacheSize > 0 {
		cache = NewCache[string](config.CacheSize, config.CacheTTL)
	}

	return &RDNSResolver{
		timeout:    config.Timeout,
		cache:      cache,
		lookupAddr: net.DefaultResolver.LookupAddr,
	}
}

// Lookup returns the PTR name of ip without the trailing dot. Lookup
// failures are common for routers and yield an empty name, not an error.
func (r *RDNSResolver) Lookup(ctx context.Context, ip net.IP) (string, error) {
	if ip == nil {
		return "", nil
	}

	ipStr := ip.String()
	if r.cache != nil {
		if cached, ok := r.cache.Get(ipStr); ok {
			return cached, nil
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	names, err := r.lookupAddr(lookupCtx, ipStr)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("ip", ipStr).Msg("reverse lookup failed")
		if r.cache != nil {
			r.cache.Set(ipStr, "")
		}
		return "", nil
	}

	hostname := ""
	if len(names) > 0 {
		hostname = strings.TrimSuffix(names[0], ".")
	}

	if r.cache != nil {
		r.cache.Set(ipStr, hostname)
	}
	return hostname, nil
}

// Close releases resources held by the resolver.
func (r *RDNSResolver) Close() error {
	if r.cache != nil {
		r.cache.Clear()
	}
	return nil
}
