package trace

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// Resolver turns a user supplied target into a Destination.
type Resolver interface {
	Resolve(ctx context.Context, target string) (Destination, error)
}

// NetResolver resolves targets with the system resolver.
type NetResolver struct {
	IPv4 bool // Only accept IPv4 destinations
	IPv6 bool // Only accept IPv6 destinations

	// ReverseTimeout bounds the reverse lookup done for IP literals
	ReverseTimeout time.Duration

	resolver *net.Resolver
}

// NewNetResolver creates a resolver honoring the family settings of config.
func NewNetResolver(config *Config) *NetResolver {
	return &NetResolver{
		IPv4:           config.IPv4,
		IPv6:           config.IPv6,
		ReverseTimeout: 2 * time.Second,
		resolver:       net.DefaultResolver,
	}
}

// Resolve resolves a hostname or IP string. Every failure is a *ResolutionError.
func (r *NetResolver) Resolve(ctx context.Context, target string) (Destination, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Destination{}, &ResolutionError{Target: target, Err: fmt.Errorf("empty target")}
	}

	// Check if target is already an IP address
	if ip := net.ParseIP(target); ip != nil {
		if r.IPv4 && ip.To4() == nil {
			return Destination{}, &ResolutionError{Target: target, Err: fmt.Errorf("IPv6 address but IPv4 was requested")}
		}
		if r.IPv6 && ip.To4() != nil {
			return Destination{}, &ResolutionError{Target: target, Err: fmt.Errorf("IPv4 address but IPv6 was requested")}
		}
		return Destination{IP: ip, Name: r.reverseName(ctx, ip)}, nil
	}

	var network string
	switch {
	case r.IPv6:
		network = "ip6"
	case r.IPv4:
		network = "ip4"
	default:
		network = "ip"
	}

	ips, err := r.netResolver().LookupIP(ctx, network, target)
	if err != nil {
		return Destination{}, &ResolutionError{Target: target, Err: err}
	}
	if len(ips) == 0 {
		return Destination{}, &ResolutionError{Target: target, Err: fmt.Errorf("no IP addresses found")}
	}

	// Prefer IPv4 unless IPv6 is explicitly requested
	if !r.IPv6 {
		for _, ip := range ips {
			if ip.To4() != nil {
				return Destination{IP: ip, Name: target}, nil
			}
		}
	}

	return Destination{IP: ips[0], Name: target}, nil
}

// reverseName returns the PTR name of ip, or its text form when there is none.
func (r *NetResolver) reverseName(ctx context.Context, ip net.IP) string {
	timeout := r.ReverseTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names, err := r.netResolver().LookupAddr(lookupCtx, ip.String())
	if err != nil || len(names) == 0 {
		return ip.String()
	}
	return strings.TrimSuffix(names[0], ".")
}

func (r *NetResolver) netResolver() *net.Resolver {
	if r.resolver == nil {
		return net.DefaultResolver
	}
	return r.resolver
}
