package enrich

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// ASNLookup resolves the autonomous system an address belongs to.
type ASNLookup interface {
	Lookup(ctx context.Context, ip net.IP) (*trace.ASNInfo, error)
	Close() error
}

// TeamCymruASN looks up ASNs through Team Cymru's DNS interface.
// See https://www.team-cymru.com/ip-asn-mapping
type TeamCymruASN struct {
	timeout   time.Duration
	cache     *Cache[*trace.ASNInfo]
	lookupTXT func(ctx context.Context, name string) ([]string, error)
}

// TeamCymruConfig holds configuration for Team Cymru ASN lookups.
type TeamCymruConfig struct {
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultTeamCymruConfig returns default configuration.
func DefaultTeamCymruConfig() TeamCymruConfig {
	return TeamCymruConfig{
		Timeout:   3 * time.Second,
		CacheSize: 1000,
		CacheTTL:  time.Hour,
	}
}

// NewTeamCymruASN creates a new Team Cymru ASN resolver.
func NewTeamCymruASN(config TeamCymruConfig) *TeamCymruASN {
	if config.Timeout == 0 {
		config.Timeout = 3 * time.Second
	}

	var cache *Cache[*trace.ASNInfo]
	if config.CacheSize > 0 {
		cache = NewCache[*trace.ASNInfo](config.CacheSize, config.CacheTTL)
	}

	return &TeamCymruASN{
		timeout:   config.Timeout,
		cache:     cache,
		lookupTXT: net.DefaultResolver.LookupTXT,
	}
}

// Lookup queries <reversed-ip>.origin.asn.cymru.com (origin6 for IPv6) and
// then AS<n>.asn.cymru.com for the organization name. Private addresses and
// failed lookups yield nil.
func (t *TeamCymruASN) Lookup(ctx context.Context, ip net.IP) (*trace.ASNInfo, error) {
	if ip == nil || isPrivateIP(ip) {
		return nil, nil
	}

	ipStr := ip.String()
	if t.cache != nil {
		if cached, ok := t.cache.Get(ipStr); ok {
			return cached, nil
		}
	}

	info := t.lookupOrigin(ctx, originQuery(ip))
	if info != nil && info.Number > 0 {
		info.Org = t.lookupASName(ctx, info.Number)
	}

	if t.cache != nil {
		t.cache.Set(ipStr, info)
	}
	return info, nil
}

func (t *TeamCymruASN) lookupOrigin(ctx context.Context, query string) *trace.ASNInfo {
	lookupCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	records, err := t.lookupTXT(lookupCtx, query)
	if err != nil || len(records) == 0 {
		zerolog.Ctx(ctx).Debug().Err(err).Str("query", query).Msg("asn lookup failed")
		return nil
	}
	return parseTeamCymruResponse(records[0])
}

func (t *TeamCymruASN) lookupASName(ctx context.Context, asn int) string {
	lookupCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	records, err := t.lookupTXT(lookupCtx, fmt.Sprintf("AS%d.asn.cymru.com", asn))
	if err != nil || len(records) == 0 {
		return ""
	}

	// "ASN | Country | Registry | Date | Name"
	parts := strings.Split(records[0], "|")
	if len(parts) >= 5 {
		return strings.TrimSpace(parts[4])
	}
	return ""
}

// Close releases resources.
func (t *TeamCymruASN) Close() error {
	if t.cache != nil {
		t.cache.Clear()
	}
	return nil
}

func originQuery(ip net.IP) string {
	if ip4 := ip.To4(); ip4 != nil {
		return fmt.Sprintf("%d.%d.%d.%d.origin.asn.cymru.com", ip4[3], ip4[2], ip4[1], ip4[0])
	}
	return reverseIPv6Nibbles(ip) + ".origin6.asn.cymru.com"
}

// parseTeamCymruResponse parses "ASN | IP/Prefix | Country | Registry | Date".
// Multi-origin prefixes list several ASNs separated by spaces; the first wins.
func parseTeamCymruResponse(txt string) *trace.ASNInfo {
	parts := strings.Split(txt, "|")
	if len(parts) < 3 {
		return nil
	}

	fields := strings.Fields(parts[0])
	if len(fields) == 0 {
		return nil
	}
	asn, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil
	}

	return &trace.ASNInfo{
		Number:  asn,
		Country: strings.TrimSpace(parts[2]),
	}
}

// reverseIPv6Nibbles reverses the nibbles of an IPv6 address for DNS lookup.
func reverseIPv6Nibbles(ip net.IP) string {
	ip16 := ip.To16()
	if ip16 == nil {
		return ""
	}

	const hexDigits = "0123456789abcdef"
	nibbles := make([]string, 0, 32)
	for i := len(ip16) - 1; i >= 0; i-- {
		b := ip16[i]
		nibbles = append(nibbles, string(hexDigits[b&0x0f]), string(hexDigits[b>>4]))
	}
	return strings.Join(nibbles, ".")
}

// isPrivateIP reports whether ip is loopback, private or link-local. Such
// addresses have no public ASN or location.
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
