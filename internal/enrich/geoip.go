package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// GeoLookup resolves the location of an address.
type GeoLookup interface {
	Lookup(ctx context.Context, ip net.IP) (*trace.GeoInfo, error)
	Close() error
}

// DefaultIPAPIURL is the ip-api.com JSON endpoint.
const DefaultIPAPIURL = "http://ip-api.com/json"

// IPAPIGeo implements GeoIP lookup using the free ip-api.com service.
// Rate limit: 45 requests per minute (free tier).
type IPAPIGeo struct {
	client  *http.Client
	baseURL string
	cache   *Cache[*trace.GeoInfo]
}

// IPAPIConfig holds configuration for ip-api.com lookups.
type IPAPIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultIPAPIConfig returns default configuration.
func DefaultIPAPIConfig() IPAPIConfig {
	return IPAPIConfig{
		BaseURL:   DefaultIPAPIURL,
		Timeout:   5 * time.Second,
		CacheSize: 1000,
		CacheTTL:  24 * time.Hour,
	}
}

// NewIPAPIGeo creates a new ip-api.com GeoIP resolver.
func NewIPAPIGeo(config IPAPIConfig) *IPAPIGeo {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultIPAPIURL
	}

	var cache *Cache[*trace.GeoInfo]
	if config.CacheSize > 0 {
		cache = NewCache[*trace.GeoInfo](config.CacheSize, config.CacheTTL)
	}

	return &IPAPIGeo{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		cache:   cache,
	}
}

type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Lookup performs a GeoIP lookup. Private addresses and failed lookups
// yield nil. Failures are cached for five minutes.
func (g *IPAPIGeo) Lookup(ctx context.Context, ip net.IP) (*trace.GeoInfo, error) {
	if ip == nil || isPrivateIP(ip) {
		return nil, nil
	}

	ipStr := ip.String()
	if g.cache != nil {
		if cached, ok := g.cache.Get(ipStr); ok {
			return cached, nil
		}
	}

	info, err := g.fetch(ctx, ipStr)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("ip", ipStr).Msg("geoip lookup failed")
		if g.cache != nil {
			g.cache.SetWithTTL(ipStr, nil, 5*time.Minute)
		}
		return nil, nil
	}

	if g.cache != nil {
		g.cache.Set(ipStr, info)
	}
	return info, nil
}

func (g *IPAPIGeo) fetch(ctx context.Context, ip string) (*trace.GeoInfo, error) {
	url := fmt.Sprintf("%s/%s?fields=status,message,country,countryCode,city,lat,lon", g.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip-api: HTTP %d", resp.StatusCode)
	}

	var apiResp ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("ip-api: %w", err)
	}
	if apiResp.Status != "success" {
		return nil, fmt.Errorf("ip-api: %s", apiResp.Message)
	}

	return &trace.GeoInfo{
		Country:     apiResp.Country,
		CountryCode: apiResp.CountryCode,
		City:        apiResp.City,
		Latitude:    apiResp.Lat,
		Longitude:   apiResp.Lon,
	}, nil
}

// Close releases resources.
func (g *IPAPIGeo) Close() error {
	if g.cache != nil {
		g.cache.Clear()
	}
	g.client.CloseIdleConnections()
	return nil
}
