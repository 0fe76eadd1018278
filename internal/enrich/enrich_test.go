package enrich

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoptrace/hoptrace/internal/trace"
)

func TestCache(t *testing.T) {
	cache := NewCache[string](3, time.Minute)

	cache.Set("key1", "value1")
	val, ok := cache.Get("key1")
	if !ok || val != "value1" {
		t.Errorf("Get(key1) = %v, %v; want value1, true", val, ok)
	}

	if _, ok := cache.Get("missing"); ok {
		t.Error("Get(missing) should return false")
	}

	cache.Set("key2", "value2")
	cache.Set("key3", "value3")
	cache.Get("key1")           // key2 is now least recently used
	cache.Set("key4", "value4") // evicts key2

	if cache.Size() != 3 {
		t.Errorf("Size() = %d, want 3", cache.Size())
	}
	if _, ok := cache.Get("key2"); ok {
		t.Error("key2 should have been evicted")
	}
	if _, ok := cache.Get("key1"); !ok {
		t.Error("key1 was used recently and should survive eviction")
	}

	cache.Set("key1", "updated")
	if val, _ := cache.Get("key1"); val != "updated" || cache.Size() != 3 {
		t.Errorf("Set() on existing key: value %q, size %d", val, cache.Size())
	}

	cache.Delete("key1")
	if _, ok := cache.Get("key1"); ok {
		t.Error("Delete() did not remove key1")
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Size() after Clear() = %d, want 0", cache.Size())
	}
}

func TestCacheExpiration(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCache[int](10, time.Minute)
	cache.now = func() time.Time { return now }

	cache.Set("a", 1)
	cache.SetWithTTL("b", 2, time.Hour)

	now = now.Add(2 * time.Minute)

	if _, ok := cache.Get("a"); ok {
		t.Error("Get(a) should miss after expiration")
	}
	if v, ok := cache.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %v, %v; want 2, true", v, ok)
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d, want 1", cache.Size())
	}
}

func TestRDNSResolver(t *testing.T) {
	var calls int32
	r := NewRDNSResolver(DefaultRDNSConfig())
	r.lookupAddr = func(_ context.Context, addr string) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		if addr == "192.0.2.1" {
			return []string{"router1.example.net."}, nil
		}
		return nil, errors.New("no PTR record")
	}
	defer r.Close()

	ctx := context.Background()

	name, err := r.Lookup(ctx, net.ParseIP("192.0.2.1"))
	if err != nil || name != "router1.example.net" {
		t.Errorf("Lookup() = %q, %v; want router1.example.net", name, err)
	}

	name, err = r.Lookup(ctx, net.ParseIP("192.0.2.2"))
	if err != nil || name != "" {
		t.Errorf("Lookup() without PTR = %q, %v; want empty name and no error", name, err)
	}

	r.Lookup(ctx, net.ParseIP("192.0.2.1"))
	r.Lookup(ctx, net.ParseIP("192.0.2.2"))
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("resolver called %d times, want 2 (cached results reused)", got)
	}

	if name, _ := r.Lookup(ctx, nil); name != "" {
		t.Errorf("Lookup(nil) = %q", name)
	}
}

func TestTeamCymruASN(t *testing.T) {
	var queries []string
	asn := NewTeamCymruASN(DefaultTeamCymruConfig())
	asn.lookupTXT = func(_ context.Context, name string) ([]string, error) {
		queries = append(queries, name)
		switch name {
		case "8.8.8.8.origin.asn.cymru.com":
			return []string{"15169 | 8.8.8.0/24 | US | arin | 1992-12-01"}, nil
		case "AS15169.asn.cymru.com":
			return []string{"15169 | US | arin | 2000-03-30 | GOOGLE, US"}, nil
		}
		return nil, errors.New("NXDOMAIN")
	}
	defer asn.Close()

	info, err := asn.Lookup(context.Background(), net.ParseIP("8.8.8.8"))
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if info == nil || info.Number != 15169 || info.Org != "GOOGLE, US" || info.Country != "US" {
		t.Errorf("Lookup() = %+v", info)
	}

	if info, _ := asn.Lookup(context.Background(), net.ParseIP("198.51.100.1")); info != nil {
		t.Errorf("Lookup() for unknown prefix = %+v, want nil", info)
	}

	// Private addresses are never queried.
	before := len(queries)
	if info, _ := asn.Lookup(context.Background(), net.ParseIP("192.168.1.1")); info != nil {
		t.Error("Lookup() for private IP should return nil")
	}
	if len(queries) != before {
		t.Error("Lookup() queried DNS for a private address")
	}
}

func TestIPAPIGeo(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/1.1.1.1") {
			w.Write([]byte(`{"status":"success","country":"Australia","countryCode":"AU","city":"Sydney","lat":-33.86,"lon":151.2}`))
			return
		}
		w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
	}))
	defer server.Close()

	config := DefaultIPAPIConfig()
	config.BaseURL = server.URL
	geo := NewIPAPIGeo(config)
	defer geo.Close()

	ctx := context.Background()
	info, err := geo.Lookup(ctx, net.ParseIP("1.1.1.1"))
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if info == nil || info.CountryCode != "AU" || info.City != "Sydney" {
		t.Fatalf("Lookup() = %+v", info)
	}
	if info.Location() != "Sydney, AU" {
		t.Errorf("Location() = %q", info.Location())
	}

	if info, _ := geo.Lookup(ctx, net.ParseIP("203.0.113.5")); info != nil {
		t.Errorf("Lookup() for failed status = %+v, want nil", info)
	}

	geo.Lookup(ctx, net.ParseIP("1.1.1.1"))
	geo.Lookup(ctx, net.ParseIP("203.0.113.5"))
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}

	if info, _ := geo.Lookup(ctx, net.ParseIP("10.0.0.1")); info != nil {
		t.Error("Lookup() for private IP should return nil")
	}
}

type stubHostnames map[string]string

func (s stubHostnames) Lookup(_ context.Context, ip net.IP) (string, error) {
	return s[ip.String()], nil
}
func (s stubHostnames) Close() error { return nil }

type stubASN struct{ err error }

func (s stubASN) Lookup(context.Context, net.IP) (*trace.ASNInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &trace.ASNInfo{Number: 64500, Org: "EXAMPLE-NET"}, nil
}
func (s stubASN) Close() error { return nil }

type stubGeo struct{}

func (stubGeo) Lookup(context.Context, net.IP) (*trace.GeoInfo, error) {
	return &trace.GeoInfo{Country: "Germany", CountryCode: "DE", City: "Berlin"}, nil
}
func (stubGeo) Close() error { return nil }

func TestEnricher_EnrichHop(t *testing.T) {
	e := NewEnricherWith(stubHostnames{"192.0.2.1": "edge.example.net"}, stubASN{}, stubGeo{})
	defer e.Close()

	hop := &trace.HopRecord{Number: 3, Outcome: trace.OutcomeResponse, IP: net.ParseIP("192.0.2.1")}
	e.EnrichHop(context.Background(), hop)

	if hop.Hostname != "edge.example.net" {
		t.Errorf("Hostname = %q", hop.Hostname)
	}
	if hop.ASN == nil || hop.ASN.Number != 64500 {
		t.Errorf("ASN = %+v", hop.ASN)
	}
	if hop.Geo.Location() != "Berlin, DE" {
		t.Errorf("Geo = %+v", hop.Geo)
	}
}

func TestEnricher_FailedLookupsLeaveHopUnchanged(t *testing.T) {
	e := NewEnricherWith(stubHostnames{}, stubASN{err: errors.New("timeout")}, nil)

	hop := &trace.HopRecord{Number: 1, Outcome: trace.OutcomeResponse, IP: net.ParseIP("192.0.2.9")}
	e.EnrichHop(context.Background(), hop)

	if hop.Hostname != "" || hop.ASN != nil || hop.Geo != nil {
		t.Errorf("hop = %+v, want no enrichment", hop)
	}

	timeout := &trace.HopRecord{Number: 2}
	e.EnrichHop(context.Background(), timeout)
	if timeout.Hostname != "" {
		t.Error("EnrichHop() should skip hops without an address")
	}
}

func TestNewEnricher(t *testing.T) {
	e, err := NewEnricher(EnricherConfig{EnableRDNS: true})
	if err != nil {
		t.Fatalf("NewEnricher() error = %v", err)
	}
	defer e.Close()

	if e.rdns == nil || e.asn != nil || e.geo != nil {
		t.Errorf("NewEnricher(rdns only) = %+v", e)
	}

	e, err = NewEnricher(EnricherConfig{
		EnableASN:      true,
		MaxMindASNPath: filepath.Join(t.TempDir(), "missing.mmdb"),
	})
	if err != nil {
		t.Fatalf("NewEnricher() error = %v", err)
	}
	if _, ok := e.asn.(*TeamCymruASN); !ok {
		t.Errorf("asn = %T, want Team Cymru fallback when the database is missing", e.asn)
	}
	e.Close()
}

func TestConfigFromTrace(t *testing.T) {
	config := trace.DefaultConfig()
	config.EnableGeoIP = false

	got := ConfigFromTrace(config)
	if !got.EnableRDNS || !got.EnableASN || got.EnableGeoIP {
		t.Errorf("ConfigFromTrace() = %+v", got)
	}

	config.EnableEnrichment = false
	if ConfigFromTrace(config).Enabled() {
		t.Error("disabling enrichment should disable every lookup")
	}
}

func TestMaxMindDB_Missing(t *testing.T) {
	db, err := NewMaxMindDB(MaxMindDBConfig{
		ASNDBPath: filepath.Join(t.TempDir(), "GeoLite2-ASN.mmdb"),
	})
	if err != nil {
		t.Fatalf("NewMaxMindDB() error = %v", err)
	}
	defer db.Close()

	if db.HasASN() || db.HasGeo() {
		t.Error("no database should be loaded")
	}
	if _, err := db.LookupASN(net.ParseIP("8.8.8.8")); !errors.Is(err, ErrDatabaseNotLoaded) {
		t.Errorf("LookupASN() error = %v, want ErrDatabaseNotLoaded", err)
	}
	if _, err := db.LookupGeo(net.ParseIP("8.8.8.8")); !errors.Is(err, ErrDatabaseNotLoaded) {
		t.Errorf("LookupGeo() error = %v, want ErrDatabaseNotLoaded", err)
	}
}

func TestMaxMindDB_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GeoLite2-City.mmdb")
	if err := os.WriteFile(path, []byte("not a database"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewMaxMindDB(MaxMindDBConfig{GeoDBPath: path}); err == nil {
		t.Error("NewMaxMindDB() should fail for a corrupt database")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true},
		{"fe80::1", true},
		{"::1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := isPrivateIP(net.ParseIP(tt.ip)); got != tt.private {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
			}
		})
	}
}

func TestReverseIPv6Nibbles(t *testing.T) {
	got := reverseIPv6Nibbles(net.ParseIP("2001:db8::1"))
	want := "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2"
	if got != want {
		t.Errorf("reverseIPv6Nibbles() = %s, want %s", got, want)
	}
}

func TestOriginQuery(t *testing.T) {
	if got := originQuery(net.ParseIP("203.0.113.7")); got != "7.113.0.203.origin.asn.cymru.com" {
		t.Errorf("originQuery(v4) = %s", got)
	}
	if got := originQuery(net.ParseIP("2001:db8::1")); !strings.HasSuffix(got, ".origin6.asn.cymru.com") {
		t.Errorf("originQuery(v6) = %s", got)
	}
}

func TestParseTeamCymruResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantASN int
		wantCC  string
		wantNil bool
	}{
		{"valid", "15169 | 8.8.8.0/24 | US | arin | 1992-12-01", 15169, "US", false},
		{"multiple origins", "13335 209242 | 1.1.1.0/24 | AU | apnic | 2011-08-11", 13335, "AU", false},
		{"too few fields", "15169 | 8.8.8.0/24", 0, "", true},
		{"not a number", "NA | 8.8.8.0/24 | US | arin |", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTeamCymruResponse(tt.input)
			if tt.wantNil {
				if got != nil {
					t.Errorf("parseTeamCymruResponse() = %+v, want nil", got)
				}
				return
			}
			if got == nil || got.Number != tt.wantASN || got.Country != tt.wantCC {
				t.Errorf("parseTeamCymruResponse() = %+v, want AS%d %s", got, tt.wantASN, tt.wantCC)
			}
		})
	}
}

func TestOrgCountry(t *testing.T) {
	if got := orgCountry("GOOGLE, US"); got != "US" {
		t.Errorf("orgCountry() = %q, want US", got)
	}
	if got := orgCountry("Example Networks, Inc."); got != "" {
		t.Errorf("orgCountry() = %q, want empty", got)
	}
}
