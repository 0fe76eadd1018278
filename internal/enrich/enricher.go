package enrich

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// Enricher decorates responding hops with reverse DNS, ASN and GeoIP data.
// It implements trace.HopEnricher.
type Enricher struct {
	rdns    HostnameLookup
	asn     ASNLookup
	geo     GeoLookup
	maxmind *MaxMindDB
}

// EnricherConfig holds configuration for the enricher.
type EnricherConfig struct {
	EnableRDNS  bool
	EnableASN   bool
	EnableGeoIP bool

	// Offline databases; when present they replace the online services
	MaxMindASNPath  string
	MaxMindCityPath string
}

// ConfigFromTrace derives the enricher settings from a trace configuration.
func ConfigFromTrace(config *trace.Config) EnricherConfig {
	return EnricherConfig{
		EnableRDNS:  config.EnableEnrichment && config.EnableRDNS,
		EnableASN:   config.EnableEnrichment && config.EnableASN,
		EnableGeoIP: config.EnableEnrichment && config.EnableGeoIP,
	}
}

// Enabled reports whether any lookup is turned on.
func (c EnricherConfig) Enabled() bool {
	return c.EnableRDNS || c.EnableASN || c.EnableGeoIP
}

// NewEnricher creates an enricher. ASN and GeoIP use the MaxMind databases
// when they are configured and present, Team Cymru and ip-api.com otherwise.
func NewEnricher(config EnricherConfig) (*Enricher, error) {
	e := &Enricher{}

	if config.EnableRDNS {
		e.rdns = NewRDNSResolver(DefaultRDNSConfig())
	}

	if (config.EnableASN && config.MaxMindASNPath != "") || (config.EnableGeoIP && config.MaxMindCityPath != "") {
		db, err := NewMaxMindDB(MaxMindDBConfig{
			ASNDBPath: config.MaxMindASNPath,
			GeoDBPath: config.MaxMindCityPath,
		})
		if err != nil {
			return nil, err
		}
		e.maxmind = db
	}

	if config.EnableASN {
		if e.maxmind != nil && e.maxmind.HasASN() {
			e.asn = e.maxmind.ASN()
		} else {
			e.asn = NewTeamCymruASN(DefaultTeamCymruConfig())
		}
	}

	if config.EnableGeoIP {
		if e.maxmind != nil && e.maxmind.HasGeo() {
			e.geo = e.maxmind.Geo()
		} else {
			e.geo = NewIPAPIGeo(DefaultIPAPIConfig())
		}
	}

	return e, nil
}

// NewEnricherWith builds an enricher from explicit lookups. Nil lookups are
// skipped.
func NewEnricherWith(rdns HostnameLookup, asn ASNLookup, geo GeoLookup) *Enricher {
	return &Enricher{rdns: rdns, asn: asn, geo: geo}
}

// EnrichHop fills the hostname, ASN and location of a responding hop. The
// three lookups run concurrently; the hop is only written once all are done.
func (e *Enricher) EnrichHop(ctx context.Context, hop *trace.HopRecord) {
	if hop == nil || hop.IP == nil {
		return
	}

	var (
		wg       sync.WaitGroup
		hostname string
		asn      *trace.ASNInfo
		geo      *trace.GeoInfo
	)
	log := zerolog.Ctx(ctx).With().Int("ttl", hop.Number).Str("ip", hop.IP.String()).Logger()

	if e.rdns != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hostname, _ = e.rdns.Lookup(ctx, hop.IP)
		}()
	}

	if e.asn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if asn, err = e.asn.Lookup(ctx, hop.IP); err != nil {
				log.Debug().Err(err).Msg("asn lookup failed")
			}
		}()
	}

	if e.geo != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if geo, err = e.geo.Lookup(ctx, hop.IP); err != nil {
				log.Debug().Err(err).Msg("geoip lookup failed")
			}
		}()
	}

	wg.Wait()

	if hostname != "" {
		hop.Hostname = hostname
	}
	if asn != nil {
		hop.ASN = asn
	}
	if geo != nil {
		hop.Geo = geo
	}
}

// Close releases resources held by the enricher.
func (e *Enricher) Close() error {
	var errs []error
	if e.rdns != nil {
		errs = append(errs, e.rdns.Close())
	}
	if e.asn != nil {
		errs = append(errs, e.asn.Close())
	}
	if e.geo != nil {
		errs = append(errs, e.geo.Close())
	}
	if e.maxmind != nil {
		errs = append(errs, e.maxmind.Close())
	}
	return errors.Join(errs...)
}
