package enrich

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/maxminddb-golang"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// ErrDatabaseNotLoaded is returned when a lookup needs a database that was
// not configured or not found.
var ErrDatabaseNotLoaded = errors.New("maxmind database not loaded")

// MaxMindDB provides offline ASN and GeoIP lookups from GeoLite2 databases.
type MaxMindDB struct {
	mu    sync.RWMutex
	asnDB *maxminddb.Reader
	geoDB *maxminddb.Reader
}

// MaxMindDBConfig holds the database paths. Empty or missing paths are
// skipped.
type MaxMindDBConfig struct {
	ASNDBPath string // GeoLite2-ASN.mmdb
	GeoDBPath string // GeoLite2-City.mmdb
}

type maxmindASNRecord struct {
	AutonomousSystemNumber       uint   `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

type maxmindCityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// NewMaxMindDB opens the configured databases that exist on disk.
func NewMaxMindDB(config MaxMindDBConfig) (*MaxMindDB, error) {
	db := &MaxMindDB{}

	asnDB, err := openIfExists(config.ASNDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ASN database: %w", err)
	}
	db.asnDB = asnDB

	geoDB, err := openIfExists(config.GeoDBPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	db.geoDB = geoDB

	return db, nil
}

func openIfExists(path string) (*maxminddb.Reader, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return maxminddb.Open(path)
}

// HasASN returns true if the ASN database is available.
func (db *MaxMindDB) HasASN() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.asnDB != nil
}

// HasGeo returns true if the City database is available.
func (db *MaxMindDB) HasGeo() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.geoDB != nil
}

// LookupASN looks up ASN information for an IP address.
func (db *MaxMindDB) LookupASN(ip net.IP) (*trace.ASNInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.asnDB == nil {
		return nil, ErrDatabaseNotLoaded
	}

	var record maxmindASNRecord
	if err := db.asnDB.Lookup(ip, &record); err != nil {
		return nil, err
	}
	if record.AutonomousSystemNumber == 0 {
		return nil, nil
	}

	return &trace.ASNInfo{
		Number:  int(record.AutonomousSystemNumber),
		Org:     record.AutonomousSystemOrganization,
		Country: orgCountry(record.AutonomousSystemOrganization),
	}, nil
}

// LookupGeo looks up geographic information for an IP address.
func (db *MaxMindDB) LookupGeo(ip net.IP) (*trace.GeoInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.geoDB == nil {
		return nil, ErrDatabaseNotLoaded
	}

	var record maxmindCityRecord
	if err := db.geoDB.Lookup(ip, &record); err != nil {
		return nil, err
	}
	if record.Country.ISOCode == "" {
		return nil, nil
	}

	return &trace.GeoInfo{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.ISOCode,
		City:        record.City.Names["en"],
		Latitude:    record.Location.Latitude,
		Longitude:   record.Location.Longitude,
	}, nil
}

// ASN returns an ASNLookup backed by the database.
func (db *MaxMindDB) ASN() ASNLookup { return maxmindASN{db} }

// Geo returns a GeoLookup backed by the database.
func (db *MaxMindDB) Geo() GeoLookup { return maxmindGeo{db} }

// Close releases database resources.
func (db *MaxMindDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var errs []error
	if db.asnDB != nil {
		errs = append(errs, db.asnDB.Close())
		db.asnDB = nil
	}
	if db.geoDB != nil {
		errs = append(errs, db.geoDB.Close())
		db.geoDB = nil
	}
	return errors.Join(errs...)
}

// orgCountry extracts the trailing country code of names like "GOOGLE, US".
func orgCountry(org string) string {
	idx := strings.LastIndex(org, ", ")
	if idx == -1 {
		return ""
	}
	cc := org[idx+2:]
	if len(cc) != 2 || strings.ToUpper(cc) != cc {
		return ""
	}
	return cc
}

// maxmindASN and maxmindGeo adapt the database to the lookup interfaces.
// Closing them is a no-op; the Enricher closes the database itself.
type maxmindASN struct{ db *MaxMindDB }

func (m maxmindASN) Lookup(_ context.Context, ip net.IP) (*trace.ASNInfo, error) {
	if ip == nil || isPrivateIP(ip) {
		return nil, nil
	}
	return m.db.LookupASN(ip)
}

func (m maxmindASN) Close() error { return nil }

type maxmindGeo struct{ db *MaxMindDB }

func (m maxmindGeo) Lookup(_ context.Context, ip net.IP) (*trace.GeoInfo, error) {
	if ip == nil || isPrivateIP(ip) {
		return nil, nil
	}
	return m.db.LookupGeo(ip)
}

func (m maxmindGeo) Close() error { return nil }
