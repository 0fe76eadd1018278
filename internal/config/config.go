// Package config provides configuration file support for hoptrace.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// ErrExists is returned by WriteExample when the file is already present.
var ErrExists = errors.New("config file already exists")

// Config represents the hoptrace configuration file structure.
type Config struct {
	// Defaults are applied when flags are not specified
	Defaults Defaults `yaml:"defaults"`

	// MaxMind holds offline database paths for ASN and GeoIP enrichment
	MaxMind MaxMindConfig `yaml:"maxmind"`

	// Aliases for common targets
	Aliases map[string]string `yaml:"aliases,omitempty"`

	// path is the file the config was read from, empty for defaults
	path string
}

// Defaults holds default values for trace parameters.
type Defaults struct {
	// Output mode
	TUI     bool `yaml:"tui"`
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
	CSV     bool `yaml:"csv"`
	NoColor bool `yaml:"no_color"`

	// Trace parameters
	MaxHops     int           `yaml:"max_hops"`
	MaxTimeouts int           `yaml:"max_timeouts"`
	Timeout     time.Duration `yaml:"timeout"`

	// Network
	IPv4 bool `yaml:"ipv4"`
	IPv6 bool `yaml:"ipv6"`

	// Diagnostics
	LogLevel string `yaml:"log_level"`

	// Enrichment
	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

// EnrichmentConfig holds enrichment settings.
type EnrichmentConfig struct {
	Enabled bool `yaml:"enabled"`
	RDNS    bool `yaml:"rdns"`
	ASN     bool `yaml:"asn"`
	GeoIP   bool `yaml:"geoip"`
}

// MaxMindConfig holds GeoLite2 database paths. A leading ~ is expanded.
type MaxMindConfig struct {
	ASNDB  string `yaml:"asn_db"`
	CityDB string `yaml:"city_db"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Defaults: Defaults{
			MaxHops:     trace.DefaultMaxHops,
			MaxTimeouts: trace.DefaultMaxConsecutiveTimeouts,
			Timeout:     trace.DefaultTimeout,
			LogLevel:    "warn",
			Enrichment: EnrichmentConfig{
				Enabled: true,
				RDNS:    true,
				ASN:     true,
				GeoIP:   true,
			},
		},
		Aliases: make(map[string]string),
	}
}

// Load reads configuration from the default config file locations.
// It searches in order:
//  1. ./hoptrace.yaml, ./.hoptrace.yaml (current directory)
//  2. $XDG_CONFIG_HOME/hoptrace/config.yaml or ~/.config/hoptrace/config.yaml
//  3. %APPDATA%\hoptrace\config.yaml (Windows)
//
// If no config file is found, the defaults are returned.
func Load() (*Config, error) {
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			return LoadFrom(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFrom reads configuration from a specific file path. Keys missing from
// the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if config.Aliases == nil {
		config.Aliases = make(map[string]string)
	}
	config.path = path

	return config, nil
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// ResolveAlias returns the target an alias points to, or target itself.
func (c *Config) ResolveAlias(target string) string {
	if resolved, ok := c.Aliases[target]; ok && resolved != "" {
		return resolved
	}
	return target
}

// MaxMindPaths returns the configured database paths with ~ expanded.
func (c *Config) MaxMindPaths() (asnDB, cityDB string) {
	return expandHome(c.MaxMind.ASNDB), expandHome(c.MaxMind.CityDB)
}

// WriteExample writes the commented example configuration to path.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(GenerateExample()), 0o644)
}

func getConfigPaths() []string {
	paths := []string{
		"hoptrace.yaml",
		"hoptrace.yml",
		".hoptrace.yaml",
		".hoptrace.yml",
	}

	if userPath := getUserConfigPath(); userPath != "" {
		paths = append(paths, userPath)
	}

	return paths
}

func getUserConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "hoptrace", "config.yaml")
		}
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "hoptrace", "config.yaml")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", "hoptrace", "config.yaml")
		}
	}
	return ""
}

// GetConfigPath returns the path where user config would be saved.
func GetConfigPath() string {
	return getUserConfigPath()
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// GenerateExample generates an example configuration file content.
func GenerateExample() string {
	return `# hoptrace configuration file
# Location: ~/.config/hoptrace/config.yaml (Linux/macOS)
#           %APPDATA%\hoptrace\config.yaml (Windows)
#           ./hoptrace.yaml (current directory)

defaults:
  # Output mode (only one should be true)
  tui: false              # Live TUI view
  verbose: false          # Detailed table output
  json: false             # JSON output
  csv: false              # CSV output
  no_color: false         # Disable colors

  # Trace parameters
  max_hops: 30            # TTL ceiling
  max_timeouts: 5         # Abort after this many timeouts in a row
  timeout: 3s             # Per-probe timeout

  # Network settings
  ipv4: false             # Force IPv4
  ipv6: false             # Force IPv6

  # Diagnostics: trace, debug, info, warn, error, disabled
  log_level: warn

  # Enrichment settings
  enrichment:
    enabled: true         # Master switch for all enrichment
    rdns: true            # Reverse DNS lookups
    asn: true             # ASN lookups
    geoip: true           # GeoIP lookups

# Offline GeoLite2 databases (optional); online services are used otherwise
maxmind:
  asn_db: ""              # e.g. ~/.local/share/GeoIP/GeoLite2-ASN.mmdb
  city_db: ""             # e.g. ~/.local/share/GeoIP/GeoLite2-City.mmdb

# Target aliases (optional)
aliases:
  dns: 8.8.8.8
  cf: 1.1.1.1
`
}
