// Package config provides configuration management for the emulator
// with support for multiple data sources and caching.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ConfigProvider defines the interface for configuration data sources.
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetStation() (*StationData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData is the complete emulator configuration.
type ConfigData struct {
	Station     StationData      `yaml:"station"`
	Storage     StorageData      `yaml:"storage,omitempty"`
	Controllers []ControllerData `yaml:"controllers,omitempty"`
}

// StationData configures the emulated console and its listeners.
type StationData struct {
	// Default listener port; accepts connections from any address.
	Port       int `yaml:"port,omitempty"`
	MaxClients int `yaml:"max-clients,omitempty"`

	// VIP listeners, each "ip:port": the port accepts only that peer.
	ClientMapping []string `yaml:"client-mapping,omitempty"`

	// 16 = Vantage Pro2, 17 = Vantage Vue; reported by WRD.
	StationType int `yaml:"station-type,omitempty"`

	// 0 = basic, 1 = stats and lag, 2 = raw hex dumps.
	DebugDetail int `yaml:"debug-detail,omitempty"`

	// Seconds to wait before binding any port.
	StartupDelay int `yaml:"startup-delay,omitempty"`

	// Watchdog: stale-data threshold in seconds (0 disables) and the
	// action taken when exceeded (0 log, 1 disconnect, 2 kill process).
	MaxLagThreshold int `yaml:"max-lag-threshold,omitempty"`
	MaxLagAction    int `yaml:"max-lag-action,omitempty"`

	// Archive interval override in minutes; clamped to 1..255.
	ArchiveInterval int `yaml:"archive-interval,omitempty"`

	// Emit LOOP2 instead of LOOP for the LPS command.
	Loop2ForLPS bool `yaml:"loop2-for-lps,omitempty"`

	// Station metadata seeded into the virtual EEPROM.
	Latitude  float64 `yaml:"latitude,omitempty"`
	Longitude float64 `yaml:"longitude,omitempty"`
	TimeZone  int     `yaml:"time-zone,omitempty"`

	// Optional rotating log file.
	LogFile string `yaml:"log-file,omitempty"`
}

// StorageData selects and configures the archive record store.
type StorageData struct {
	// Binding names the store the download protocol reads from:
	// "timescaledb" or "sqlite". Empty means no archive data.
	Binding     string           `yaml:"binding,omitempty"`
	TimescaleDB *TimescaleDBData `yaml:"timescaledb,omitempty"`
	SQLite      *SQLiteData      `yaml:"sqlite,omitempty"`
}

// TimescaleDBData configures the TimescaleDB-backed archive store.
type TimescaleDBData struct {
	ConnectionString string `yaml:"connection-string,omitempty"`
	Table            string `yaml:"table,omitempty"`
}

// SQLiteData configures the SQLite-backed archive store.
type SQLiteData struct {
	Path string `yaml:"path,omitempty"`
}

// ControllerData holds the configuration for auxiliary controllers.
type ControllerData struct {
	Type          string             `yaml:"type,omitempty"`
	ManagementAPI *ManagementAPIData `yaml:"management,omitempty"`
}

// ManagementAPIData configures the management/ingest HTTP API.
type ManagementAPIData struct {
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	AuthToken  string `yaml:"auth-token,omitempty"`
}

// Defaults applied to zero-valued station options.
const (
	DefaultPort        = 22222
	DefaultMaxClients  = 10
	DefaultStationType = 16
)

// ApplyDefaults fills unset station options in place.
func (s *StationData) ApplyDefaults() {
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.MaxClients == 0 {
		s.MaxClients = DefaultMaxClients
	}
	if s.StationType == 0 {
		s.StationType = DefaultStationType
	}
}

// ParseClientMapping turns the configured "ip:port" pairs into a
// port-to-allowed-IP map. Malformed entries are returned as errors so
// the caller can refuse the offending port and still bind the rest.
func ParseClientMapping(pairs []string) (map[int]string, []error) {
	mapping := make(map[int]string)
	var errs []error
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.LastIndex(pair, ":")
		if idx < 0 {
			errs = append(errs, fmt.Errorf("client mapping %q: missing port", pair))
			continue
		}
		ip := strings.TrimSpace(pair[:idx])
		port, err := strconv.Atoi(strings.TrimSpace(pair[idx+1:]))
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("client mapping %q: bad port", pair))
			continue
		}
		if net.ParseIP(ip) == nil {
			errs = append(errs, fmt.Errorf("client mapping %q: bad IP address", pair))
			continue
		}
		mapping[port] = ip
	}
	return mapping, errs
}

// ValidationError describes one configuration problem.
type ValidationError struct {
	Field   string
	Message string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidateConfig checks a loaded configuration for problems that would
// prevent startup.
func ValidateConfig(cfg *ConfigData) []ValidationError {
	var errs []ValidationError

	if t := cfg.Station.StationType; t != 0 && t != 16 && t != 17 {
		errs = append(errs, ValidationError{"station.station-type", "must be 16 (VP2) or 17 (Vue)"})
	}
	if a := cfg.Station.MaxLagAction; a < 0 || a > 2 {
		errs = append(errs, ValidationError{"station.max-lag-action", "must be 0, 1 or 2"})
	}
	if d := cfg.Station.DebugDetail; d < 0 || d > 2 {
		errs = append(errs, ValidationError{"station.debug-detail", "must be 0, 1 or 2"})
	}
	switch cfg.Storage.Binding {
	case "", "timescaledb", "sqlite":
	default:
		errs = append(errs, ValidationError{"storage.binding", "must be timescaledb or sqlite"})
	}
	if cfg.Storage.Binding == "timescaledb" && (cfg.Storage.TimescaleDB == nil || cfg.Storage.TimescaleDB.ConnectionString == "") {
		errs = append(errs, ValidationError{"storage.timescaledb", "connection-string required"})
	}
	if cfg.Storage.Binding == "sqlite" && (cfg.Storage.SQLite == nil || cfg.Storage.SQLite.Path == "") {
		errs = append(errs, ValidationError{"storage.sqlite", "path required"})
	}
	return errs
}

// CachedConfigProvider wraps any ConfigProvider with caching.
type CachedConfigProvider struct {
	provider    ConfigProvider
	cache       *ConfigData
	cacheMutex  sync.RWMutex
	lastLoaded  time.Time
	cacheExpiry time.Duration
}

// NewCachedProvider creates a new cached config provider wrapper.
func NewCachedProvider(provider ConfigProvider, cacheExpiry time.Duration) *CachedConfigProvider {
	if cacheExpiry == 0 {
		cacheExpiry = 30 * time.Second
	}
	return &CachedConfigProvider{
		provider:    provider,
		cacheExpiry: cacheExpiry,
	}
}

// LoadConfig loads configuration with caching.
func (c *CachedConfigProvider) LoadConfig() (*ConfigData, error) {
	c.cacheMutex.RLock()
	if c.cache != nil && time.Since(c.lastLoaded) < c.cacheExpiry {
		defer c.cacheMutex.RUnlock()
		return c.cache, nil
	}
	c.cacheMutex.RUnlock()

	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	// Double-check in case another goroutine loaded while we waited.
	if c.cache != nil && time.Since(c.lastLoaded) < c.cacheExpiry {
		return c.cache, nil
	}

	cfg, err := c.provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if validationErrors := ValidateConfig(cfg); len(validationErrors) > 0 {
		var messages []string
		for _, ve := range validationErrors {
			messages = append(messages, ve.Error())
		}
		return nil, fmt.Errorf("configuration validation failed:\n  - %s",
			strings.Join(messages, "\n  - "))
	}

	c.cache = cfg
	c.lastLoaded = time.Now()
	return cfg, nil
}

// GetStation returns the cached station configuration.
func (c *CachedConfigProvider) GetStation() (*StationData, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	station := cfg.Station
	station.ApplyDefaults()
	return &station, nil
}

// GetStorageConfig returns the cached storage configuration.
func (c *CachedConfigProvider) GetStorageConfig() (*StorageData, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &cfg.Storage, nil
}

// GetControllers returns the cached controller configurations.
func (c *CachedConfigProvider) GetControllers() ([]ControllerData, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Controllers, nil
}

// IsReadOnly reports whether the underlying provider is read-only.
func (c *CachedConfigProvider) IsReadOnly() bool {
	return c.provider.IsReadOnly()
}

// Close closes the underlying provider.
func (c *CachedConfigProvider) Close() error {
	return c.provider.Close()
}
