package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CalendarConfig describes the optional calendar subscription. Only one
// calendar is followed at a time; an uploaded file replaces it until the
// next refresh.
type CalendarConfig struct {
	// URL is the ICS subscription endpoint. Empty disables refreshing.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// WeatherConfig points the weather client at Open-Meteo compatible APIs.
type WeatherConfig struct {
	GeocodeURL  string `yaml:"geocode_url" json:"geocode_url"`
	ForecastURL string `yaml:"forecast_url" json:"forecast_url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used as the reference frame for calendar
	// windows (e.g. "Europe/Berlin"). Empty means the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// HorizonDays is the number of days ahead shown in the calendar.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for
	// re-fetching the calendar subscription.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DataDir holds dashboard.json and the ICS cache.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// HomeCity seeds the "home_city" setting used by the weather lookup.
	HomeCity string `yaml:"home_city" json:"home_city"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Weather  WeatherConfig  `yaml:"weather" json:"weather"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health and /metrics.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultHorizonDays = 14
	defaultRefreshCron = "*/15 * * * *"
	defaultLogLevel    = "info"
	defaultDataDir     = "./var"
	defaultHomeCity    = "Maryville"
	defaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		HorizonDays: defaultHorizonDays,
		RefreshCron: defaultRefreshCron,
		LogLevel:    defaultLogLevel,
		DataDir:     defaultDataDir,
		HomeCity:    defaultHomeCity,
		Weather: WeatherConfig{
			GeocodeURL:  defaultGeocodeURL,
			ForecastURL: defaultForecastURL,
		},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	// Zero is a legal horizon ("events starting right now"); only
	// negative values are replaced.
	if c.HorizonDays < 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.HomeCity == "" {
		c.HomeCity = defaultHomeCity
	}
	if c.Calendar.URL != "" && c.Calendar.ID == "" {
		if c.Calendar.Name != "" {
			c.Calendar.ID = c.Calendar.Name
		} else {
			c.Calendar.ID = "calendar"
		}
	}
	if c.Weather.GeocodeURL == "" {
		c.Weather.GeocodeURL = defaultGeocodeURL
	}
	if c.Weather.ForecastURL == "" {
		c.Weather.ForecastURL = defaultForecastURL
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		// Half-configured credentials disable auth rather than lock everyone out.
		c.BasicAuth = nil
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// StorePath is the JSON file holding tasks, notes and settings.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "dashboard.json")
}

// ICSCacheDir is where subscription bodies and validators are cached.
func (c *Config) ICSCacheDir() string {
	return filepath.Join(c.DataDir, "ics-cache")
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created) and returned.
//   - Otherwise the YAML is decoded and normalized.
//
// Unlike a zero-valued field, an explicit horizon_days: 0 is preserved.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
