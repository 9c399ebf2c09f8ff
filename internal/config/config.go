package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Every field can be overridden by a REMINDERCAL_* environment variable;
// the file is read first, the environment applied on top.

// LogConfig controls the global logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level" env:"REMINDERCAL_LOG_LEVEL"`
	// Format is "console" or "json".
	Format string `yaml:"format" json:"format" env:"REMINDERCAL_LOG_FORMAT"`
}

// BackendConfig points at the reminder backend API.
type BackendConfig struct {
	// BaseURL is the backend origin, e.g. "https://reminders.example.com".
	BaseURL string        `yaml:"base_url" json:"base_url" env:"REMINDERCAL_BACKEND_URL"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"REMINDERCAL_BACKEND_TIMEOUT"`

	// SessionCookie/SessionValue seed the client cookie jar with an already
	// established dashboard session.
	SessionCookie string `yaml:"session_cookie" json:"session_cookie" env:"REMINDERCAL_SESSION_COOKIE"`
	SessionValue  string `yaml:"session_value" json:"-" env:"REMINDERCAL_SESSION_VALUE"`

	LoginPath string `yaml:"login_path" json:"login_path" env:"REMINDERCAL_LOGIN_PATH"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the local web UI.
// Auth is enabled when both fields are set.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" env:"REMINDERCAL_BASIC_AUTH_USERNAME"`
	Password string `yaml:"password" json:"-" env:"REMINDERCAL_BASIC_AUTH_PASSWORD"`
}

func (b BasicAuthConfig) Enabled() bool {
	return b.Username != "" && b.Password != ""
}

// CaptureConfig controls the headless preview screenshot.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" env:"REMINDERCAL_CAPTURE_ENABLED"`
	// URL defaults to the local /calendar page.
	URL     string        `yaml:"url" json:"url" env:"REMINDERCAL_CAPTURE_URL"`
	Output  string        `yaml:"output" json:"output" env:"REMINDERCAL_CAPTURE_OUTPUT"`
	Width   int           `yaml:"width" json:"width" env:"REMINDERCAL_CAPTURE_WIDTH"`
	Height  int           `yaml:"height" json:"height" env:"REMINDERCAL_CAPTURE_HEIGHT"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"REMINDERCAL_CAPTURE_TIMEOUT"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web UI and API.
	Listen string `yaml:"listen" json:"listen" env:"REMINDERCAL_LISTEN"`

	// Timezone is used when the backend schedule timezone cannot be loaded.
	Timezone string `yaml:"timezone" json:"timezone" env:"REMINDERCAL_TIMEZONE"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start" env:"REMINDERCAL_WEEK_START"`

	// RefreshCron is the cron schedule for reloading the backend schedule.
	RefreshCron string `yaml:"refresh" json:"refresh" env:"REMINDERCAL_REFRESH"`

	// HorizonDays is the default number of days served by /api/events.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" env:"REMINDERCAL_HORIZON_DAYS"`

	Log       LogConfig       `yaml:"log" json:"log"`
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
	BasicAuth BasicAuthConfig `yaml:"basic_auth" json:"basic_auth"`
	Capture   CaptureConfig   `yaml:"capture" json:"capture"`
}

const (
	defaultListen    = "127.0.0.1:8080"
	defaultTimezone  = "Asia/Shanghai"
	defaultRefresh   = "*/5 * * * *"
	defaultHorizon   = 7
	defaultTimeout   = 15 * time.Second
	defaultLoginPath = "/login"
	defaultOutput    = "/var/lib/remindercal/preview.png"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing or invalid values with defaults so partially
// filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart)); c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizon
	}

	switch c.Log.Level = strings.ToLower(c.Log.Level); c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Log.Level = "info"
	}
	if c.Log.Format != "json" {
		c.Log.Format = "console"
	}

	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = defaultTimeout
	}
	if c.Backend.LoginPath == "" {
		c.Backend.LoginPath = defaultLoginPath
	}

	if c.Capture.Width <= 0 {
		c.Capture.Width = 800
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 480
	}
	if c.Capture.Timeout <= 0 {
		c.Capture.Timeout = 30 * time.Second
	}
	if c.Capture.Output == "" {
		c.Capture.Output = defaultOutput
	}
}

// Location loads the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from the YAML file at path and applies
// REMINDERCAL_* environment overrides.
//
// On first run (no file) a default config is written with 0600 perms and
// returned, still with environment overrides applied.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
		cfg.Normalize()
		return cfg, nil
	case err != nil:
		return nil, err
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".remindercal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
