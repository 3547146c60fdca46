package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/paytrackr/internal/clock"
	"github.com/sadopc/paytrackr/internal/earnings"
)

// Configuration validation constants
const (
	MinTickInterval = 100 * time.Millisecond

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// Default values
	DefaultCurrency        = "$"
	DefaultHourlyRate      = "25.26"
	DefaultWorkStart       = "08:00:00"
	DefaultWorkEnd         = "14:20:00"
	DefaultTickInterval    = time.Second
	DefaultCheckpointEvery = 30
	DefaultDriver          = DriverSQLite
	DefaultLogLevel        = "info"

	envPrefix = "PAYTRACKR_"
)

// StoreConfig selects where state and daily totals live
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"` // sqlite file
	DSN    string `yaml:"dsn"`  // postgres connection string
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config represents the application configuration
type Config struct {
	Account         string        `yaml:"account"`
	Currency        string        `yaml:"currency"`
	HourlyRate      string        `yaml:"hourly_rate"`
	WorkStart       string        `yaml:"work_start"`
	WorkEnd         string        `yaml:"work_end"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	CheckpointEvery int           `yaml:"checkpoint_every"`
	Store           StoreConfig   `yaml:"store"`
	Log             LogConfig     `yaml:"log"`
	MetricsAddr     string        `yaml:"metrics_addr"`

	// Path is the file the configuration was read from, empty when defaults
	// were used because it does not exist.
	Path string `yaml:"-"`
}

// Dir returns ~/.config/paytrackr
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "paytrackr"), nil
}

// DefaultPath returns ~/.config/paytrackr/config.yaml
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the YAML file at path, loads .env files, applies environment
// overrides and validates. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}

	var cfg Config
	// #nosec G304 -- path comes from the --config flag
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		cfg.Path = path
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv loads each existing file. Variables already set in the
// environment win.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

func applyDefaults(cfg *Config) error {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.HourlyRate == "" {
		cfg.HourlyRate = DefaultHourlyRate
	}
	if cfg.WorkStart == "" {
		cfg.WorkStart = DefaultWorkStart
	}
	if cfg.WorkEnd == "" {
		cfg.WorkEnd = DefaultWorkEnd
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.CheckpointEvery == 0 {
		cfg.CheckpointEvery = DefaultCheckpointEvery
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultDriver
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}

	if cfg.Store.Path == "" || cfg.Log.File == "" {
		dir, err := Dir()
		if err != nil {
			return fmt.Errorf("resolve config dir: %w", err)
		}
		if cfg.Store.Path == "" {
			cfg.Store.Path = filepath.Join(dir, "paytrackr.db")
		}
		if cfg.Log.File == "" {
			cfg.Log.File = filepath.Join(dir, "paytrackr.log")
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"ACCOUNT":      &cfg.Account,
		"CURRENCY":     &cfg.Currency,
		"HOURLY_RATE":  &cfg.HourlyRate,
		"WORK_START":   &cfg.WorkStart,
		"WORK_END":     &cfg.WorkEnd,
		"STORE_DRIVER": &cfg.Store.Driver,
		"STORE_PATH":   &cfg.Store.Path,
		"DATABASE_URL": &cfg.Store.DSN,
		"LOG_LEVEL":    &cfg.Log.Level,
		"LOG_FILE":     &cfg.Log.File,
		"METRICS_ADDR": &cfg.MetricsAddr,
	}
	for name, dst := range strs {
		if val := os.Getenv(envPrefix + name); val != "" {
			*dst = val
		}
	}

	if val := os.Getenv(envPrefix + "TICK_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid %sTICK_INTERVAL: must be a duration, got %q", envPrefix, val)
		}
		cfg.TickInterval = d
	}

	if val := os.Getenv(envPrefix + "CHECKPOINT_EVERY"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %sCHECKPOINT_EVERY: must be an integer, got %q", envPrefix, val)
		}
		cfg.CheckpointEvery = i
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	return nil
}

func validate(cfg *Config) error {
	rate, err := decimal.NewFromString(strings.TrimSpace(cfg.HourlyRate))
	if err != nil {
		return fmt.Errorf("hourly_rate must be a number, got %q", cfg.HourlyRate)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("hourly_rate must be positive, got %s", rate)
	}

	start, err := clock.ParseTimeOfDay(cfg.WorkStart)
	if err != nil {
		return fmt.Errorf("work_start: %w", err)
	}
	end, err := clock.ParseTimeOfDay(cfg.WorkEnd)
	if err != nil {
		return fmt.Errorf("work_end: %w", err)
	}
	if start.Seconds() >= end.Seconds() {
		return fmt.Errorf("work_start %s must be before work_end %s", start, end)
	}

	if cfg.TickInterval < MinTickInterval {
		return fmt.Errorf("tick_interval must be at least %s, got %s", MinTickInterval, cfg.TickInterval)
	}
	if cfg.CheckpointEvery < 1 {
		return fmt.Errorf("checkpoint_every must be at least 1, got %d", cfg.CheckpointEvery)
	}

	switch cfg.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}
	return nil
}

// Settings converts the validated configuration for the tracker.
func (c *Config) Settings() earnings.Settings {
	return earnings.Settings{
		Rate:            earnings.NewRate(decimal.RequireFromString(strings.TrimSpace(c.HourlyRate))),
		WorkStart:       clock.MustParseTimeOfDay(c.WorkStart),
		WorkEnd:         clock.MustParseTimeOfDay(c.WorkEnd),
		Tick:            c.TickInterval,
		CheckpointEvery: c.CheckpointEvery,
	}
}
