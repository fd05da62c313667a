package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BackupConfig controls periodic SQLite snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Interval returns the time between backups, defaulting to a day.
func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

type Config struct {
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	HTTP struct {
		Port           int     `yaml:"port"`
		APIKey         string  `yaml:"api_key"`
		WriteRateLimit float64 `yaml:"write_rate_limit"` // requests per second
		WriteBurst     int     `yaml:"write_burst"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Reconciler struct {
		IntervalSeconds int    `yaml:"interval_seconds"`
		Timezone        string `yaml:"timezone"`
		LockTTLSeconds  int    `yaml:"lock_ttl_seconds"`
	} `yaml:"reconciler"`

	Catalog struct {
		Path                  string `yaml:"path"`
		ReloadIntervalSeconds int    `yaml:"reload_interval_seconds"`
	} `yaml:"catalog"`
}

// Load reads the service configuration. A .env file next to the process is
// loaded first when present so ${VAR} placeholders can come from it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/backoffice.db"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "configs/catalog.yaml"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ReconcileInterval is how often cached availability flags are recomputed.
func (c *Config) ReconcileInterval() time.Duration {
	if c.Reconciler.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Reconciler.IntervalSeconds) * time.Second
}

// LockTTL bounds how long a crashed instance can hold the reconcile lock.
func (c *Config) LockTTL() time.Duration {
	if c.Reconciler.LockTTLSeconds <= 0 {
		return 2 * c.ReconcileInterval()
	}
	return time.Duration(c.Reconciler.LockTTLSeconds) * time.Second
}

// Location returns the restaurant time zone used for every clock reading.
func (c *Config) Location() (*time.Location, error) {
	if c.Reconciler.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Reconciler.Timezone)
}

func (c *Config) CatalogReloadInterval() time.Duration {
	if c.Catalog.ReloadIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.ReloadIntervalSeconds) * time.Second
}

func (c *Config) HTTPPort() int {
	if c.HTTP.Port == 0 {
		return 8080
	}
	return c.HTTP.Port
}
