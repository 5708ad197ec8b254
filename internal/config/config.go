package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		GridTTLSeconds int `yaml:"grid_ttl_seconds"`
	} `yaml:"cache"`

	Locks struct {
		TTLMinutes           int     `yaml:"ttl_minutes"`
		SweepIntervalMinutes int     `yaml:"sweep_interval_minutes"`
		AcquirePerSecond     float64 `yaml:"acquire_per_second"`
		AcquireBurst         int     `yaml:"acquire_burst"`
	} `yaml:"locks"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup BackupConfig `yaml:"backup"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	StoragePath   string `yaml:"storage_path"`
	IntervalHours int    `yaml:"interval_hours"`
	RetentionDays int    `yaml:"retention_days"`
}

func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
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

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/bookgrid.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}
	if cfg.Backup.Enabled && cfg.Backup.StoragePath == "" {
		cfg.Backup.StoragePath = "data/backups"
	}

	return &cfg, nil
}

func (c *Config) LockTTL() time.Duration {
	if c.Locks.TTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Locks.TTLMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	if c.Locks.SweepIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Locks.SweepIntervalMinutes) * time.Minute
}

func (c *Config) GridCacheTTL() time.Duration {
	if c.Cache.GridTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Cache.GridTTLSeconds) * time.Second
}

func (c *Config) AcquireRate() (perSecond float64, burst int) {
	perSecond = c.Locks.AcquirePerSecond
	if perSecond <= 0 {
		perSecond = 50
	}
	burst = c.Locks.AcquireBurst
	if burst <= 0 {
		burst = 100
	}
	return perSecond, burst
}
