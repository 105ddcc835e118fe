// Package config loads the vmjobs daemon configuration. Values are layered
// defaults, then an optional TOML file, then VMJOBS_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/darkh14/vmjobs"
)

// EnvPrefix prefixes every environment override: VMJOBS_SERVER_PORT sets
// server.port.
const EnvPrefix = "VMJOBS_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Service  ServiceConfig  `koanf:"service"`
	Store    StoreConfig    `koanf:"store"`
	Launcher LauncherConfig `koanf:"launcher"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ServiceConfig struct {
	Name string `koanf:"name"`
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	// Driver is one of memory, postgres, bun-postgres, sqlite, mysql,
	// redis or mongo.
	Driver   string `koanf:"driver"`
	DSN      string `koanf:"dsn"`
	Database string `koanf:"database"`
	Migrate  bool   `koanf:"migrate"`
}

type LauncherConfig struct {
	MaxActiveJobs   int           `koanf:"max_active_jobs"`
	LaunchRate      float64       `koanf:"launch_rate"`
	LaunchBurst     int           `koanf:"launch_burst"`
	JobTimeout      time.Duration `koanf:"job_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from the TOML file at path (if not empty) then
// overlays environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	// VMJOBS_LAUNCHER_MAX_ACTIVE_JOBS -> launcher.max_active_jobs: only the
	// first underscore separates the section.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		return strings.Replace(key, "_", ".", 1), value
	}), nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() map[string]any {
	def := vmjobs.DefaultConfig()
	return map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8070,

		"service.name": def.ServiceName,

		"store.driver":   "memory",
		"store.database": "vmjobs",
		"store.migrate":  true,

		"launcher.max_active_jobs":  def.MaxActiveJobs,
		"launcher.launch_rate":      def.LaunchRate,
		"launcher.launch_burst":     def.LaunchBurst,
		"launcher.job_timeout":      "0s",
		"launcher.shutdown_timeout": def.ShutdownTimeout.String(),

		"log.level":  "info",
		"log.format": "pretty",
	}
}

// Validate checks values koanf cannot.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "postgres", "bun-postgres", "sqlite", "mysql", "redis", "mongo":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("config: store.dsn is required for driver %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Launcher.MaxActiveJobs < 0 || c.Launcher.LaunchRate < 0 {
		return fmt.Errorf("config: launcher limits must not be negative")
	}
	return nil
}

// Options converts the launcher and service sections into dispatcher
// options.
func (c *Config) Options() []vmjobs.Option {
	return []vmjobs.Option{
		vmjobs.WithServiceName(c.Service.Name),
		vmjobs.WithMaxActiveJobs(c.Launcher.MaxActiveJobs),
		vmjobs.WithLaunchRate(c.Launcher.LaunchRate, c.Launcher.LaunchBurst),
		vmjobs.WithShutdownTimeout(c.Launcher.ShutdownTimeout),
	}
}
