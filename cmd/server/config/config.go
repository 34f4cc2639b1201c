// Package config loads server configuration from defaults, an optional
// YAML file, and DOCFUSION_* environment variables, in increasing order of
// precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/docfusion/docfusion/pkg/cache"
	"github.com/docfusion/docfusion/pkg/infrastructure/pool"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig  `mapstructure:"server"`
	Database pool.Config   `mapstructure:"database"`
	Cache    cache.Config  `mapstructure:"cache"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Auth     AuthConfig    `mapstructure:"auth"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ScanBatchSize   int           `mapstructure:"scan_batch_size"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// AuthConfig controls API authentication. Disabled by default; /health and
// /metrics are never guarded.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Load reads configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOCFUSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.scan_batch_size", 1000)

	v.SetDefault("database.dsn", "postgres://localhost:5432/docfusion?sslmode=disable")
	v.SetDefault("database.max_size", 10)
	v.SetDefault("database.min_idle", 2)
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.retry_attempts", 3)
	v.SetDefault("database.retry_backoff", 100*time.Millisecond)

	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_cached_rows", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("auth.enabled", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "docfusion")
}

// Validate checks cross-field constraints and fills nested defaults.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.enabled requires auth.api_key or auth.jwt_secret")
	}
	c.Database.Validate()
	c.Cache.Validate()
	return nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
