// Package config loads settings from an optional TOML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SEQMC_ENGINE_BATCH_SIZE.
const EnvPrefix = "SEQMC"

// DotEnv is read into the environment by Load when it exists.
const DotEnv = ".env"

type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Server  ServerConfig  `mapstructure:"server"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type EngineConfig struct {
	// Variates per generation call.
	BatchSize int `mapstructure:"batch_size"`
	// CPU backend pool size; 0 means GOMAXPROCS.
	Workers int `mapstructure:"workers"`
	// Uniform seed; 0 seeds from the clock.
	Seed uint64 `mapstructure:"seed"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// Upper bound on one simulation request.
	Timeout time.Duration `mapstructure:"timeout"`
	// Requests per second allowed per client key.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
	// bcrypt hash of the API key. Empty disables authentication.
	APIKeyHash string `mapstructure:"api_key_hash"`
}

type LoggerConfig struct {
	// debug, info, warn, error
	Level string `mapstructure:"level"`
	// json or text
	Format string `mapstructure:"format"`
	// stdout, file or both
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads path if it is non-empty, then applies environment overrides on
// top of the defaults. Variables from DotEnv never replace ones already set.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(DotEnv); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Engine.BatchSize <= 0 {
		return fmt.Errorf("engine.batch_size must be positive, got %d", c.Engine.BatchSize)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be non-negative, got %d", c.Engine.Workers)
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Server.RateLimit <= 0 || c.Server.Burst <= 0 {
		return fmt.Errorf("server.rate_limit and server.burst must be positive")
	}
	switch c.Logger.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logger.format: %q", c.Logger.Format)
	}
	switch c.Logger.Output {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("invalid logger.output: %q", c.Logger.Output)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.batch_size", 10000)
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.seed", 0)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.api_key_hash", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/seqmc.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
