// ABOUTME: Layered configuration for the buzz CLI using viper and godotenv
// ABOUTME: Maps settings onto the engine configuration
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Resonate-Protocol/buzz-go/pkg/buzz"
)

// EnvPrefix prefixes every environment variable
const EnvPrefix = "BUZZ"

// Config holds CLI settings
type Config struct {
	Backend        string        `mapstructure:"backend"`
	SampleRate     int           `mapstructure:"sample_rate"`
	Channels       int           `mapstructure:"channels"`
	MaxStreamNodes int           `mapstructure:"max_stream_nodes"`
	FreeInterval   time.Duration `mapstructure:"free_interval"`
	IdleThreshold  time.Duration `mapstructure:"idle_threshold"`
	AutoEnable     bool          `mapstructure:"auto_enable"`
	Volume         float64       `mapstructure:"volume"`
	Muted          bool          `mapstructure:"muted"`
	CacheDir       string        `mapstructure:"cache_dir"`
	LogFile        string        `mapstructure:"log_file"`
	LogLevel       string        `mapstructure:"log_level"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", "oto")
	v.SetDefault("sample_rate", 48000)
	v.SetDefault("channels", 2)
	v.SetDefault("max_stream_nodes", buzz.DefaultMaxStreamNodes)
	v.SetDefault("free_interval", buzz.DefaultFreeInterval)
	v.SetDefault("idle_threshold", buzz.DefaultIdleThreshold)
	v.SetDefault("auto_enable", true)
	v.SetDefault("volume", 1.0)
	v.SetDefault("muted", false)
	v.SetDefault("cache_dir", "")
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
}

// Load reads the configuration. path names an explicit config file; when
// empty buzz.yaml is searched in the working directory and ~/.config/buzz.
func Load(v *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("buzz")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "buzz"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1, got %v", c.Volume)
	}
	if c.MaxStreamNodes < 1 {
		return fmt.Errorf("max_stream_nodes must be at least 1, got %d", c.MaxStreamNodes)
	}
	if c.FreeInterval <= 0 || c.IdleThreshold <= 0 {
		return fmt.Errorf("free_interval and idle_threshold must be positive")
	}
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	return nil
}

// Engine returns the engine configuration for these settings
func (c *Config) Engine() buzz.Config {
	cfg := buzz.DefaultConfig()
	cfg.Backend = c.Backend
	cfg.SampleRate = c.SampleRate
	cfg.Channels = c.Channels
	cfg.MaxStreamNodes = c.MaxStreamNodes
	cfg.FreeInterval = c.FreeInterval
	cfg.IdleThreshold = c.IdleThreshold
	cfg.AutoEnable = c.AutoEnable
	cfg.Volume = c.Volume
	cfg.Muted = c.Muted
	cfg.CacheDir = c.CacheDir
	return cfg
}
