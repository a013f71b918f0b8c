// Package config loads engine configuration from file, environment, and
// defaults via viper, mirroring the nested mapstructure convention used
// throughout this codebase's ambient stack.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/sonora-audio/sonora/internal/platform"
)

type Config struct {
	Debug bool `mapstructure:"debug"`

	Store struct {
		Root      string `mapstructure:"root"`
		EnableWAL bool   `mapstructure:"enable_wal"`
	} `mapstructure:"store"`

	Audio struct {
		SampleRate      int     `mapstructure:"sample_rate"`
		Channels        int     `mapstructure:"channels"`
		RingSeconds     float64 `mapstructure:"ring_seconds"`
		DefaultVolume   int     `mapstructure:"default_volume"`
		ResampleQuality string  `mapstructure:"resample_quality"`
	} `mapstructure:"audio"`

	Heartbeat struct {
		IntervalMs      int `mapstructure:"interval_ms"`
		PreProbeMs      int `mapstructure:"pre_probe_ms"`
		PreviousResetMs int `mapstructure:"previous_reset_ms"`
	} `mapstructure:"heartbeat"`

	Clock struct {
		Partitions []ClockPartition `mapstructure:"partitions"`
		Pulses     []ClockPulse     `mapstructure:"pulses"`
	} `mapstructure:"clock"`

	Search struct {
		MaxResults     int     `mapstructure:"max_results"`
		FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	} `mapstructure:"search"`

	Import struct {
		MaxScanDepth   int `mapstructure:"max_scan_depth"`
		ScanRatePerSec int `mapstructure:"scan_rate_per_sec"`
	} `mapstructure:"import"`
}

type ClockPartition struct {
	Name    string `mapstructure:"name"`
	Modulus int    `mapstructure:"modulus"`
}

type ClockPulse struct {
	Name  string `mapstructure:"name"`
	Every int    `mapstructure:"every"`
}

// Load reads configuration from configPath (if non-empty), the platform
// config directory, environment variables prefixed SONORA_, and defaults.
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		configDir, err := platform.GetConfigDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SONORA")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if root := os.Getenv(platform.RootEnvVar); root != "" {
		cfg.Store.Root = root
	}
	if cfg.Store.Root == "" {
		root, err := platform.Root()
		if err != nil {
			return nil, err
		}
		cfg.Store.Root = root
	}

	if err := os.MkdirAll(cfg.Store.Root, 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("store.enable_wal", true)

	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.channels", 2)
	viper.SetDefault("audio.ring_seconds", 4.0)
	viper.SetDefault("audio.default_volume", 70)
	viper.SetDefault("audio.resample_quality", "linear")

	viper.SetDefault("heartbeat.interval_ms", 250)
	viper.SetDefault("heartbeat.pre_probe_ms", 3000)
	viper.SetDefault("heartbeat.previous_reset_ms", 3000)

	viper.SetDefault("search.max_results", 100)
	viper.SetDefault("search.fuzzy_threshold", 0.6)

	viper.SetDefault("import.max_scan_depth", 32)
	viper.SetDefault("import.scan_rate_per_sec", 200)
}

// SonoraDBPath is the single-file sqlite database backing the store.
func (c *Config) SonoraDBPath() string {
	return filepath.Join(c.Store.Root, "sonora.db")
}
