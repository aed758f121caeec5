// Package config loads scan settings from a config file and environment
// variables. Configuration problems never abort a scan: a malformed file or
// an out-of-range value degrades to a warning and the documented default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jward/understory/internal/report"
	"github.com/jward/understory/internal/resolve"
	"github.com/jward/understory/internal/scan"
)

// configName is the config file name without extension.
const configName = ".understory"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for understory settings.
const envPrefix = "UNDERSTORY"

// Config holds the recognized scan settings.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
	SourceRoots    []string `mapstructure:"source_roots"`
	SampleLimit    int      `mapstructure:"sample_limit"`
	MaxFiles       int      `mapstructure:"max_files"`
	Workers        int      `mapstructure:"workers"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	return &Config{
		IgnorePatterns: scan.DefaultIgnorePatterns,
		SourceRoots:    resolve.DefaultSourceRoots,
		SampleLimit:    report.DefaultSampleLimit,
		MaxFiles:       0, // unlimited
		Workers:        0, // engine picks GOMAXPROCS
	}
}

// Load reads configuration from configPath (or, when empty, .understory.yaml
// in the working directory or $HOME) with UNDERSTORY_* env overrides. It
// never fails: every problem is reported as a warning and the affected
// settings fall back to their defaults.
func Load(configPath string) (*Config, []string) {
	var warnings []string

	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			warnings = append(warnings, fmt.Sprintf("config: %v; using defaults", err))
			return Default(), warnings
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		warnings = append(warnings, fmt.Sprintf("config: %v; using defaults", err))
		return Default(), warnings
	}

	return sanitize(&cfg, warnings)
}

// sanitize replaces invalid field values with their defaults, one warning
// per field.
func sanitize(cfg *Config, warnings []string) (*Config, []string) {
	def := Default()

	if cfg.SampleLimit < 0 {
		warnings = append(warnings, fmt.Sprintf("config: sample_limit %d is negative; using %d", cfg.SampleLimit, def.SampleLimit))
		cfg.SampleLimit = def.SampleLimit
	}
	if cfg.MaxFiles < 0 {
		warnings = append(warnings, fmt.Sprintf("config: max_files %d is negative; using unlimited", cfg.MaxFiles))
		cfg.MaxFiles = def.MaxFiles
	}
	if cfg.Workers < 0 {
		warnings = append(warnings, fmt.Sprintf("config: workers %d is negative; using automatic", cfg.Workers))
		cfg.Workers = def.Workers
	}
	for _, pattern := range cfg.IgnorePatterns {
		if strings.TrimSpace(pattern) == "" {
			warnings = append(warnings, "config: ignore_patterns contains an empty pattern; using defaults")
			cfg.IgnorePatterns = def.IgnorePatterns
			break
		}
	}
	return cfg, warnings
}

func applyDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("ignore_patterns", def.IgnorePatterns)
	v.SetDefault("source_roots", def.SourceRoots)
	v.SetDefault("sample_limit", def.SampleLimit)
	v.SetDefault("max_files", def.MaxFiles)
	v.SetDefault("workers", def.Workers)
}
