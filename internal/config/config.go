// Package config loads the demonstration CLI's settings: worker count,
// log level, and log format. The core taski package takes no
// configuration of its own (spec.md §6.5) — this is purely an ambient
// concern of cmd/taski.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is cmd/taski's resolved configuration.
type Config struct {
	Workers   int    `mapstructure:"workers"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "json" or "console"
}

// Load builds a Config from (in ascending priority) defaults, a config
// file named .taski.yaml on the search path, and TASKI_-prefixed
// environment variables; cmdPath, if non-empty, is loaded explicitly.
func Load(cmdPath string) (Config, error) {
	v := viper.New()
	v.SetDefault("workers", 0) // 0 means "use runtime.NumCPU()"
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetEnvPrefix("TASKI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if cmdPath != "" {
		v.SetConfigFile(cmdPath)
	} else {
		v.SetConfigName(".taski")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
