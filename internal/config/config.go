package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

type RunnerConfig struct {
	Workers   int           `mapstructure:"workers"`
	MaxMemory string        `mapstructure:"max_memory"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Network   bool          `mapstructure:"network"`
}

type ClientConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type BusConfig struct {
	// URL of a NATS broker. Empty means jobs run in-process.
	URL string `mapstructure:"url"`
}

type Config struct {
	Server        ServerConfig  `mapstructure:"server"`
	Runner        RunnerConfig  `mapstructure:"runner"`
	Client        ClientConfig  `mapstructure:"client"`
	Storage       StorageConfig `mapstructure:"storage"`
	Bus           BusConfig     `mapstructure:"bus"`
	LanguagesFile string        `mapstructure:"languages_file"`
}

// Load reads code-run.yaml from the working directory or ~/.code-run.
// A missing config file is fine; defaults cover every knob.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("code-run")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.code-run")

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.base_url", "http://localhost:8090")
	v.SetDefault("runner.workers", 2)
	v.SetDefault("runner.max_memory", "256m")
	v.SetDefault("runner.timeout", "30s")
	v.SetDefault("runner.network", false)
	v.SetDefault("client.poll_interval", "1s")
	v.SetDefault("client.max_poll_attempts", 60)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".code-run", "jobs.db"))
	v.SetDefault("bus.url", "")
	v.SetDefault("languages_file", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}
