package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"main/query"
)

// Config is the engine configuration, read from the environment with sane
// defaults for running without any setup.
type Config struct {
	PollInterval  time.Duration `env:"TRACKER_POLL_INTERVAL" envDefault:"2s"`
	IdleInterval  time.Duration `env:"TRACKER_IDLE_INTERVAL" envDefault:"5s"`
	IdleThreshold time.Duration `env:"TRACKER_IDLE_THRESHOLD" envDefault:"300s"`
	RuleCacheTTL  time.Duration `env:"TRACKER_RULE_TTL" envDefault:"60s"`
	ListenAddr    string        `env:"TRACKER_LISTEN_ADDR" envDefault:"127.0.0.1:8080"`
	DatabasePath  string        `env:"TRACKER_DB_PATH"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PollInterval <= 0 || cfg.IdleInterval <= 0 || cfg.IdleThreshold <= 0 || cfg.RuleCacheTTL <= 0 {
		return Config{}, fmt.Errorf("intervals must be positive")
	}
	if cfg.DatabasePath == "" {
		path, err := query.DefaultPath()
		if err != nil {
			return Config{}, err
		}
		cfg.DatabasePath = path
	}
	return cfg, nil
}
