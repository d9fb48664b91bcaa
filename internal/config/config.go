package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config for one console session.
type Config struct {
	API struct {
		BaseURL  string `yaml:"base_url"`
		WSURL    string `yaml:"ws_url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"api"`

	Engine struct {
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		BackoffBase     time.Duration `yaml:"backoff_base"`
		BackoffMax      time.Duration `yaml:"backoff_max"`
	} `yaml:"engine"`

	Listen string `yaml:"listen"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.API.BaseURL = "http://localhost:8000"
	cfg.API.WSURL = "ws://localhost:8000/ws/alerts"
	cfg.Engine.RefreshInterval = 5 * time.Minute
	cfg.Engine.BackoffBase = time.Second
	cfg.Engine.BackoffMax = 30 * time.Second
	cfg.Listen = ":9090"
	return cfg
}

// Load reads the YAML file at path (missing file is fine, defaults apply)
// and applies env overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.Engine.RefreshInterval < 10*time.Second {
		cfg.Engine.RefreshInterval = 10 * time.Second
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONSOLE_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("CONSOLE_WS_URL"); v != "" {
		cfg.API.WSURL = v
	}
	if v := os.Getenv("CONSOLE_USERNAME"); v != "" {
		cfg.API.Username = v
	}
	if v := os.Getenv("CONSOLE_PASSWORD"); v != "" {
		cfg.API.Password = v
	}
	if v := os.Getenv("CONSOLE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("CONSOLE_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.RefreshInterval = d
		}
	}
}
