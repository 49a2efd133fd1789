package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		CookieSecret string `yaml:"cookie_secret"`
		SecureCookie bool   `yaml:"secure_cookie"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Catalog struct {
		Dir     string `yaml:"dir"`
		Pattern string `yaml:"pattern"`
	} `yaml:"catalog"`
	Quiz struct {
		TTL            string `yaml:"ttl"`
		SessionTTL     string `yaml:"session_ttl"`
		MaxRetryRounds int    `yaml:"max_retry_rounds"`
	} `yaml:"quiz"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
}

// Load reads YAML config from path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
