package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, strips comments, expands ${{ .Env.VAR }}
// templates, unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates (before stripping, since templates are in strings)
	expanded := expandEnvTemplates(string(data))

	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with every default applied, used when no config
// file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8420
	}
	if cfg.Model.Driver == "" {
		cfg.Model.Driver = "openai"
	}
	if cfg.Model.Model == "" {
		cfg.Model.Model = "gpt-4o-mini"
	}
	if cfg.Embedding.Driver == "" {
		cfg.Embedding.Driver = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dims == 0 {
		cfg.Embedding.Dims = 1536
	}
	if cfg.Listings.File == "" {
		cfg.Listings.File = "listings.yaml"
	}
	if cfg.Listings.DataDir == "" {
		cfg.Listings.DataDir = ".jibsa"
	}
	if cfg.SavedList.Path == "" {
		cfg.SavedList.Path = "jibsa.db"
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Cache.TTL.Duration() == 0 {
		cfg.Cache.TTL = Duration(300 * time.Second)
	}
	if cfg.Cache.SweepCron == "" {
		cfg.Cache.SweepCron = "*/5 * * * *"
	}
}
