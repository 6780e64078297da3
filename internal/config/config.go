// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the YAML configuration: listen address and
// startup dry-run mode, the upstream CDN zone/credentials, the Postgres
// connection, and the tracing exporter target.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	flerrors "github.com/crypto-pepe/firewall-executor/internal/errors"
)

// Server controls the HTTP listener and the initial mode-gate state.
type Server struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	DryRun bool   `yaml:"dry_run"`
}

// Cloudflare describes the upstream CDN zone this instance manages.
type Cloudflare struct {
	BaseURL             string `yaml:"base_url"`
	AccountID           string `yaml:"account_id"`
	ZoneID              string `yaml:"zone_id"`
	Token               string `yaml:"token"`
	InvalidationTimeout string `yaml:"invalidation_timeout"`
}

// Timeout parses InvalidationTimeout, defaulting to 10s (the recommended
// upstream HTTP client timeout) when unset.
func (c Cloudflare) Timeout() (time.Duration, error) {
	if c.InvalidationTimeout == "" {
		return 10 * time.Second, nil
	}
	d, err := time.ParseDuration(c.InvalidationTimeout)
	if err != nil {
		return 0, flerrors.Wrapf(err, flerrors.KindBadRequest, "parse cloudflare.invalidation_timeout %q", c.InvalidationTimeout)
	}
	return d, nil
}

// DB describes the Postgres connection backing the store.
type DB struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DB       string `yaml:"db"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

// Tracing describes the span exporter.
type Tracing struct {
	ServiceName    string `yaml:"svc_name"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

// Config is the root of the YAML configuration document.
type Config struct {
	Server     Server     `yaml:"server"`
	Cloudflare Cloudflare `yaml:"cloudflare"`
	DB         DB         `yaml:"db"`
	Tracing    Tracing    `yaml:"tracing"`
}

// Load reads and parses the YAML configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, flerrors.Wrapf(err, flerrors.KindOther, "read config file %q", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, flerrors.Wrapf(err, flerrors.KindOther, "parse config file %q", path)
	}
	return &cfg, nil
}
