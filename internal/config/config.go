// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package config loads server configuration from an optional YAML file and
// command-line flags, flags winning when explicitly set.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default listen addresses.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
)

// Config holds the server configuration.
type Config struct {
	HTTP struct {
		Addr string `koanf:"addr"`
	} `koanf:"http"`
	Metrics struct {
		Addr string `koanf:"addr"`
	} `koanf:"metrics"`
	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`
	Log struct {
		Format string `koanf:"format"`
	} `koanf:"log"`
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (or set DATABASE_URL)")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}

// RegisterFlags declares the config keys as flags on the given set. Flag
// names use dots so posflag maps them straight onto config paths.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("http.addr", DefaultHTTPAddr, "HTTP API listen address")
	flags.String("metrics.addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("database.url", "", "PostgreSQL connection URL (defaults to DATABASE_URL)")
	flags.String("log.format", DefaultLogFormat, "log format (json or text)")
}

// Load builds the configuration: flag defaults, then the YAML file at path
// (if non-empty), then any flags the user set explicitly. The DATABASE_URL
// environment variable fills database.url when nothing else provided it.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	// posflag keeps file-provided values unless the flag was changed on the
	// command line.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "merge flags").
			Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	return &cfg, nil
}
