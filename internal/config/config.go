// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads userauth configuration from defaults, a YAML file
// and command-line flags, in that order of precedence.
package config

import (
	"time"

	"github.com/samber/oops"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete userauth configuration.
type Config struct {
	Version string        `koanf:"version" json:"version,omitempty" jsonschema:"description=Configuration format version"`
	HTTP    HTTPConfig    `koanf:"http" json:"http,omitempty"`
	Auth    AuthConfig    `koanf:"auth" json:"auth,omitempty"`
	Store   StoreConfig   `koanf:"store" json:"store,omitempty"`
	Log     LogConfig     `koanf:"log" json:"log,omitempty"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics,omitempty"`
	Control ControlConfig `koanf:"control" json:"control,omitempty"`
}

// HTTPConfig configures the user API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=API listen address"`
}

// AuthConfig configures request authentication.
type AuthConfig struct {
	Mode          string   `koanf:"mode" json:"mode,omitempty" jsonschema:"enum=auto,enum=none,enum=basic,enum=session"`
	SessionCookie string   `koanf:"session_cookie" json:"session_cookie,omitempty" jsonschema:"description=Cookie carrying the session token"`
	ExcludedPaths []string `koanf:"excluded_paths" json:"excluded_paths,omitempty" jsonschema:"description=Paths that skip authentication; a trailing * matches a prefix"`
}

// StoreConfig selects and configures the user store.
type StoreConfig struct {
	Driver          string `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=postgres,enum=memory"`
	DatabaseURL     string `koanf:"database_url" json:"database_url,omitempty" jsonschema:"description=PostgreSQL connection string"`
	ConnectAttempts int    `koanf:"connect_attempts" json:"connect_attempts,omitempty" jsonschema:"minimum=1"`
	ConnectBackoff  string `koanf:"connect_backoff" json:"connect_backoff,omitempty" jsonschema:"description=Initial delay between connection attempts"`
	AutoMigrate     bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level      string   `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format     string   `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	RedactKeys []string `koanf:"redact_keys" json:"redact_keys,omitempty" jsonschema:"description=Attribute keys whose values are masked"`
}

// MetricsConfig configures the metrics and health listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Metrics listen address; empty disables"`
}

// ControlConfig configures the gRPC health listener.
type ControlConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=gRPC health listen address; empty disables"`
}

// Default values.
const (
	DefaultVersion         = "1"
	DefaultHTTPAddr        = "127.0.0.1:5000"
	DefaultMetricsAddr     = "127.0.0.1:9100"
	DefaultControlAddr     = "127.0.0.1:9101"
	DefaultAuthMode        = "auto"
	DefaultSessionCookie   = "session_id"
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = "500ms"
)

// DefaultExcludedPaths are the paths reachable without credentials.
var DefaultExcludedPaths = []string{
	"/",
	"/api/v1/status/",
	"/users/",
	"/sessions/",
	"/profile/",
	"/reset_password/",
	"/auth_session/login/",
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Version: DefaultVersion,
		HTTP:    HTTPConfig{Addr: DefaultHTTPAddr},
		Auth: AuthConfig{
			Mode:          DefaultAuthMode,
			SessionCookie: DefaultSessionCookie,
			ExcludedPaths: append([]string(nil), DefaultExcludedPaths...),
		},
		Store: StoreConfig{
			Driver:          DriverPostgres,
			ConnectAttempts: DefaultConnectAttempts,
			ConnectBackoff:  DefaultConnectBackoff,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{Addr: DefaultMetricsAddr},
		Control: ControlConfig{Addr: DefaultControlAddr},
	}
}

// Validate checks values that the schema cannot express or that may have
// come from flags.
func (c *Config) Validate() error {
	if err := checkVersion(c.Version); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").With("field", "http.addr").Errorf("http address is required")
	}
	switch c.Auth.Mode {
	case "auto", "none", "basic", "session":
	default:
		return oops.Code("CONFIG_INVALID").
			With("field", "auth.mode").
			Errorf("auth mode must be auto, none, basic or session, got %q", c.Auth.Mode)
	}
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").
				With("field", "store.database_url").
				Errorf("database URL is required for the postgres store (set DATABASE_URL)")
		}
	case DriverMemory:
	default:
		return oops.Code("CONFIG_INVALID").
			With("field", "store.driver").
			Errorf("store driver must be postgres or memory, got %q", c.Store.Driver)
	}
	if c.Store.ConnectAttempts < 1 {
		return oops.Code("CONFIG_INVALID").
			With("field", "store.connect_attempts").
			Errorf("connect attempts must be at least 1, got %d", c.Store.ConnectAttempts)
	}
	if _, err := c.Store.Backoff(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("field", "log.format").
			Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}

// Backoff parses ConnectBackoff.
func (s StoreConfig) Backoff() (time.Duration, error) {
	d, err := time.ParseDuration(s.ConnectBackoff)
	if err != nil {
		return 0, oops.Code("CONFIG_INVALID").
			With("field", "store.connect_backoff").
			Wrap(err)
	}
	if d <= 0 {
		return 0, oops.Code("CONFIG_INVALID").
			With("field", "store.connect_backoff").
			Errorf("connect backoff must be positive, got %s", d)
	}
	return d, nil
}
