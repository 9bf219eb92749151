// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/userauth/internal/xdg"
)

// DatabaseURLEnv is read when no database URL is configured.
const DatabaseURLEnv = "DATABASE_URL"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":       "http.addr",
	"auth-mode":       "auth.mode",
	"session-cookie":  "auth.session_cookie",
	"excluded-path":   "auth.excluded_paths",
	"store":           "store.driver",
	"database-url":    "store.database_url",
	"auto-migrate":    "store.auto_migrate",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"metrics-addr":    "metrics.addr",
	"control-addr":    "control.addr",
	"connect-retries": "store.connect_attempts",
}

// RegisterFlags adds the configuration flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("http-addr", d.HTTP.Addr, "API listen address")
	flags.String("auth-mode", d.Auth.Mode, "authentication mode (auto, none, basic or session)")
	flags.String("session-cookie", d.Auth.SessionCookie, "session cookie name")
	flags.StringSlice("excluded-path", d.Auth.ExcludedPaths, "path that skips authentication; a trailing * matches a prefix (repeatable)")
	flags.String("store", d.Store.Driver, "user store (postgres or memory)")
	flags.String("database-url", "", "PostgreSQL connection string (default: $"+DatabaseURLEnv+")")
	flags.Bool("auto-migrate", d.Store.AutoMigrate, "apply pending migrations at startup")
	flags.Int("connect-retries", d.Store.ConnectAttempts, "database connection attempts at startup")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn or error)")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("control-addr", d.Control.Addr, "gRPC health address (empty = disabled)")
}

// DefaultPath returns the configuration file read when none is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// Load builds a Config from defaults, the YAML file at path and the
// changed flags in flags. An empty path reads DefaultPath if it exists.
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := setDefaults(k); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := loadFile(k, path, explicit); err != nil {
		return nil, err
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	if cfg.Store.DatabaseURL == "" {
		cfg.Store.DatabaseURL = os.Getenv(DatabaseURLEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) error {
	d := Default()
	defaults := map[string]any{
		"version":                d.Version,
		"http.addr":              d.HTTP.Addr,
		"auth.mode":              d.Auth.Mode,
		"auth.session_cookie":    d.Auth.SessionCookie,
		"auth.excluded_paths":    d.Auth.ExcludedPaths,
		"store.driver":           d.Store.Driver,
		"store.connect_attempts": d.Store.ConnectAttempts,
		"store.connect_backoff":  d.Store.ConnectBackoff,
		"store.auto_migrate":     d.Store.AutoMigrate,
		"log.level":              d.Log.Level,
		"log.format":             d.Log.Format,
		"metrics.addr":           d.Metrics.Addr,
		"control.addr":           d.Control.Addr,
	}
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}
	return nil
}

// loadFile validates and loads the YAML file at path. A missing file is an
// error only when the path was given explicitly.
func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}

	if err := ValidateYAML(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}

	if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
