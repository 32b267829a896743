// Package config loads runtime configuration for the PBX switch from CLI
// flags and environment variables, following the same precedence and
// flag.FlagSet-based parsing the rest of this codebase's ancestry uses.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the PBX switch.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	Port            int
	AdminPort       int
	MaxExtensions   int
	LogLevel        string
	LogFormat       string
	ShutdownTimeout int // seconds
}

const (
	defaultAdminPort       = 9090
	defaultMaxExtensions   = 1024
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultShutdownTimeout = 15
)

// envPrefix is the prefix for all PBX environment variables.
const envPrefix = "PBX_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults. -p (the switch's listen
// port) is required, matching the CLI contract in §6 of the spec.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("pbx", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "p", 0, "TCP port the switch listens on for client connections (required)")
	fs.IntVar(&cfg.AdminPort, "admin-port", defaultAdminPort, "HTTP port for the read-only admin/status/metrics surface (0 disables it)")
	fs.IntVar(&cfg.MaxExtensions, "max-extensions", defaultMaxExtensions, "maximum number of extensions the registry can hold")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.IntVar(&cfg.ShutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "seconds to wait for connections to drain on shutdown")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was
// not explicitly provided on the command line, preserving CLI > env >
// default precedence.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	if !set["p"] {
		if v := os.Getenv(envPrefix + "PORT"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.Port = n
			}
		}
	}
	if !set["admin-port"] {
		if v := os.Getenv(envPrefix + "ADMIN_PORT"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.AdminPort = n
			}
		}
	}
	if !set["max-extensions"] {
		if v := os.Getenv(envPrefix + "MAX_EXTENSIONS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.MaxExtensions = n
			}
		}
	}
	if !set["log-level"] {
		if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
			cfg.LogLevel = v
		}
	}
	if !set["log-format"] {
		if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
			cfg.LogFormat = v
		}
	}
	if !set["shutdown-timeout"] {
		if v := os.Getenv(envPrefix + "SHUTDOWN_TIMEOUT"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.ShutdownTimeout = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("-p must be between 1 and 65535, got %d", c.Port)
	}
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		return fmt.Errorf("admin-port must be between 0 and 65535, got %d", c.AdminPort)
	}
	if c.MaxExtensions < 1 {
		return fmt.Errorf("max-extensions must be positive, got %d", c.MaxExtensions)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log-format must be text or json, got %q", c.LogFormat)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown-timeout must not be negative, got %d", c.ShutdownTimeout)
	}
	return nil
}

// SlogHandler returns a slog.Handler configured with the appropriate
// format (text or json) and level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AdminEnabled reports whether the admin HTTP surface should be started.
// Operators can set -admin-port 0 to disable it entirely.
func (c *Config) AdminEnabled() bool {
	return c.AdminPort != 0
}
