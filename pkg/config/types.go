package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent rotachat configuration stored as
// config.toml in the .rotachat/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Storage StorageConfig `toml:"storage"`
	Relay   RelayConfig   `toml:"relay"`
	API     APIConfig     `toml:"api"`
	Auth    AuthConfig    `toml:"auth"`
	Events  EventsConfig  `toml:"events"`
	Client  ClientConfig  `toml:"client"`
}

// StorageConfig holds shared storage settings used by both relay and API.
type StorageConfig struct {
	// Driver selects the backing store: sqlite, postgres, or memory.
	Driver string `toml:"driver,omitempty"`

	// DSN is the driver-specific connection string. For sqlite this is
	// a file path; empty means a path inside the .rotachat/ directory.
	DSN string `toml:"dsn,omitempty"`

	// AutoMigrate runs schema migrations on startup.
	AutoMigrate bool `toml:"auto_migrate,omitempty"`
}

// RelayConfig holds relay-specific settings.
type RelayConfig struct {
	Listen string `toml:"listen,omitempty"`

	// AnonKey is the shared project key clients must present.
	AnonKey string `toml:"anon_key,omitempty"`

	// LogResolveFailures also records usage rows for requests that never
	// reached an upstream (unknown model, missing secret).
	LogResolveFailures bool `toml:"log_resolve_failures,omitempty"`

	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// APIConfig holds audit API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// AuthConfig selects how the relay verifies bearer tokens.
type AuthConfig struct {
	// Provider is "static" (tokens from config/env, local dev) or
	// "http" (verify against an external auth service).
	Provider string `toml:"provider,omitempty"`

	// Target is the auth service base URL when provider is "http".
	Target string `toml:"target,omitempty"`
}

// EventsConfig selects where usage events are published.
type EventsConfig struct {
	// Provider is "nop" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the
// running relay and API servers (e.g. rotachat chat, rotachat usage).
// Targets are full URLs (scheme + host + port).
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty"`
	APITarget   string `toml:"api_target,omitempty"`

	// Model is the identifier of the last selected model.
	Model string `toml:"model,omitempty"`

	// HistoryPath is the local conversation database. Empty means a
	// file inside the .rotachat/ directory.
	HistoryPath string `toml:"history_path,omitempty"`

	// Window bounds user turns sent per request.
	Window uint `toml:"window,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.dsn": {
		get: func(c *Config) string { return c.Storage.DSN },
		set: func(c *Config, v string) error { c.Storage.DSN = v; return nil },
	},
	"storage.auto_migrate": {
		get: func(c *Config) string { return strconv.FormatBool(c.Storage.AutoMigrate) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for storage.auto_migrate: %w", err)
			}
			c.Storage.AutoMigrate = b
			return nil
		},
	},
	"relay.listen": {
		get: func(c *Config) string { return c.Relay.Listen },
		set: func(c *Config, v string) error { c.Relay.Listen = v; return nil },
	},
	"relay.anon_key": {
		get: func(c *Config) string { return c.Relay.AnonKey },
		set: func(c *Config, v string) error { c.Relay.AnonKey = v; return nil },
	},
	"relay.log_resolve_failures": {
		get: func(c *Config) string { return strconv.FormatBool(c.Relay.LogResolveFailures) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for relay.log_resolve_failures: %w", err)
			}
			c.Relay.LogResolveFailures = b
			return nil
		},
	},
	"relay.workers": {
		get: func(c *Config) string { return formatUint(c.Relay.Workers) },
		set: func(c *Config, v string) error { return parseUint(v, "relay.workers", &c.Relay.Workers) },
	},
	"relay.queue_size": {
		get: func(c *Config) string { return formatUint(c.Relay.QueueSize) },
		set: func(c *Config, v string) error { return parseUint(v, "relay.queue_size", &c.Relay.QueueSize) },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"auth.provider": {
		get: func(c *Config) string { return c.Auth.Provider },
		set: func(c *Config, v string) error { c.Auth.Provider = v; return nil },
	},
	"auth.target": {
		get: func(c *Config) string { return c.Auth.Target },
		set: func(c *Config, v string) error { c.Auth.Target = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = nil
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Events.Brokers = append(c.Events.Brokers, b)
				}
			}
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"client.relay_target": {
		get: func(c *Config) string { return c.Client.RelayTarget },
		set: func(c *Config, v string) error { c.Client.RelayTarget = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"client.model": {
		get: func(c *Config) string { return c.Client.Model },
		set: func(c *Config, v string) error { c.Client.Model = v; return nil },
	},
	"client.history_path": {
		get: func(c *Config) string { return c.Client.HistoryPath },
		set: func(c *Config, v string) error { c.Client.HistoryPath = v; return nil },
	},
	"client.window": {
		get: func(c *Config) string { return formatUint(c.Client.Window) },
		set: func(c *Config, v string) error { return parseUint(v, "client.window", &c.Client.Window) },
	},
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(v, key string, target *uint) error {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*target = uint(n)
	return nil
}
