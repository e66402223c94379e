// Package config loads splitdeck's TOML configuration and resolves the data
// directory layout (~/.splitdeck with per-profile state under profiles/).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full config.toml structure.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Terminal    TerminalConfig    `toml:"terminal"`
	Discovery   DiscoveryConfig   `toml:"project_discovery"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Remote      RemoteConfig      `toml:"remote"`
	Push        PushConfig        `toml:"push"`
}

// ServerConfig is the [server] section.
type ServerConfig struct {
	Listen string `toml:"listen"` // listen address, default 127.0.0.1:8420
	Token  string `toml:"token"`  // auth token; empty means resolve from env or generate
}

// TerminalConfig is the [terminal] section.
type TerminalConfig struct {
	Shell           string `toml:"shell"`             // login shell for pane commands
	ScrollbackBytes int    `toml:"scrollback_bytes"`  // capture ring buffer size
	ArchiveBudgetMB int    `toml:"archive_budget_mb"` // scrollback archive directory budget
}

// DiscoveryConfig is the [project_discovery] section.
type DiscoveryConfig struct {
	Paths    []string `toml:"paths"`     // roots scanned for projects
	MaxDepth int      `toml:"max_depth"` // scan depth below each root
	Ignore   []string `toml:"ignore"`    // gitignore-style patterns to skip
}

// MaintenanceConfig is the [maintenance] section.
type MaintenanceConfig struct {
	Disabled        bool `toml:"disabled"`
	IntervalMinutes int  `toml:"interval_minutes"`
}

// RemoteConfig is the [remote] section. Presence of both project and topic
// turns the presence publisher on.
type RemoteConfig struct {
	Project         string `toml:"project"`
	Topic           string `toml:"topic"`
	CredentialsFile string `toml:"credentials_file"`
	HostID          string `toml:"host_id"`
}

// Enabled reports whether the presence publisher should run.
func (r RemoteConfig) Enabled() bool {
	return r.Project != "" && r.Topic != ""
}

// PushConfig is the [push] section for web push notifications.
type PushConfig struct {
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`
	Contact         string `toml:"contact"` // subscriber contact, mailto: or https:
}

// Configured reports whether push notifications can be sent.
func (p PushConfig) Configured() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// Default values applied after load.
const (
	DefaultListen          = "127.0.0.1:8420"
	DefaultScrollbackBytes = 256 * 1024
	DefaultArchiveBudgetMB = 200
	DefaultScanDepth       = 3
	DefaultMaintenanceMin  = 15
)

// DataDir returns the splitdeck data directory: $SPLITDECK_HOME when set,
// otherwise ~/.splitdeck.
func DataDir() (string, error) {
	if dir := os.Getenv("SPLITDECK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".splitdeck"), nil
}

// ProfileDir returns the state directory for a profile, under
// <data>/profiles/<profile>.
func ProfileDir(profile string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "profiles", profile), nil
}

// EffectiveProfile resolves the profile name: the explicit flag value wins,
// then $SPLITDECK_PROFILE, then "default".
func EffectiveProfile(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("SPLITDECK_PROFILE"); env != "" {
		return env
	}
	return "default"
}

// DefaultPath returns the default config file path, <data>/config.toml.
func DefaultPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "config.toml"), nil
}

// Load reads the config file and applies defaults. A missing file yields the
// defaults; a file that exists but does not parse is an error, since a
// silently ignored config could drop an auth token the user set.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills empty values and resets out-of-range ones.
func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Terminal.Shell == "" {
		c.Terminal.Shell = os.Getenv("SHELL")
	}
	if c.Terminal.Shell == "" {
		c.Terminal.Shell = "/bin/bash"
	}
	if c.Terminal.ScrollbackBytes <= 0 {
		c.Terminal.ScrollbackBytes = DefaultScrollbackBytes
	}
	if c.Terminal.ArchiveBudgetMB <= 0 {
		c.Terminal.ArchiveBudgetMB = DefaultArchiveBudgetMB
	}

	if c.Discovery.MaxDepth <= 0 {
		c.Discovery.MaxDepth = DefaultScanDepth
	}

	if c.Maintenance.IntervalMinutes <= 0 {
		c.Maintenance.IntervalMinutes = DefaultMaintenanceMin
	}

	if c.Push.Contact == "" {
		c.Push.Contact = "mailto:splitdeck@localhost"
	}
}

// ApplyEnvOverrides lets environment variables win over file values:
// SPLITDECK_LISTEN for the listen address, SPLITDECK_TOKEN then AUTH_TOKEN
// for the auth token.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SPLITDECK_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("SPLITDECK_TOKEN"); v != "" {
		c.Server.Token = v
	} else if v := os.Getenv("AUTH_TOKEN"); v != "" {
		c.Server.Token = v
	}
}
