// Package config loads Nightingale's TOML configuration file. Optional
// sections use pointer fields so "absent" and "present but zero" stay
// distinguishable.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the parsed TOML document.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
	Loki    *LokiConfig   `toml:"loki"`
}

// ServerConfig is the [server] table.
type ServerConfig struct {
	Address   string        `toml:"address"`
	Port      uint16        `toml:"port"`
	Password  string        `toml:"password"`
	SSL       *SSLConfig    `toml:"ssl"`
	FilterIPs *FilterConfig `toml:"filter_ips"`
}

// SSLConfig is [server.ssl], present only when TLS termination is
// handled by Nightingale itself rather than a reverse proxy.
type SSLConfig struct {
	CertPath string `toml:"cert_path"`
	KeyPath  string `toml:"key_path"`
}

// FilterConfig is [server.filter_ips]: optional IPv4 and/or IPv6 CIDR
// allowlists. A request from a family with no configured range is denied,
// so restricting both families requires specifying both.
type FilterConfig struct {
	IPv4 string `toml:"ipv4"`
	IPv6 string `toml:"ipv6"`
}

// LoggingConfig is the [logging] table.
type LoggingConfig struct {
	Enable bool   `toml:"enable"`
	Level  string `toml:"level"`
	Output string `toml:"output"` // "stdout" | "file"
	File   string `toml:"file,omitempty"`
}

// MetricsConfig is the [metrics] table.
type MetricsConfig struct {
	UpdateSeconds int  `toml:"update_seconds"`
	EnableLoki    bool `toml:"enable_loki"`
}

// LokiConfig is the optional [loki] table, required only when
// metrics.enable_loki is true.
type LokiConfig struct {
	URL      string `toml:"url"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// Load reads and parses path, then validates the result. Config errors
// fail process startup — they are not HTTP errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Password == "" {
		return fmt.Errorf("server.password is required")
	}
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.SSL != nil {
		if c.Server.SSL.CertPath == "" || c.Server.SSL.KeyPath == "" {
			return fmt.Errorf("server.ssl requires both cert_path and key_path")
		}
	}
	if c.Server.FilterIPs != nil && c.Server.FilterIPs.IPv4 == "" && c.Server.FilterIPs.IPv6 == "" {
		return fmt.Errorf("server.filter_ips present but neither ipv4 nor ipv6 set")
	}
	if c.Metrics.EnableLoki && c.Loki == nil {
		return fmt.Errorf("metrics.enable_loki is set but [loki] is missing")
	}
	if c.Logging.Output == "file" && c.Logging.File == "" {
		return fmt.Errorf("logging.output is \"file\" but logging.file is empty")
	}
	return nil
}
