// CLAUDE:SUMMARY Defines sitecap config structs, parses optional YAML files, overlays environment variables, applies defaults.
// Package config handles sitecap configuration from a YAML file and the environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"gopkg.in/yaml.v3"
)

// Config is the top-level sitecap configuration.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Browser BrowserConfig `yaml:"browser"`
	Target  TargetConfig  `yaml:"target"`
	Capture CaptureConfig `yaml:"capture"`
}

// ListenConfig controls the HTTP front door.
type ListenConfig struct {
	Port    string `yaml:"port"`
	MCPHTTP bool   `yaml:"mcp_http"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	ExecutablePath string        `yaml:"executable_path"`
	Flags          []string      `yaml:"flags"` // name or name=value
	Verbose        bool          `yaml:"verbose"`
	Stealth        bool          `yaml:"stealth"`
	LaunchTimeout  time.Duration `yaml:"launch_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	BlockResources []string      `yaml:"block_resources"`
}

// TargetConfig describes the one site the session replays against.
type TargetConfig struct {
	URL             string   `yaml:"url"`
	ControlSelector string   `yaml:"control_selector"`
	ResponseMarker  string   `yaml:"response_marker"`
	CookieDomains   []string `yaml:"cookie_domains"`

	// AllowPrivate permits targets on loopback or private networks.
	AllowPrivate bool `yaml:"allow_private"`
}

// CaptureConfig bounds each pipeline step.
type CaptureConfig struct {
	MaxWait           time.Duration `yaml:"max_wait"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ControlTimeout    time.Duration `yaml:"control_timeout"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{Browser: BrowserConfig{Stealth: true}}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Config{Browser: BrowserConfig{Stealth: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Load builds the effective configuration: CONFIG_FILE when set, then the
// environment on top, then defaults for whatever is still unset.
func Load(getenv func(string) string) (*Config, error) {
	cfg := &Config{Browser: BrowserConfig{Stealth: true}}
	if path := getenv("CONFIG_FILE"); path != "" {
		var err error
		cfg, err = parseFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.overlayEnv(getenv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == "" {
		c.Listen.Port = "7777"
	}
	if c.Browser.LaunchTimeout <= 0 {
		c.Browser.LaunchTimeout = 60 * time.Second
	}
	if c.Browser.KeepAlive <= 0 {
		c.Browser.KeepAlive = 30 * time.Second
	}
	if c.Browser.BlockResources == nil {
		c.Browser.BlockResources = []string{"image", "font", "stylesheet"}
	}
	if c.Target.URL == "" {
		c.Target.URL = "https://www.example.com/"
	}
	if c.Target.ControlSelector == "" {
		c.Target.ControlSelector = `button[role="tab"]`
	}
	if c.Target.ResponseMarker == "" {
		c.Target.ResponseMarker = "ImageDemo"
	}
	if len(c.Target.CookieDomains) == 0 {
		if d := RegistrableDomain(c.Target.URL); d != "" {
			c.Target.CookieDomains = []string{d}
		}
	}
	if c.Capture.MaxWait <= 0 {
		c.Capture.MaxWait = 15 * time.Second
	}
	if c.Capture.NavigationTimeout <= 0 {
		c.Capture.NavigationTimeout = 20 * time.Second
	}
	if c.Capture.ControlTimeout <= 0 {
		c.Capture.ControlTimeout = 10 * time.Second
	}
}

// Origin returns scheme://host of the target URL, or "" when unparsable.
func (c *Config) Origin() string {
	u, err := url.Parse(c.Target.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// RegistrableDomain returns the eTLD+1 of rawURL's host, falling back to the
// bare hostname for IPs and single-label hosts.
func RegistrableDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return strings.ToLower(host)
	}
	return d
}
