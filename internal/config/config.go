// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"devproxy.toml",
	"configs/devproxy.toml",
}

// Routes served by devproxy itself; proxy prefixes and the metrics path may not shadow them.
const (
	HealthPath = "/healthz"
	StatusPath = "/__devproxy/status"
)

// Default values of the dev-server configuration.
const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 3000
	DefaultProxyPrefix = "/api"
	DefaultProxyTarget = "http://localhost:8080"
)

// DefaultPlugins is the plugin order used when the config file names none.
var DefaultPlugins = []string{"tailwindcss", "sveltekit"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config     string `kong:"short='c',help='Path to TOML config file.',env='DEVPROXY_CONFIG'"`
	Host       string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port       int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	StaticRoot string `kong:"help='Directory served for non-proxied paths (overrides config).',env='DEVPROXY_STATIC_ROOT'"`
	LogLevel   string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`

	Version kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level dev-server configuration. It is built once at
// startup and never mutated afterwards.
type Config struct {
	Plugins  []string       `toml:"plugins"`
	Server   ServerConfig   `toml:"server"`
	Proxy    []ProxyRule    `toml:"proxy"`
	Upstream UpstreamConfig `toml:"upstream"`
	Static   StaticConfig   `toml:"static"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (3000)
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ProxyRule forwards requests whose path starts with Prefix to Target.
type ProxyRule struct {
	Prefix string `toml:"prefix"`
	Target string `toml:"target"`
	// ChangeOrigin rewrites the outbound Host header to the target's host.
	ChangeOrigin bool `toml:"change_origin"`
	// StripPrefix removes Prefix from the start of the path before forwarding.
	StripPrefix bool `toml:"strip_prefix"`
}

// UpstreamConfig holds upstream connection settings shared by all proxy rules.
type UpstreamConfig struct {
	// TimeoutSeconds bounds the wait for response headers only.
	TimeoutSeconds  int `toml:"timeout_seconds"`
	IdleConnections int `toml:"idle_connections"`
}

// StaticConfig controls serving of the front-end build directory.
type StaticConfig struct {
	Root  string `toml:"root"`
	Watch bool   `toml:"watch"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the built-in configuration: all interfaces on port 3000,
// the default plugin order, and /api forwarded to localhost:8080 with the
// prefix stripped and the origin changed.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or DEVPROXY_CONFIG), it searches
// devproxy.toml then configs/devproxy.toml. Running without any file is valid
// and yields the built-in defaults.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.StaticRoot != "" {
		c.Static.Root = cli.StaticRoot
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	if err := validatePlugins(c.Plugins); err != nil {
		return err
	}
	if err := validateProxy(c.Proxy); err != nil {
		return err
	}
	if c.Static.Watch && c.Static.Root == "" {
		return fmt.Errorf("static.watch requires static.root")
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		reserved := []string{HealthPath, StatusPath}
		for _, r := range c.proxyRules() {
			reserved = append(reserved, r.Prefix)
		}
		for _, r := range reserved {
			if p == r || strings.HasPrefix(p, r) {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, r)
			}
		}
	}

	return nil
}

func validatePlugins(names []string) error {
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("plugins[%d] is empty", i)
		}
		if seen[name] {
			return fmt.Errorf("plugin %q listed more than once", name)
		}
		seen[name] = true
	}
	return nil
}

func validateProxy(rules []ProxyRule) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.Prefix == "" || r.Prefix[0] != '/' {
			return fmt.Errorf("proxy[%d].prefix must start with '/'; got %q", i, r.Prefix)
		}
		if r.Prefix == "/" {
			return fmt.Errorf("proxy[%d].prefix must not be the root path", i)
		}
		if strings.HasPrefix(HealthPath, r.Prefix) || strings.HasPrefix(StatusPath, r.Prefix) {
			return fmt.Errorf("proxy[%d].prefix %q shadows a devproxy route", i, r.Prefix)
		}
		if seen[r.Prefix] {
			return fmt.Errorf("proxy prefix %q listed more than once", r.Prefix)
		}
		seen[r.Prefix] = true

		if r.Target == "" {
			return fmt.Errorf("proxy[%d].target is required", i)
		}
		u, err := url.Parse(r.Target)
		if err != nil {
			return fmt.Errorf("proxy[%d].target is not a valid URL: %w", i, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("proxy[%d].target must be an absolute http(s) URL; got %q", i, r.Target)
		}
	}
	return nil
}

// proxyRules returns the configured rules, or the default /api rule when none are set.
func (c *Config) proxyRules() []ProxyRule {
	if len(c.Proxy) > 0 {
		return c.Proxy
	}
	return []ProxyRule{{
		Prefix:       DefaultProxyPrefix,
		Target:       DefaultProxyTarget,
		ChangeOrigin: true,
		StripPrefix:  true,
	}}
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Plugins == nil {
		c.Plugins = append([]string(nil), DefaultPlugins...)
	}
	c.Proxy = c.proxyRules()
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 32 * 1024 * 1024 // 32 MB
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 120
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// ProxyPrefixes returns the configured proxy prefixes in rule order.
func (c *Config) ProxyPrefixes() []string {
	prefixes := make([]string, 0, len(c.Proxy))
	for _, r := range c.Proxy {
		prefixes = append(prefixes, r.Prefix)
	}
	return prefixes
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FilePath returns the config file the configuration was read from, if any.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is writable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		logger.Warn("config file is writable by group/others; proxy targets could be redirected",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
