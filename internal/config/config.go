// Package config loads daemon configuration from an optional YAML file and
// environment variables. Environment variables win over the file; everything
// is fixed once Load returns.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fruitsalade/quince/internal/category"
)

// Default ports for the four services.
const (
	DefaultGatewayPort = 9401
	DefaultPDFPort     = 9402
	DefaultTextPort    = 9403
	DefaultArchivePort = 9404
)

// Config holds settings for the gateway and storage-node daemons. A storage
// node uses Category; the gateway uses Nodes. The remaining fields are shared.
type Config struct {
	// Server
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Storage
	Root  string `yaml:"root"`
	Alias string `yaml:"alias"`

	// Storage node: which category this node serves
	Category string `yaml:"category"`

	// Gateway: delegated category -> node address
	Nodes map[string]string `yaml:"nodes"`
}

// LoadGateway reads gateway configuration.
func LoadGateway() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%d", DefaultGatewayPort)
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9491"
	}
	if cfg.Root == "" {
		cfg.Root = defaultRoot("gateway")
	}
	if cfg.Alias == "" {
		cfg.Alias = "~quince"
	}

	if cfg.Nodes == nil {
		cfg.Nodes = make(map[string]string)
	}
	defaults := map[string]string{
		category.PDF.String():     fmt.Sprintf("127.0.0.1:%d", DefaultPDFPort),
		category.Text.String():    fmt.Sprintf("127.0.0.1:%d", DefaultTextPort),
		category.Archive.String(): fmt.Sprintf("127.0.0.1:%d", DefaultArchivePort),
	}
	for name, addr := range defaults {
		if env := os.Getenv("QUINCE_NODE_" + envKey(name)); env != "" {
			cfg.Nodes[name] = env
		} else if cfg.Nodes[name] == "" {
			cfg.Nodes[name] = addr
		}
	}
	for name := range cfg.Nodes {
		if c, ok := category.Parse(name); !ok || !c.IsDelegated() {
			return nil, fmt.Errorf("nodes: %q is not a delegated category", name)
		}
	}

	return cfg, nil
}

// LoadNode reads storage-node configuration. QUINCE_CATEGORY (or the category
// key in the config file) selects which delegated category this node serves.
func LoadNode() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)
	if v := os.Getenv("QUINCE_CATEGORY"); v != "" {
		cfg.Category = v
	}
	cat, ok := category.Parse(cfg.Category)
	if !ok || !cat.IsDelegated() {
		return nil, fmt.Errorf("QUINCE_CATEGORY must be one of pdf, text, archive (got %q)", cfg.Category)
	}

	if cfg.ListenAddr == "" {
		ports := map[category.Category]int{
			category.PDF:     DefaultPDFPort,
			category.Text:    DefaultTextPort,
			category.Archive: DefaultArchivePort,
		}
		cfg.ListenAddr = fmt.Sprintf(":%d", ports[cat])
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9492"
	}
	if cfg.Root == "" {
		cfg.Root = defaultRoot(cat.String())
	}
	if cfg.Alias == "" {
		cfg.Alias = "~" + cat.String()
	}

	return cfg, nil
}

// NodeAddrs returns the gateway's delegated category address table.
func (c *Config) NodeAddrs() map[category.Category]string {
	addrs := make(map[category.Category]string, len(c.Nodes))
	for name, addr := range c.Nodes {
		cat, _ := category.Parse(name)
		addrs[cat] = addr
	}
	return addrs
}

// load reads the optional YAML config file named by QUINCE_CONFIG.
func load() (*Config, error) {
	cfg := &Config{
		LogLevel:  "info",
		LogFormat: "json",
	}

	path := os.Getenv("QUINCE_CONFIG")
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = envOr("QUINCE_LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = envOr("QUINCE_METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = envOr("QUINCE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("QUINCE_LOG_FORMAT", cfg.LogFormat)
	cfg.Root = envOr("QUINCE_ROOT", cfg.Root)
	cfg.Alias = envOr("QUINCE_ALIAS", cfg.Alias)
}

func defaultRoot(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "quince", name)
}

func envKey(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
