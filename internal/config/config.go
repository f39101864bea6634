// Package config handles mcpchat configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jvaldez/mcpchat/internal/mcp"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/mcpchat/config.yaml, /etc/mcpchat/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mcpchat", "config.yaml"))
	}

	paths = append(paths, "/etc/mcpchat/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise the search paths are tried in order.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all mcpchat configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	DataDir   string          `yaml:"data_dir"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	History   HistoryConfig   `yaml:"history"`
	Audit     AuditConfig     `yaml:"audit"`
	Servers   []ServerConfig  `yaml:"servers"`
}

// AnthropicConfig defines Anthropic API settings for the intent
// classifier and chat fallback.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// HistoryConfig defines the conversation buffer store.
type HistoryConfig struct {
	// Path is the SQLite database location. Empty means
	// <data_dir>/history.db.
	Path string `yaml:"path"`
	// MaxExchanges bounds how many recent exchanges are replayed as
	// context (default 10).
	MaxExchanges int `yaml:"max_exchanges"`
}

// AuditConfig defines the append-only interaction log.
type AuditConfig struct {
	// Path is the JSONL log location. Empty means
	// <data_dir>/mcp_interactions.log.
	Path string `yaml:"path"`
}

// ServerConfig describes one MCP backend.
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // stdio (default) or http
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       []string          `yaml:"env"`
	Dir       string            `yaml:"dir"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
}

// Spec converts a ServerConfig into the bridge's startup spec.
func (s ServerConfig) Spec() mcp.ServerSpec {
	return mcp.ServerSpec{
		Name:      s.Name,
		Transport: s.Transport,
		Command:   s.Command,
		Args:      s.Args,
		Env:       s.Env,
		Dir:       s.Dir,
		URL:       s.URL,
		Headers:   s.Headers,
	}
}

// ServerSpecs converts the configured server list for Manager.StartAll.
func (c *Config) ServerSpecs() []mcp.ServerSpec {
	specs := make([]mcp.ServerSpec, 0, len(c.Servers))
	for _, s := range c.Servers {
		specs = append(specs, s.Spec())
	}
	return specs
}

// HistoryPath resolves the conversation database location.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.dataDir(), "history.db")
}

// AuditPath resolves the interaction log location.
func (c *Config) AuditPath() string {
	if c.Audit.Path != "" {
		return c.Audit.Path
	}
	return filepath.Join(c.dataDir(), "mcp_interactions.log")
}

func (c *Config) dataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return "."
}

// Load reads configuration from a YAML file. Environment variables in
// the file (e.g. ${ANTHROPIC_API_KEY}) are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the baseline configuration that Load overlays the
// file onto. Backends are configured per installation, so the server
// list starts empty.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Anthropic: AnthropicConfig{
			Model: "claude-3-haiku-20240307",
		},
		History: HistoryConfig{
			MaxExchanges: 10,
		},
	}
}
