package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Warrelis/huba/internal/fanout"
	"github.com/Warrelis/huba/internal/node"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level node config plus the resolved child topology.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Node   NodeConfig   `koanf:"node"`
	Fanout FanoutConfig `koanf:"fanout"`

	// Children is populated by Load: inline fanout.children, or the
	// topology file when one is configured.
	Children []string `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type NodeConfig struct {
	Role string `koanf:"role"` // leaf | aggregator | root
}

type FanoutConfig struct {
	Children      []string `koanf:"children"`
	TopologyPath  string   `koanf:"topology_path"`
	ChildTimeout  string   `koanf:"child_timeout"`
	FailurePolicy string   `koanf:"failure_policy"` // fail_fast | degrade
}

// ChildTimeoutDuration parses the configured per-child query deadline.
// Call after Validate.
func (c FanoutConfig) ChildTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ChildTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if !node.ValidRole(c.Node.Role) {
		return fmt.Errorf("invalid node.role %q (must be leaf, aggregator, or root)", c.Node.Role)
	}

	if !fanout.ValidPolicy(c.Fanout.FailurePolicy) {
		return fmt.Errorf("invalid fanout.failure_policy %q (must be fail_fast or degrade)", c.Fanout.FailurePolicy)
	}
	timeout, err := time.ParseDuration(c.Fanout.ChildTimeout)
	if err != nil {
		return fmt.Errorf("invalid fanout.child_timeout %q: %w", c.Fanout.ChildTimeout, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("fanout.child_timeout must be > 0")
	}

	if c.Node.Role != node.RoleLeaf && len(c.Children) == 0 {
		return fmt.Errorf("node.role %q requires at least one child endpoint", c.Node.Role)
	}

	return nil
}

// Load parses config from file + env, resolves the child topology, and validates.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 4,
		"server.mode":             "release",
		"node.role":               "leaf",
		"fanout.children":         []string{},
		"fanout.topology_path":    "",
		"fanout.child_timeout":    "2s",
		"fanout.failure_policy":   "fail_fast",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("HUBA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "HUBA_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Children = cfg.Fanout.Children
	if cfg.Fanout.TopologyPath != "" {
		children, err := LoadTopology(cfg.Fanout.TopologyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load topology: %w", err)
		}
		cfg.Children = children
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
