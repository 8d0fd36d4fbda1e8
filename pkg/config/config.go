package config

import (
	"fmt"
	"os"
	"time"

	"github.com/voxanet/netnode/pkg/types"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the file omits a key
const (
	DefaultDataDir           = "data"
	DefaultSSUHost           = "0.0.0.0"
	DefaultSSUPort           = 9999
	DefaultMaxSSULoopIndex   = 5
	DefaultConnectionTimeout = 10
	DefaultAPIListenAddr     = "127.0.0.1:8080"
	DefaultMaxMapSize        = 20
)

// Config is the process configuration. It is read once at startup and
// treated as read-only afterwards.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Settings Settings `yaml:"settings"`
	SSU      SSU      `yaml:"ssu"`
	P2P      P2P      `yaml:"p2p"`
	API      API      `yaml:"api"`
	Registry Registry `yaml:"registry"`
	Dev      Dev      `yaml:"dev"`
}

// Storage configures the data directory layout.
type Storage struct {
	DataDir string            `yaml:"data_dir"`
	SubDirs map[string]string `yaml:"sub_dirs"`
}

// SubDir resolves a named sub-directory, falling back to the name itself.
func (s Storage) SubDir(name string) string {
	if dir, ok := s.SubDirs[name]; ok {
		return dir
	}
	return name
}

// Settings holds node-level knobs.
type Settings struct {
	NodeNetworkLevel string          `yaml:"node_network_level"`
	NodeType         types.NodeType  `yaml:"node_type"`
	Features         map[string]bool `yaml:"features"`
	MaxMapSize       int             `yaml:"max_map_size"`
}

// SSU configures the UDP transport.
type SSU struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	MaxSSULoopIndex   int    `yaml:"max_ssu_loop_index"`
	ConnectionTimeout int    `yaml:"connection_timeout"` // seconds
}

// Timeout returns the connection timeout as a duration.
func (s SSU) Timeout() time.Duration {
	return time.Duration(s.ConnectionTimeout) * time.Second
}

// P2P configures peer discovery and NAT traversal.
type P2P struct {
	Enabled        bool     `yaml:"enabled"`
	UPnP           bool     `yaml:"upnp"`
	BootstrapPeers []string `yaml:"bootstrap_peers"`
}

// API configures the admin HTTP surface.
type API struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Registry points at the remote node directory.
type Registry struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Dev holds development-only flags.
type Dev struct {
	Debug bool `yaml:"debug"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a YAML configuration file. A missing path is
// fatal; use Default for an in-process node.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", types.ErrConfig, path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", types.ErrConfig, path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = DefaultDataDir
	}
	if c.Storage.SubDirs == nil {
		c.Storage.SubDirs = map[string]string{
			"nri":   "nri",
			"rri":   "rri",
			"local": "local",
		}
	}
	if c.Settings.NodeNetworkLevel == "" {
		c.Settings.NodeNetworkLevel = "mainnet"
	}
	if c.Settings.NodeType == "" {
		c.Settings.NodeType = types.NodeTypeStandard
	}
	if c.Settings.MaxMapSize == 0 {
		c.Settings.MaxMapSize = DefaultMaxMapSize
	}
	if c.SSU.Host == "" {
		c.SSU.Host = DefaultSSUHost
	}
	if c.SSU.Port == 0 {
		c.SSU.Port = DefaultSSUPort
	}
	if c.SSU.MaxSSULoopIndex == 0 {
		c.SSU.MaxSSULoopIndex = DefaultMaxSSULoopIndex
	}
	if c.SSU.ConnectionTimeout == 0 {
		c.SSU.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = DefaultAPIListenAddr
	}
}

// Validate checks the configuration for fatal mistakes.
func (c *Config) Validate() error {
	if c.SSU.Port < 1 || c.SSU.Port > 65535 {
		return fmt.Errorf("%w: ssu.port must be between 1 and 65535, got %d", types.ErrConfig, c.SSU.Port)
	}
	if c.SSU.ConnectionTimeout < 1 {
		return fmt.Errorf("%w: ssu.connection_timeout must be positive", types.ErrConfig)
	}
	if c.SSU.MaxSSULoopIndex < 1 {
		return fmt.Errorf("%w: ssu.max_ssu_loop_index must be positive", types.ErrConfig)
	}
	if c.Settings.MaxMapSize < 1 {
		return fmt.Errorf("%w: settings.max_map_size must be positive", types.ErrConfig)
	}
	switch c.Settings.NodeType {
	case types.NodeTypeStandard, types.NodeTypeRelay, types.NodeTypeGateway, types.NodeTypeBridge:
	default:
		return fmt.Errorf("%w: settings.node_type %q is not recognized", types.ErrConfig, c.Settings.NodeType)
	}
	return nil
}
