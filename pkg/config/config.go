// Package config loads grouted's static bootstrap configuration: the
// listen socket, logging, and the set of devices and VLANs to bring up
// before the API transport starts accepting requests.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where grouted looks for its configuration file
// when none is given on the command line.
const DefaultConfigPath = "/etc/grout/grout.yaml"

// DefaultSocketPath is the Unix domain socket the API transport listens
// on by default.
const DefaultSocketPath = "/run/grout.sock"

// Port describes one device to probe and bring up at startup.
type Port struct {
	Devargs string `yaml:"devargs"`
	MTU     uint16 `yaml:"mtu,omitempty"`
	NRxq    uint16 `yaml:"n_rxq,omitempty"`
	NTxq    uint16 `yaml:"n_txq,omitempty"`
	RxqSize uint16 `yaml:"rxq_size,omitempty"`
	Up      bool   `yaml:"up,omitempty"`
}

// VLAN describes one 802.1Q sub-interface to create at startup, keyed
// by the devargs of its already-declared parent port.
type VLAN struct {
	ParentDevargs string `yaml:"parent_devargs"`
	VLANID        uint16 `yaml:"vlan_id"`
	MTU           uint16 `yaml:"mtu,omitempty"`
}

// Config is the top-level daemon configuration document.
type Config struct {
	// SocketPath is the Unix domain socket path the API transport binds.
	SocketPath string `yaml:"socket_path,omitempty"`
	// LogLevel is a logrus level name (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level,omitempty"`
	// LogJSON switches the logger to JSON output, for daemon deployments
	// shipping logs to a collector instead of a terminal.
	LogJSON bool `yaml:"log_json,omitempty"`
	// NextHopCapacity bounds the IPv4 next-hop table's fixed array size.
	NextHopCapacity uint32 `yaml:"nexthop_capacity,omitempty"`

	Ports []Port `yaml:"ports,omitempty"`
	VLANs []VLAN `yaml:"vlans,omitempty"`
}

// DefaultNextHopCapacity bounds the next-hop table when the config does
// not specify one.
const DefaultNextHopCapacity = 1 << 16

// Default returns a Config with every field at its documented default.
func Default() *Config {
	return &Config{
		SocketPath:      DefaultSocketPath,
		LogLevel:        "info",
		NextHopCapacity: DefaultNextHopCapacity,
	}
}

// Load reads and parses a YAML config file, filling in defaults for any
// field left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.NextHopCapacity == 0 {
		c.NextHopCapacity = DefaultNextHopCapacity
	}
	return c, nil
}

// Save writes c to path as YAML, creating the file if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
