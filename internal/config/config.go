// Package config loads the relay's YAML configuration and applies defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/util"
)

// RunDir holds the relay's sockets and pid file by default.
const RunDir = "/run/lorax"

// Sockets lists the unix datagram socket paths the relay uses.
type Sockets struct {
	Messages    string `yaml:"messages"`     // bound: client messages in
	Server      string `yaml:"server"`       // peer: the local server
	RadioAck    string `yaml:"radio_ack"`    // bound: radio send acknowledgements
	RadioClient string `yaml:"radio_client"` // bound: packets received by the radio
	RadioData   string `yaml:"radio_data"`   // peer: radio daemon input
	Control     string `yaml:"control"`      // bound: control queries
}

// Monitor configures the optional HTTP status server.
type Monitor struct {
	Listen string `yaml:"listen"` // empty disables it
}

// Config is the relay configuration.
type Config struct {
	Address           string  `yaml:"address"`   // 12 hex chars; overrides Interface
	Interface         string  `yaml:"interface"` // MAC source when Address is empty
	Sockets           Sockets `yaml:"sockets"`
	RadioAckTimeoutMs int     `yaml:"radio_ack_timeout_ms"`
	BroadcastMs       int     `yaml:"broadcast_ms"`
	BroadcastJitterMs int     `yaml:"broadcast_jitter_ms"`
	RetryMs           int     `yaml:"retry_ms"`
	StaleSec          int     `yaml:"stale_sec"`
	StatsSec          int     `yaml:"stats_sec"`
	Monitor           Monitor `yaml:"monitor"`
	PIDFile           string  `yaml:"pidfile"`
	Verbose           bool    `yaml:"verbose"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML file, fills unset fields with defaults and validates the
// result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	s := &c.Sockets
	if s.Messages == "" {
		s.Messages = RunDir + "/messages"
	}
	if s.Server == "" {
		s.Server = RunDir + "/server"
	}
	if s.RadioAck == "" {
		s.RadioAck = RunDir + "/e32.ack"
	}
	if s.RadioClient == "" {
		s.RadioClient = RunDir + "/e32.client"
	}
	if s.RadioData == "" {
		s.RadioData = RunDir + "/e32.data"
	}
	if s.Control == "" {
		s.Control = RunDir + "/control"
	}
	if c.RadioAckTimeoutMs == 0 {
		c.RadioAckTimeoutMs = 3000
	}
	if c.BroadcastMs == 0 {
		c.BroadcastMs = 10000
	}
	if c.BroadcastJitterMs == 0 {
		c.BroadcastJitterMs = 2000
	}
	if c.RetryMs == 0 {
		c.RetryMs = 3000
	}
	if c.StaleSec == 0 {
		c.StaleSec = 60
	}
	if c.StatsSec == 0 {
		c.StatsSec = 10
	}
}

// Validate rejects values the relay cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Address != "" {
		if _, err := protocol.ParseAddress(c.Address); err != nil {
			errs = append(errs, fmt.Errorf("address: %w", err))
		}
	}
	if c.RadioAckTimeoutMs < 0 {
		errs = append(errs, errors.New("radio_ack_timeout_ms must be positive"))
	}
	if c.BroadcastMs < 0 {
		errs = append(errs, errors.New("broadcast_ms must be positive"))
	}
	if c.BroadcastJitterMs < 0 {
		errs = append(errs, errors.New("broadcast_jitter_ms must not be negative"))
	}
	if c.RetryMs < 0 {
		errs = append(errs, errors.New("retry_ms must be positive"))
	}
	if c.StaleSec < 0 {
		errs = append(errs, errors.New("stale_sec must be positive"))
	}
	if c.Sockets.Messages == c.Sockets.Server {
		errs = append(errs, errors.New("sockets.messages and sockets.server must differ"))
	}
	return errors.Join(errs...)
}

// NodeAddress resolves this node's radio address from Address, or from the
// hardware address of Interface (eth0, then wlan0, when unset).
func (c *Config) NodeAddress() (protocol.Address, error) {
	if c.Address != "" {
		return protocol.ParseAddress(c.Address)
	}
	mac, iface, err := util.HardwareAddr(c.Interface)
	if err != nil {
		return protocol.Address{}, err
	}
	c.Interface = iface
	return protocol.Address(mac), nil
}

func (c *Config) RadioAckTimeout() time.Duration {
	return time.Duration(c.RadioAckTimeoutMs) * time.Millisecond
}

func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.BroadcastMs) * time.Millisecond
}

func (c *Config) BroadcastJitter() time.Duration {
	return time.Duration(c.BroadcastJitterMs) * time.Millisecond
}

func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryMs) * time.Millisecond
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleSec) * time.Second
}

func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsSec) * time.Second
}
