// Package config loads the remote's JSON configuration
package config

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"

	"remotectl/protocol"
)

// Config is the static configuration of one remote
type Config struct {
	HostName       string `json:"host_name"`
	Peer           string `json:"peer"` // Peer IPv4 address or hostname; empty runs standalone
	RemoteID       uint32 `json:"remote_id"`
	Port           int    `json:"port"`
	MulticastGroup string `json:"multicast_group"`
	Interface      string `json:"interface"` // Interface for the multicast join, any if empty

	Profile      string `json:"profile"` // "movie" or "linear"
	AutoThrottle bool   `json:"auto_throttle"`
	Coast        bool   `json:"coast"`
	NoClicks     bool   `json:"no_clicks"`
	PlayAlarm    bool   `json:"play_alarm"`

	ShowPeerSpeed       bool `json:"show_peer_speed"`  // Show the peer's speed while powered off
	PowerMaster         bool `json:"power_master"`     // Our power switch powers the whole network
	ButtonsToggleMaster bool `json:"buttons_master"`   // A/B toggle power master instead of brightness
	TravelOnA           bool `json:"travel_on_button"` // Button A arms time travel on full throttle

	Brightness uint8 `json:"brightness"`
	Volume     uint8 `json:"volume"`

	SettingsPath string `json:"settings_path"`

	Input       string `json:"input"` // "keyboard", "evdev" or "console"
	EvdevDevice string `json:"evdev_device"`

	I2CBus         string `json:"i2c_bus"`
	DisplayAddress uint16 `json:"display_address"`

	SerialPort string `json:"serial_port"`
	SerialBaud int    `json:"serial_baud"`

	Debug bool `json:"debug"`
}

// LoadConfig parses a JSON configuration and fills in defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config

	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, err
	}
	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFile reads and parses a configuration file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadConfig(data)
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *Config) {
	if config.HostName == "" {
		config.HostName = "dtmremote"
	}
	if config.Port == 0 {
		config.Port = protocol.DefaultPort
	}
	if config.MulticastGroup == "" {
		config.MulticastGroup = protocol.MulticastGroup
	}
	if config.Profile == "" {
		config.Profile = "movie"
	}
	if config.Brightness == 0 || config.Brightness > 15 {
		config.Brightness = 15
	}
	if config.Volume > 19 {
		config.Volume = 19
	}
	if config.SettingsPath == "" {
		config.SettingsPath = "remote-settings.json"
	}
	if config.Input == "" {
		config.Input = "keyboard"
	}
	if config.I2CBus == "" {
		config.I2CBus = "/dev/i2c-1"
	}
	if config.DisplayAddress == 0 {
		config.DisplayAddress = 0x70
	}
	if config.SerialBaud == 0 {
		config.SerialBaud = 115200
	}
}

// Validate checks values that have no sensible default
func (c *Config) Validate() error {
	switch c.Profile {
	case "movie", "linear":
	default:
		return fmt.Errorf("unknown acceleration profile %q", c.Profile)
	}
	switch c.Input {
	case "keyboard", "evdev", "console":
	default:
		return fmt.Errorf("unknown input %q", c.Input)
	}
	if c.Port < 1 || c.Port > 65535-protocol.MulticastPortDelta {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := c.Group(); err != nil {
		return err
	}
	return nil
}

// Group returns the parsed multicast group
func (c *Config) Group() (netip.Addr, error) {
	a, err := netip.ParseAddr(c.MulticastGroup)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("multicast group: %w", err)
	}
	if !a.Is4() || !a.IsMulticast() {
		return netip.Addr{}, fmt.Errorf("multicast group %s is not an IPv4 multicast address", a)
	}
	return a, nil
}

// LinkConfig returns the link settings
func (c *Config) LinkConfig() protocol.LinkConfig {
	group, _ := c.Group()
	return protocol.LinkConfig{
		Peer:     c.Peer,
		HostName: c.HostName,
		RemoteID: c.RemoteID,
		Port:     c.Port,
		Group:    group,
	}
}
