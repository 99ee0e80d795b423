package config

import (
	"os"
	"path/filepath"
	"testing"

	"remotectl/protocol"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.HostName != "dtmremote" {
		t.Errorf("Expected host name dtmremote, got %s", cfg.HostName)
	}
	if cfg.Port != protocol.DefaultPort {
		t.Errorf("Expected port %d, got %d", protocol.DefaultPort, cfg.Port)
	}
	if cfg.Profile != "movie" {
		t.Errorf("Expected movie profile, got %s", cfg.Profile)
	}
	if cfg.Brightness != 15 {
		t.Errorf("Expected brightness 15, got %d", cfg.Brightness)
	}
	if cfg.Input != "keyboard" {
		t.Errorf("Expected keyboard input, got %s", cfg.Input)
	}
	if cfg.DisplayAddress != 0x70 {
		t.Errorf("Expected display address 0x70, got %#x", cfg.DisplayAddress)
	}
	if cfg.Peer != "" {
		t.Errorf("Expected no peer, got %s", cfg.Peer)
	}
}

func TestLoadConfigValues(t *testing.T) {
	data := []byte(`{
		"host_name": "remote2",
		"peer": "timecircuits",
		"profile": "linear",
		"auto_throttle": true,
		"coast": true,
		"brightness": 7,
		"volume": 30,
		"input": "console",
		"multicast_group": "224.0.0.225"
	}`)

	cfg, err := LoadConfig(data)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.HostName != "remote2" || cfg.Peer != "timecircuits" {
		t.Errorf("Unexpected identity %s/%s", cfg.HostName, cfg.Peer)
	}
	if cfg.Profile != "linear" || !cfg.AutoThrottle || !cfg.Coast {
		t.Errorf("Unexpected throttle config %+v", cfg)
	}
	if cfg.Brightness != 7 {
		t.Errorf("Expected brightness 7, got %d", cfg.Brightness)
	}
	if cfg.Volume != 19 {
		t.Errorf("Expected volume clamped to 19, got %d", cfg.Volume)
	}

	lc := cfg.LinkConfig()
	if lc.Peer != "timecircuits" || lc.HostName != "remote2" {
		t.Errorf("Unexpected link config %+v", lc)
	}
	if lc.Group.String() != "224.0.0.225" {
		t.Errorf("Expected group 224.0.0.225, got %s", lc.Group)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"bad json", `{"port": }`},
		{"bad profile", `{"profile": "warp"}`},
		{"bad input", `{"input": "joystick"}`},
		{"bad port", `{"port": 70000}`},
		{"unicast group", `{"multicast_group": "192.168.1.1"}`},
		{"garbage group", `{"multicast_group": "nope"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig([]byte(tc.data)); err == nil {
				t.Errorf("Expected error for %s", tc.data)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remote.json")
	if err := os.WriteFile(path, []byte(`{"peer": "192.168.4.1"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Peer != "192.168.4.1" {
		t.Errorf("Expected peer 192.168.4.1, got %s", cfg.Peer)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}
