// Package serial opens the maintenance console port used to inject
// command codes and read diagnostics
package serial

import (
	"io"
)

// Port is an open console line
type Port interface {
	io.ReadWriteCloser

	// Flush drops anything not yet read or written
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the console line settings
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 0,
	}
}
