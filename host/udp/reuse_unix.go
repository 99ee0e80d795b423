//go:build linux || darwin || freebsd

package udp

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl lets the remote and a simulated peer share the group port
// on one machine
func reuseControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			sockErr = fmt.Errorf("failed to set SO_REUSEPORT: %w", err)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
