//go:build !(linux || darwin || freebsd)

package udp

import "syscall"

func reuseControl(network, address string, c syscall.RawConn) error {
	return nil
}
