//go:build linux

package i2c

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// ioctl request selecting the target address of later reads and writes
const i2cSlave = 0x0703

type devFile struct {
	fd int
}

// Open opens an i2c-dev adapter such as /dev/i2c-1
func Open(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Bus{dev: &devFile{fd: fd}, path: path}, nil
}

func (d *devFile) setTarget(addr uint16) error {
	if err := unix.IoctlSetInt(d.fd, i2cSlave, int(addr)); err != nil {
		return fmt.Errorf("failed to select i2c address 0x%02x: %w", addr, err)
	}
	return nil
}

func (d *devFile) write(b []byte) error {
	n, err := unix.Write(d.fd, b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

func (d *devFile) read(b []byte) error {
	n, err := unix.Read(d.fd, b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (d *devFile) close() error {
	return unix.Close(d.fd)
}
