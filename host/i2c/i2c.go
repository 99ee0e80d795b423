// Package i2c gives the speedo driver a drivers.I2C bus on top of a
// Linux i2c-dev character device
package i2c

import (
	"errors"

	"github.com/sasha-s/go-deadlock"
	"tinygo.org/x/drivers"
)

// DefaultDevice is the first I2C adapter on most single board computers
const DefaultDevice = "/dev/i2c-1"

var ErrClosed = errors.New("i2c bus closed")

var _ drivers.I2C = (*Bus)(nil)

// Bus is one I2C adapter. Transfers are serialised.
type Bus struct {
	mu   deadlock.Mutex
	dev  device
	path string
	addr uint16
	// haveAddr is false until the first transfer selects a target
	haveAddr bool
}

// device is the platform side of an adapter
type device interface {
	setTarget(addr uint16) error
	write(b []byte) error
	read(b []byte) error
	close() error
}

// Tx writes w and then reads into r, addressing the device at addr
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dev == nil {
		return ErrClosed
	}
	if !b.haveAddr || b.addr != addr {
		if err := b.dev.setTarget(addr); err != nil {
			return err
		}
		b.addr = addr
		b.haveAddr = true
	}
	if len(w) > 0 {
		if err := b.dev.write(w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		return b.dev.read(r)
	}
	return nil
}

// ReadRegister reads len(buf) bytes starting at register reg
func (b *Bus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister writes buf starting at register reg
func (b *Bus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}

// Path returns the device path the bus was opened on
func (b *Bus) Path() string {
	return b.path
}

// Close releases the adapter
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dev == nil {
		return nil
	}
	err := b.dev.close()
	b.dev = nil
	return err
}
