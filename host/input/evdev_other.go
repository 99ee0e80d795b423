//go:build !linux

package input

import (
	"context"
	"errors"
)

// Evdev is only available on Linux
type Evdev struct{}

// OpenEvdev fails outside Linux
func OpenEvdev(path string, q *Queue) (*Evdev, error) {
	return nil, errors.New("evdev input is only available on linux")
}

// Run never runs
func (e *Evdev) Run(ctx context.Context) error { return errors.ErrUnsupported }

// Close does nothing
func (e *Evdev) Close() error { return nil }
