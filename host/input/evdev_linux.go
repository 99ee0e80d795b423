//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarinX/keylogger"

	"remotectl/core"
)

// Evdev reads a USB keypad through the Linux input subsystem
type Evdev struct {
	kl      *keylogger.KeyLogger
	tracker *KeypadTracker
	path    string
}

// OpenEvdev opens the given event device, or the first keyboard found
// if path is empty
func OpenEvdev(path string, q *Queue) (*Evdev, error) {
	if path == "" {
		path = keylogger.FindKeyboardDevice()
		if path == "" {
			return nil, errors.New("no keyboard device found")
		}
	}
	kl, err := keylogger.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Evdev{kl: kl, tracker: NewKeypadTracker(q), path: path}, nil
}

// Run forwards key events until ctx is cancelled or the device goes away
func (e *Evdev) Run(ctx context.Context) error {
	events := e.kl.Read()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("%s closed", e.path)
			}
			if ev.Type != keylogger.EvKey {
				continue
			}
			at := time.Unix(int64(ev.Time.Sec), int64(ev.Time.Usec)*int64(time.Microsecond))
			switch {
			case ev.KeyPress():
				core.Debugf("evdev: %s down", ev.KeyString())
				e.tracker.Key(ev.Code, true, at)
			case ev.KeyRelease():
				e.tracker.Key(ev.Code, false, at)
			}
		}
	}
}

// Close releases the device
func (e *Evdev) Close() error {
	return e.kl.Close()
}
