package core

import "time"

// Display is the speedo the control loop renders to
type Display interface {
	SetText(s string)
	SetSpeed(tenths int) // 0..880, shown as 0.0..88.0
	Clear()
	Show() error
	On()
	Off()
	Blink(on bool)
	SetBrightness(level uint8) // 0..15
	Brightness() uint8
	Tenths() int // Tenths digit currently shown
}

// Audio plays cues
type Audio interface {
	Play(c Cue)
	Stop()
	Done() bool
	SetVolume(level uint8) // 0..19
	Service()              // Called from every loop iteration and busy-wait
}

// Button names an input source
type Button uint8

const (
	ButtonPower Button = iota // Fake power switch (maintained)
	ButtonBrake               // Brake switch (maintained)
	ButtonCalib
	ButtonA // "O.O"
	ButtonB // "RESET"
)

func (b Button) String() string {
	switch b {
	case ButtonPower:
		return "power"
	case ButtonBrake:
		return "brake"
	case ButtonCalib:
		return "calib"
	case ButtonA:
		return "a"
	case ButtonB:
		return "b"
	}
	return "unknown"
}

// Edge is what happened to a button
type Edge uint8

const (
	EdgePress Edge = iota // Pressed or switched on; for momentary buttons fired on short release
	EdgeRelease           // Switched off
	EdgeLongPress
)

// InputEvent is one debounced button edge
type InputEvent struct {
	Button Button
	Edge   Edge
}

// Input is the lever and the buttons
type Input interface {
	Scan() []InputEvent
	Throttle() int // -100..100, 0 is neutral
}

// Calibrator is implemented by throttle inputs that support calibration
type Calibrator interface {
	ZeroPosition()
	SetMaxUp() bool
	SetMaxDown() bool
}

// Delay is the bounded busy-wait of the control loop. It services the
// given function right away and then every 10ms until d has passed.
func Delay(c Clock, d time.Duration, service func()) {
	start := c.Now()
	service()
	for c.Now().Sub(start) < d {
		c.Sleep(10 * time.Millisecond)
		service()
	}
}
