package input

import (
	"time"

	"remotectl/core"
)

// LongPress is how long a keypad key must be held to count as a long press
const LongPress = time.Second

// Linux input key codes of the numeric keypad
const (
	codeKP8        = 72
	codeKPMinus    = 74
	codeKP5        = 76
	codeKPPlus     = 78
	codeKP2        = 80
	codeKP0        = 82
	codeKPDot      = 83
	codeKPEnter    = 96
	codeKPAsterisk = 55
)

// keypadButtons are the momentary buttons; their edge is decided on release
var keypadButtons = map[uint16]core.Button{
	codeKPEnter:    core.ButtonA,
	codeKPPlus:     core.ButtonB,
	codeKPAsterisk: core.ButtonCalib,
}

// KeypadTracker turns raw keypad presses and releases into button
// edges. 0 toggles power, the dot toggles brake, 8/2 move the lever,
// 5 centres it and minus pulls it to full reverse.
type KeypadTracker struct {
	q       *Queue
	power   bool
	brake   bool
	pressed map[uint16]time.Time
}

// NewKeypadTracker creates a tracker feeding q
func NewKeypadTracker(q *Queue) *KeypadTracker {
	return &KeypadTracker{q: q, pressed: make(map[uint16]time.Time)}
}

// Key handles one key transition at the given time
func (t *KeypadTracker) Key(code uint16, down bool, at time.Time) {
	if b, ok := keypadButtons[code]; ok {
		if down {
			t.pressed[code] = at
			return
		}
		start, ok := t.pressed[code]
		if !ok {
			return
		}
		delete(t.pressed, code)
		edge := core.EdgePress
		if at.Sub(start) >= LongPress {
			edge = core.EdgeLongPress
		}
		t.q.Press(b, edge)
		return
	}

	if !down {
		return
	}
	switch code {
	case codeKP0:
		t.power = !t.power
		t.q.Press(core.ButtonPower, toggleEdge(t.power))
	case codeKPDot:
		t.brake = !t.brake
		t.q.Press(core.ButtonBrake, toggleEdge(t.brake))
	case codeKP8:
		t.q.MoveLever(leverStep)
	case codeKP2:
		t.q.MoveLever(-leverStep)
	case codeKP5:
		t.q.SetLever(0)
	case codeKPMinus:
		t.q.SetLever(-leverRange)
	}
}
