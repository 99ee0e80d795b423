package input

import (
	"context"
	"errors"

	"github.com/eiannone/keyboard"

	"remotectl/core"
)

// ErrQuit is returned by Run when the user asks to leave
var ErrQuit = errors.New("quit requested")

const leverStep = 10

// Key bindings of the terminal keyboard
const KeyboardHelp = `keys: up/down lever, space centre lever, p power, b brake,
a/A button A (short/long), r/R button B, c/C calibration, q quit`

// Keyboard reads a terminal in raw mode. Power and brake are toggles
// since a terminal only reports key presses.
type Keyboard struct {
	q     *Queue
	power bool
	brake bool
}

// NewKeyboard creates a keyboard feeding q
func NewKeyboard(q *Queue) *Keyboard {
	return &Keyboard{q: q}
}

// Run reads keys until ctx is cancelled, the terminal fails or the
// user quits
func (k *Keyboard) Run(ctx context.Context) error {
	keys, err := keyboard.GetKeys(16)
	if err != nil {
		return err
	}
	defer keyboard.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-keys:
			if ev.Err != nil {
				return ev.Err
			}
			if !k.handle(ev.Rune, ev.Key) {
				return ErrQuit
			}
		}
	}
}

// handle applies one key. It returns false on quit.
func (k *Keyboard) handle(ch rune, key keyboard.Key) bool {
	switch key {
	case keyboard.KeyArrowUp:
		k.q.MoveLever(leverStep)
		return true
	case keyboard.KeyArrowDown:
		k.q.MoveLever(-leverStep)
		return true
	case keyboard.KeySpace:
		k.q.SetLever(0)
		return true
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return false
	}

	switch ch {
	case 'p':
		k.power = !k.power
		k.q.Press(core.ButtonPower, toggleEdge(k.power))
	case 'b':
		k.brake = !k.brake
		k.q.Press(core.ButtonBrake, toggleEdge(k.brake))
	case 'a':
		k.q.Press(core.ButtonA, core.EdgePress)
	case 'A':
		k.q.Press(core.ButtonA, core.EdgeLongPress)
	case 'r':
		k.q.Press(core.ButtonB, core.EdgePress)
	case 'R':
		k.q.Press(core.ButtonB, core.EdgeLongPress)
	case 'c':
		k.q.Press(core.ButtonCalib, core.EdgePress)
	case 'C':
		k.q.Press(core.ButtonCalib, core.EdgeLongPress)
	case 'q':
		return false
	}
	return true
}

func toggleEdge(on bool) core.Edge {
	if on {
		return core.EdgePress
	}
	return core.EdgeRelease
}
