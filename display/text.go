package display

import "fmt"

// Text is a speedo stand-in for hosts without the LED board. Show
// prints the digits when they changed.
type Text struct {
	out func(string)

	text       string
	tenths     int
	on         bool
	blink      bool
	brightness uint8

	shown string
}

// NewText creates a text speedo writing to out
func NewText(out func(string)) *Text {
	return &Text{out: out, brightness: MaxBrightness}
}

func (t *Text) SetText(s string) {
	if len(s) > 8 {
		s = s[:8]
	}
	t.text = s
}

func (t *Text) SetSpeed(tenths int) {
	t.tenths = tenths
	switch {
	case tenths < 0:
		t.text = "---"
	case tenths > 990:
		t.text = "HI"
	default:
		t.text = fmt.Sprintf("%2d.%d", tenths/10, tenths%10)
	}
}

func (t *Text) Clear() { t.text = "" }

func (t *Text) Show() error {
	t.render()
	return nil
}

func (t *Text) On() {
	t.on = true
	t.render()
}

func (t *Text) Off() {
	t.on = false
	t.render()
}

func (t *Text) Blink(on bool) {
	t.blink = on
	t.render()
}

func (t *Text) SetBrightness(level uint8) {
	t.brightness = min(level, MaxBrightness)
}

func (t *Text) Brightness() uint8 { return t.brightness }

// Tenths returns the tenths digit of the last rendered speed
func (t *Text) Tenths() int {
	if t.tenths < 0 || t.tenths > 990 {
		return 0
	}
	return t.tenths % 10
}

// Current returns what the display shows, empty while off
func (t *Text) Current() string {
	if !t.on {
		return ""
	}
	if t.blink {
		return "[" + t.text + "]*"
	}
	return "[" + t.text + "]"
}

func (t *Text) render() {
	s := t.Current()
	if s == t.shown {
		return
	}
	t.shown = s
	if s == "" {
		s = "[   ] off"
	}
	t.out("speedo: " + s)
}
