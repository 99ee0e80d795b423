// Package display drives the three digit 7-segment speedo through an
// HT16K33 LED controller
package display

import (
	"tinygo.org/x/drivers"
)

// DefaultAddress is the HT16K33 address with no solder jumpers set
const DefaultAddress = 0x70

// HT16K33 commands
const (
	cmdOscillator = 0x20
	cmdDisplay    = 0x80
	cmdDimming    = 0xE0

	oscillatorOn = 0x01
	displayOn    = 0x01
	blinkBit     = 0x02
)

// MaxBrightness is the brightest dimming level
const MaxBrightness = 15

// Segment bits as wired on the speedo board
const (
	segT   = 1 << iota // top
	segTR              // top right
	segBR              // bottom right
	segB               // bottom
	segBL              // bottom left
	segTL              // top left
	segM               // middle
	segDot
)

// Font indices for the non-alphanumeric glyphs
const (
	glyphDot     = 36
	glyphMinus   = 37
	glyphSeg1    = 38 // single segments, coded as bytes 1..9
	glyphPercent = 47
)

var font = [48]uint16{
	segT | segTR | segBR | segB | segBL | segTL, // 0
	segTR | segBR,
	segT | segTR | segB | segBL | segM,
	segT | segTR | segBR | segB | segM,
	segTR | segBR | segTL | segM,
	segT | segBR | segB | segTL | segM,
	segBR | segB | segBL | segTL | segM,
	segT | segTR | segBR,
	segT | segTR | segBR | segB | segBL | segTL | segM,
	segT | segTR | segBR | segTL | segM, // 9
	segT | segTR | segBR | segBL | segTL | segM, // A
	segBR | segB | segBL | segTL | segM,
	segT | segB | segBL | segTL,
	segTR | segBR | segB | segBL | segM,
	segT | segB | segBL | segTL | segM,
	segT | segBL | segTL | segM,
	segT | segBR | segB | segBL | segTL,
	segTR | segBR | segBL | segTL | segM, // H
	segBL | segTL, // I
	segTR | segBR | segB | segBL,
	segT | segBR | segBL | segTL | segM,
	segB | segBL | segTL,
	segT | segBR | segBL,
	segT | segTR | segBR | segBL | segTL,
	segT | segTR | segBR | segB | segBL | segTL,
	segT | segTR | segBL | segTL | segM,
	segT | segTR | segB | segTL | segM,
	segT | segTR | segBL | segTL,
	segT | segBR | segB | segTL | segM,
	segB | segBL | segTL | segM,
	segTR | segBR | segB | segBL | segTL,
	segTR | segBR | segB | segBL | segTL,
	segTR | segB | segTL,
	segTR | segBR | segBL | segTL | segM,
	segTR | segBR | segB | segTL | segM,
	segT | segTR | segB | segBL | segM, // Z
	segDot,
	segM,
	segT,
	segTR,
	segBR,
	segB,
	segBL,
	segTL,
	segT | segB,
	segT | segBR | segB | segBL | segM,
	segBR | segB | segBL | segM,
	segT | segB | segM, // percent
}

// Digit placement in display RAM, left to right. The first two digits
// share the first RAM word.
var (
	digitPos   = [4]int{0, 0, 1, 2}
	digitShift = [4]uint{0, 8, 0, 0}
)

const (
	numDigits = 4
	maxBufPos = 2
)

// Speedo is the HT16K33 backed speed display. Bus errors are kept and
// returned by Err; the control loop never stops on them.
type Speedo struct {
	bus  drivers.I2C
	addr uint16

	buf [8]uint16

	brightness uint8
	briCache   uint8
	onCache    uint8
	blink      uint8

	speed   int
	postDot int

	err error
}

// New creates a speedo on bus at addr. Call Configure before use.
func New(bus drivers.I2C, addr uint16) *Speedo {
	if addr == 0 {
		addr = DefaultAddress
	}
	return &Speedo{bus: bus, addr: addr, briCache: 0xFE}
}

// Configure starts the oscillator, clears the display RAM and turns the
// display on at full brightness
func (d *Speedo) Configure() error {
	if err := d.command(cmdOscillator | oscillatorOn); err != nil {
		return err
	}
	d.Clear()
	d.SetBrightness(MaxBrightness)
	if err := d.Show(); err != nil {
		return err
	}
	d.On()
	return d.err
}

// On turns the display on
func (d *Speedo) On() {
	if d.onCache == displayOn|d.blink {
		return
	}
	d.command(cmdDisplay | displayOn | d.blink)
	d.onCache = displayOn | d.blink
	d.briCache = 0xFE
}

// Off turns the display off
func (d *Speedo) Off() {
	if d.onCache == 0 {
		return
	}
	d.command(cmdDisplay)
	d.onCache = 0
}

// IsOn reports whether the display is lit
func (d *Speedo) IsOn() bool {
	return d.onCache != 0
}

// Blink toggles hardware blinking
func (d *Speedo) Blink(on bool) {
	if on {
		d.blink = blinkBit
	} else {
		d.blink = 0
	}
	if d.onCache != 0 {
		d.On()
	}
}

// SetBrightness sets the dimming level, clamped to 0..15
func (d *Speedo) SetBrightness(level uint8) {
	if level > MaxBrightness {
		level = MaxBrightness
	}
	d.brightness = level
	if level != d.briCache {
		d.command(cmdDimming | level)
		d.briCache = level
	}
}

// Brightness returns the dimming level
func (d *Speedo) Brightness() uint8 {
	return d.brightness
}

// Clear empties the buffer; Show makes it visible
func (d *Speedo) Clear() {
	d.buf = [8]uint16{}
}

// Show writes the buffer to display RAM
func (d *Speedo) Show() error {
	out := make([]byte, 1, 1+2*(maxBufPos+1))
	for i := 0; i <= maxBufPos; i++ {
		out = append(out, byte(d.buf[i]), byte(d.buf[i]>>8))
	}
	return d.tx(out)
}

// SetText renders up to four characters. A '.' following a character
// lights that digit's dot.
func (d *Speedo) SetText(s string) {
	d.Clear()
	for idx, pos := 0, 0; idx < len(s) && pos < numDigits; pos++ {
		v := glyph(s[idx]) << digitShift[pos]
		idx++
		if idx < len(s) && s[idx] == '.' {
			v |= font[glyphDot] << digitShift[pos]
			idx++
		}
		d.buf[digitPos[pos]] |= v
	}
}

// SetSpeed renders tenths as "88.0". Negative values show dashes and
// anything above 99.0 shows "HI".
func (d *Speedo) SetSpeed(tenths int) {
	var b1, b2, b3 uint16

	d.speed = tenths
	d.Clear()

	switch {
	case tenths < 0:
		b1, b2, b3 = font[glyphMinus], font[glyphMinus], font[glyphMinus]
		d.postDot = 0
	case tenths > 990:
		b1 = font['H'-'A'+10]
		b2 = font['I'-'A'+10]
		d.postDot = 0
	default:
		if tens := tenths / 100; tens != 0 {
			b1 = font[tens]
		}
		b2 = font[tenths%100/10]
		d.postDot = tenths % 10
		b3 = font[d.postDot]
	}

	d.buf[digitPos[0]] |= b1 << digitShift[0]
	d.buf[digitPos[1]] |= b2 << digitShift[1]
	d.buf[digitPos[2]] |= b3 << digitShift[2]
	d.buf[digitPos[1]] |= font[glyphDot] << digitShift[1]
}

// Speed returns the last value passed to SetSpeed
func (d *Speedo) Speed() int {
	return d.speed
}

// Tenths returns the tenths digit of the last rendered speed
func (d *Speedo) Tenths() int {
	return d.postDot
}

// Err returns the last bus error
func (d *Speedo) Err() error {
	return d.err
}

func (d *Speedo) command(c uint8) error {
	return d.tx([]byte{c})
}

func (d *Speedo) tx(w []byte) error {
	err := d.bus.Tx(d.addr, w, nil)
	if err != nil {
		d.err = err
	}
	return err
}

func glyph(c byte) uint16 {
	switch {
	case c >= '0' && c <= '9':
		return font[c-'0']
	case c >= 'A' && c <= 'Z':
		return font[c-'A'+10]
	case c >= 'a' && c <= 'z':
		return font[c-'a'+10]
	case c == '.':
		return font[glyphDot]
	case c == '-':
		return font[glyphMinus]
	case c == '&':
		return font[glyphPercent]
	case c >= 1 && c <= 9:
		return font[glyphSeg1+int(c)-1]
	}
	return 0
}
