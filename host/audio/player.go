// Package audio is the host stand-in for the sound module. It logs each
// cue and keeps it "playing" for the cue's length so the control loop
// sees realistic Done() timing.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"remotectl/core"
)

// MaxVolume is the loudest volume level
const MaxVolume = 19

const defaultLength = 1500 * time.Millisecond

// Lengths of the longer sound files
var cueLengths = map[core.Cue]time.Duration{
	core.CuePowerOn:           3 * time.Second,
	core.CueClick:             40 * time.Millisecond,
	core.CueThrottleUp:        600 * time.Millisecond,
	core.CueTravelStart:       4 * time.Second,
	core.CueTravelStartNoLead: 4 * time.Second,
	core.CueTimeTravel:        5 * time.Second,
	core.CueAlarm:             2500 * time.Millisecond,
	core.CueVolume:            300 * time.Millisecond,
}

// Player implements core.Audio
type Player struct {
	clock core.Clock
	dir   string // Sound file directory, empty to skip file checks
	out   func(string)

	volume  uint8
	current core.Cue
	until   time.Time
	played  int
}

// NewPlayer creates a silent player. Lines go to out; dir, if set, is
// checked for the cue's sound file.
func NewPlayer(clock core.Clock, dir string, out func(string)) *Player {
	if out == nil {
		out = core.DebugPrintln
	}
	return &Player{clock: clock, dir: dir, out: out, volume: 6}
}

// Play starts c, cutting off whatever is playing
func (p *Player) Play(c core.Cue) {
	if c == core.CueNone {
		return
	}
	if p.current != core.CueNone {
		p.out(fmt.Sprintf("audio: %s cut off", p.current))
	}
	name := c.String() + ".mp3"
	if p.dir != "" {
		if _, err := os.Stat(filepath.Join(p.dir, name)); err != nil {
			p.out(fmt.Sprintf("audio: %s missing", name))
			p.current = core.CueNone
			return
		}
	}

	length, ok := cueLengths[c]
	if !ok {
		length = defaultLength
	}
	p.current = c
	p.until = p.clock.Now().Add(length)
	p.played++
	p.out(fmt.Sprintf("audio: play %s at volume %d", name, p.volume))
}

// Stop ends playback
func (p *Player) Stop() {
	p.current = core.CueNone
}

// Done reports whether nothing is playing
func (p *Player) Done() bool {
	p.Service()
	return p.current == core.CueNone
}

// SetVolume sets the level, clamped to MaxVolume
func (p *Player) SetVolume(level uint8) {
	p.volume = min(level, MaxVolume)
}

// Volume returns the current level
func (p *Player) Volume() uint8 {
	return p.volume
}

// Service ends the current cue once its length has passed
func (p *Player) Service() {
	if p.current != core.CueNone && !p.clock.Now().Before(p.until) {
		p.current = core.CueNone
	}
}

// Playing returns the cue being played, CueNone if silent
func (p *Player) Playing() core.Cue {
	p.Service()
	return p.current
}

// Played returns how many cues were started
func (p *Player) Played() int {
	return p.played
}
