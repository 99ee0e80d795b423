// Package throttle turns lever position and elapsed time into the
// displayed speed
package throttle

import (
	"math/rand/v2"
	"time"

	"remotectl/core"
)

// EasterEggHold is how long full reverse at standstill must be held
const EasterEggHold = 5 * time.Second

// Config selects the engine behaviour
type Config struct {
	Profile      Profile
	Coast        bool // Decay speed at neutral
	AutoThrottle bool // Keep counting after the lever returns to neutral
}

// Step is the outcome of one Update
type Step struct {
	Pos         int      // Effective lever position after auto-throttle
	Changed     bool     // Speed in tenths changed
	UnitChanged bool     // Whole speed unit changed
	Cue         core.Cue // Throttle-up, click or easter egg, CueNone otherwise
	ReachedTop  bool     // Speed hit MaxSpeed on this step
}

// Engine is the locally simulated speed
type Engine struct {
	cfg Config
	rnd func(n int) int

	speed        int // Tenths
	oldPos       int
	keepCounting bool
	locked       bool

	delay      time.Duration
	step       int
	lastUpdate time.Time

	eggArmed bool
	eggSince time.Time
}

// NewEngine creates an engine at standstill. A nil rnd uses math/rand.
func NewEngine(cfg Config, rnd func(n int) int) *Engine {
	if rnd == nil {
		rnd = rand.IntN
	}
	return &Engine{cfg: cfg, rnd: rnd, step: 1}
}

// Update runs one engine iteration. With countUp set the lever is taken
// as full forward and the lock is ignored; this drives a standalone
// count-up sequence.
func (e *Engine) Update(pos int, countUp bool, now time.Time) Step {
	if countUp {
		pos = 100
		e.locked = false
	} else {
		if pos == 0 {
			e.locked = false
		}
		pos = e.autoThrottle(pos)
	}

	// Keep the raw position for the next auto-throttle decision
	e.oldPos = pos
	tidx := e.evaluate(pos)
	st := Step{Pos: pos}

	if tidx < Buckets-1 || pos >= 0 || e.speed != 0 {
		e.eggArmed = false
	} else if !e.eggArmed {
		e.eggArmed = true
		e.eggSince = now
	}
	if e.eggArmed && now.Sub(e.eggSince) > EasterEggHold {
		e.eggArmed = false
		st.Cue = core.CueEasterEgg
	}

	if e.locked || now.Sub(e.lastUpdate) <= e.delay {
		return st
	}

	before := e.speed
	switch {
	case pos > 0:
		if e.speed == 0 {
			st.Cue = core.CueThrottleUp
		}
		e.speed += e.step
		if e.speed >= MaxSpeed {
			e.speed = MaxSpeed
			e.keepCounting = false
			st.ReachedTop = true
		}
	case pos < 0:
		e.speed -= e.step
		if e.speed < 0 {
			e.speed = 0
		}
		e.keepCounting = false
	case e.cfg.Coast:
		if e.speed > 0 {
			c := CoastCurve[e.speed/10]
			if d := e.rnd(c[0]) - c[1]; d > 0 {
				e.speed -= d
			}
			if e.speed < 0 {
				e.speed = 0
			}
		}
	}

	if e.speed != before {
		st.Changed = true
		if e.speed/10 != before/10 {
			st.UnitChanged = true
			if pos > 0 && st.Cue == core.CueNone {
				st.Cue = core.CueClick
			}
		}
		e.lastUpdate = now
	}
	return st
}

func (e *Engine) autoThrottle(pos int) int {
	if e.keepCounting {
		if pos < 0 {
			e.keepCounting = false
		} else if e.oldPos > 0 && pos < e.oldPos {
			pos = e.oldPos
		}
	} else if e.cfg.AutoThrottle {
		e.keepCounting = pos > 0 && e.oldPos == 0
	}
	return pos
}

// evaluate sets delay and step for pos and returns the lever bucket
func (e *Engine) evaluate(pos int) int {
	if pos == 0 {
		e.delay = 0
		if e.cfg.Coast {
			base := CoastBaseLinear
			if e.cfg.Profile == Movie {
				base = CoastBaseMovie
			}
			e.delay = time.Duration(e.rnd(CoastJitter)+base) * time.Millisecond
		}
		return 0
	}

	tidx := bucket(pos)
	if e.cfg.Profile == Movie {
		ms := MovieDelays[e.speed/10] * MovieFactors[tidx] / 100
		if pos < 0 && ms < MinReverseDelay {
			ms = MinReverseDelay
		}
		e.delay = time.Duration(ms) * time.Millisecond
		e.step = 1
		if pos < 0 {
			e.step = MovieDecel[tidx]
		}
	} else {
		e.delay = time.Duration(LinearDelays[tidx]) * time.Millisecond
		e.step = LinearSteps[tidx]
		if pos < 0 {
			e.step = LinearDecel[tidx]
		}
	}
	return tidx
}

// Speed returns the speed in tenths
func (e *Engine) Speed() int {
	return e.speed
}

// SetSpeed overrides the speed, as done when following the peer or
// when a sequence resets the display to zero
func (e *Engine) SetSpeed(tenths int) {
	if tenths < 0 {
		tenths = 0
	}
	if tenths > MaxSpeed {
		tenths = MaxSpeed
	}
	e.speed = tenths
}

// Delay returns the step delay chosen by the last Update
func (e *Engine) Delay() time.Duration {
	return e.delay
}

// Lock freezes the speed until the lever returns to neutral
func (e *Engine) Lock() {
	e.locked = true
	e.keepCounting = false
}

// Locked reports whether the lever lock is active
func (e *Engine) Locked() bool {
	return e.locked
}

// KeepCounting reports whether auto-throttle is holding the lever position
func (e *Engine) KeepCounting() bool {
	return e.keepCounting
}

// StopCounting releases the auto-throttle latch
func (e *Engine) StopCounting() {
	e.keepCounting = false
}

// Config returns the current configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// SetConfig changes profile, coast or auto-throttle on the fly
func (e *Engine) SetConfig(cfg Config) {
	e.cfg = cfg
	if !cfg.AutoThrottle {
		e.keepCounting = false
	}
}

// Reset returns to standstill and clears all latches
func (e *Engine) Reset() {
	e.speed = 0
	e.oldPos = 0
	e.keepCounting = false
	e.locked = false
	e.eggArmed = false
	e.lastUpdate = time.Time{}
}
