// Package timetravel implements the P0/P1/P2 time travel sequence and
// the peer-follow mode
package timetravel

import (
	"time"

	"remotectl/core"
)

// Sequence timing
const (
	P0Duration      = 1400 * time.Millisecond  // Standalone acceleration
	CountUpDuration = 65535 * time.Millisecond // Cap for a count-up P0
	P1Duration      = 6600 * time.Millisecond  // Peak, synced or standalone
	P1Margin        = 3000 * time.Millisecond  // Added to external P1 as safety timeout

	AlarmDelay           = 6400 * time.Millisecond // P2 reentry cue delay, synced
	AlarmDelayStandalone = 6400 * time.Millisecond
)

// Texts shown during the sequence
const (
	PeakText    = "88.0"
	HalfwayText = "  ."
)

// Phase is the sequence phase
type Phase uint8

const (
	Idle Phase = iota
	P0         // Accelerating
	P1         // Peak / tunnel
	P2         // Reentry
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case P0:
		return "P0"
	case P1:
		return "P1"
	case P2:
		return "P2"
	}
	return "unknown"
}

// Kind is where the sequence timing comes from
type Kind uint8

const (
	Standalone Kind = iota
	External        // Requested by the peer with lead and peak durations
)

// EffectKind names a side effect the caller must apply
type EffectKind uint8

const (
	EffectStarted    EffectKind = iota // A sequence started
	EffectCue                          // Play Effect.Cue
	EffectText                         // Show Effect.Text with the display on
	EffectResetSpeed                   // Zero the speed and push the status
	EffectEndPeerP0                    // Leave peer-follow mode
	EffectFinish                       // Lock the lever, refresh the display, drop auto-throttle and arming
)

// Effect is one side effect of a transition
type Effect struct {
	Kind EffectKind
	Cue  core.Cue
	Text string
}

// Sequencer is the time travel state machine. It never touches
// collaborators itself; Trigger and Tick return the effects to apply.
type Sequencer struct {
	phase Phase
	kind  Kind
	start time.Time

	p0Dur, p1Dur time.Duration
	maxTimeout   time.Duration

	flag      bool // Travel start cue played (P0), halfway shown (P1), reentry cue played (P2)
	countUp   bool // Standalone P0 driven by the throttle engine
	p0End     bool // Count-up reached the top
	noLead    bool // Already above the threshold at trigger time
	threshold int  // Tenths; travel start cue once exceeded

	// Network requests
	pending          bool
	lead, peak       time.Duration
	reentry, aborted bool

	reentryCues *core.VariantPicker
}

// NewSequencer creates an idle sequencer. rnd picks reentry cue variants.
func NewSequencer(rnd func(n int) int) *Sequencer {
	return &Sequencer{reentryCues: core.NewVariantPicker(core.ReentryVariants, rnd)}
}

// Trigger starts a sequence. For Standalone, a non-zero p0 runs a
// count-up P0 with the given speed threshold and a zero p0 enters P1
// right away. Returns nil if a sequence is already running.
func (s *Sequencer) Trigger(kind Kind, p0, p1 time.Duration, speed, threshold int, now time.Time) []Effect {
	if s.phase != Idle {
		return nil
	}

	s.setPhase(P0, now)
	s.kind = kind
	s.start = now
	s.p0Dur = p0
	s.p1Dur = p1
	s.maxTimeout = p1 + P1Margin
	s.flag = false
	s.p0End = false
	s.countUp = false
	s.noLead = false

	effects := []Effect{{Kind: EffectStarted}}
	if kind == Standalone {
		if p0 > 0 {
			s.countUp = true
			s.threshold = threshold
			s.noLead = speed > threshold
		} else {
			s.setPhase(P1, now)
			effects = append(effects,
				Effect{Kind: EffectCue, Cue: core.CueTravelStartNoLead},
				Effect{Kind: EffectText, Text: PeakText},
				Effect{Kind: EffectEndPeerP0},
			)
		}
	}
	core.Debugf("timetravel: %s sequence, P0 %v P1 %v", kindName(kind), p0, p1)
	return effects
}

// RequestExternal queues a peer-requested sequence, started by the next
// Tick while idle and powered
func (s *Sequencer) RequestExternal(lead, peak uint16) {
	s.pending = true
	s.reentry = false
	s.aborted = false
	s.lead = time.Duration(lead) * time.Millisecond
	s.peak = time.Duration(peak) * time.Millisecond
}

// NotifyReentry ends an external P1. Ignored unless a sequence is
// running or requested.
func (s *Sequencer) NotifyReentry() {
	if s.pending || s.phase != Idle {
		s.reentry = true
	}
}

// NotifyAbort cuts the sequence short. Ignored unless a sequence is
// running or requested.
func (s *Sequencer) NotifyAbort() {
	if s.pending || s.phase != Idle {
		s.aborted = true
	}
}

// CountUpDone ends a count-up P0
func (s *Sequencer) CountUpDone() {
	if s.countUp {
		s.p0End = true
		s.countUp = false
	}
}

// Tick evaluates the current phase once. speed is the displayed speed
// in tenths.
func (s *Sequencer) Tick(now time.Time, speed int, powered bool) []Effect {
	var effects []Effect

	if s.phase == Idle {
		if !powered || !s.pending {
			return nil
		}
		s.pending = false
		if s.aborted {
			s.aborted = false
			return nil
		}
		effects = s.Trigger(External, s.lead, s.peak, speed, 0, now)
	}

	elapsed := now.Sub(s.start)

	switch s.phase {
	case P0:
		switch {
		case s.kind == External && !s.aborted && elapsed < s.p0Dur:
			// Rendered by peer-follow
		case s.kind == Standalone && !s.p0End && elapsed < s.p0Dur:
			if !s.flag && !s.noLead && speed > s.threshold {
				effects = append(effects, Effect{Kind: EffectCue, Cue: core.CueTravelStart})
				s.flag = true
			}
		default:
			if s.noLead {
				effects = append(effects, Effect{Kind: EffectCue, Cue: core.CueTravelStartNoLead})
			}
			s.countUp = false
			if s.aborted {
				// Skip the peak
				s.setPhase(P2, now)
				s.p1Dur = AlarmDelay
			} else {
				s.setPhase(P1, now)
				effects = append(effects, Effect{Kind: EffectText, Text: PeakText})
			}
			effects = append(effects, Effect{Kind: EffectEndPeerP0})
			s.flag = false
			s.start = now
		}

	case P1:
		if s.kind == External {
			if !s.reentry && !s.aborted && elapsed < s.maxTimeout {
				if !s.flag && elapsed > s.p1Dur/2 {
					effects = append(effects, halfway()...)
					s.flag = true
				}
			} else {
				// Reentry or abort before the halfway point
				if !s.flag {
					effects = append(effects, halfway()...)
				}
				s.setPhase(P2, now)
				s.start = now
				s.flag = false
				s.p1Dur = AlarmDelay
			}
		} else {
			if elapsed < s.p1Dur {
				if !s.flag && elapsed > s.p1Dur/2 {
					effects = append(effects, halfway()...)
					s.flag = true
				}
			} else {
				s.setPhase(P2, now)
				effects = append(effects, Effect{Kind: EffectCue, Cue: core.CueTimeTravel})
				s.start = now
				s.flag = false
				s.p1Dur = AlarmDelayStandalone
			}
		}

	case P2:
		if s.flag || s.aborted {
			effects = append(effects, Effect{Kind: EffectFinish})
			s.setPhase(Idle, now)
			s.aborted = false
			s.reentry = false
		} else if elapsed > s.p1Dur {
			cue := core.CueReentry1 + core.Cue(s.reentryCues.Next())
			effects = append(effects, Effect{Kind: EffectCue, Cue: cue})
			s.flag = true
		}
	}
	return effects
}

func halfway() []Effect {
	return []Effect{
		{Kind: EffectText, Text: HalfwayText},
		{Kind: EffectResetSpeed},
	}
}

// Cancel drops any running or requested sequence, as on power off
func (s *Sequencer) Cancel() {
	s.phase = Idle
	s.pending = false
	s.aborted = false
	s.reentry = false
	s.countUp = false
	s.p0End = false
}

func (s *Sequencer) setPhase(p Phase, now time.Time) {
	if p != s.phase {
		core.RecordEvent(core.EvtPhase, now, uint32(s.phase), uint32(p))
	}
	s.phase = p
}

// Phase returns the current phase
func (s *Sequencer) Phase() Phase {
	return s.phase
}

// Kind returns the kind of the running sequence
func (s *Sequencer) Kind() Kind {
	return s.kind
}

// Running reports whether a sequence is active
func (s *Sequencer) Running() bool {
	return s.phase != Idle
}

// Pending reports whether a peer request waits to start
func (s *Sequencer) Pending() bool {
	return s.pending
}

// InPeak reports whether P1 or P2 is active
func (s *Sequencer) InPeak() bool {
	return s.phase == P1 || s.phase == P2
}

// CountingUp reports whether a count-up P0 drives the throttle engine
func (s *Sequencer) CountingUp() bool {
	return s.countUp
}

// Durations returns the P0 and active P1/P2 durations
func (s *Sequencer) Durations() (p0, p1 time.Duration) {
	return s.p0Dur, s.p1Dur
}

func kindName(k Kind) string {
	if k == External {
		return "external"
	}
	return "standalone"
}
