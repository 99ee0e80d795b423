package timetravel

import (
	"time"

	"remotectl/core"
)

// Follow mode timing
const (
	FollowTimeout   = 10 * time.Second      // No speed change for this long ends follow mode
	FakeTenthsEvery = 20 * time.Millisecond // Synthesized tenths step between reports
	ClickSpacing    = 25 * time.Millisecond
)

const noSpeed = 2000

// FollowStep tells the caller what to render
type FollowStep struct {
	Active bool     // Follow mode owns the display
	Render bool     // Show Tenths
	Tenths int      // Speed to show, in tenths
	Cue    core.Cue // Click or throttle-up
	Start  bool     // Follow mode just began
	End    bool     // Follow mode just ended; refresh the display
}

// Follower renders the peer's speed while the peer is in its own P0
type Follower struct {
	in      bool // Peer reports P0
	stalled bool
	speed   int // Whole units
	fresh   bool

	wasIn      bool
	oldSpeed   int
	startSpeed int
	lastChange time.Time
	lastReport time.Time
	lastClick  time.Time
	fake       int
}

// NewFollower creates an inactive follower
func NewFollower() *Follower {
	return &Follower{oldSpeed: noSpeed}
}

// Observe records a peer P0 speed report
func (f *Follower) Observe(speed uint16, stalled bool) {
	f.in = true
	f.speed = int(speed)
	f.stalled = stalled
	f.fresh = true
}

// Stop leaves follow mode on the next Tick
func (f *Follower) Stop() {
	f.in = false
}

// Active reports whether the peer is being followed
func (f *Follower) Active() bool {
	return f.in
}

// Tick advances follow mode. current is the locally displayed speed and
// postDot the tenths digit currently shown, both used when a report
// arrives.
func (f *Follower) Tick(now time.Time, powered bool, current, postDot int) FollowStep {
	var st FollowStep

	if !f.in {
		if f.wasIn {
			f.wasIn = false
			f.oldSpeed = noSpeed
			st.End = true
		}
		return st
	}
	st.Active = true

	if !f.wasIn || (f.fresh && f.speed != f.oldSpeed) {
		if !f.wasIn {
			f.wasIn = true
			f.lastClick = time.Time{}
			f.startSpeed = current / 10
			st.Start = true
		}
		f.lastReport = now
		if powered {
			if f.speed > f.startSpeed {
				if !f.stalled {
					if f.lastClick.IsZero() || now.Sub(f.lastClick) > ClickSpacing {
						f.lastClick = now
						st.Cue = core.CueClick
					}
				}
				st.Render = true
				st.Tenths = f.speed * 10
				if f.stalled {
					st.Tenths += postDot
				}
			}
			f.oldSpeed = f.speed
			f.lastChange = now
			f.fake = 0
		}
	} else if powered {
		if f.speed >= f.startSpeed && !f.stalled && now.Sub(f.lastChange) > FakeTenthsEvery {
			f.lastChange = now
			f.fake++
			if f.fake > 9 {
				f.fake = 1
			}
			st.Render = true
			st.Tenths = f.speed*10 + f.fake
		}
	}
	f.fresh = false

	if now.Sub(f.lastReport) > FollowTimeout {
		core.Debugf("timetravel: no peer speed change for %v, leaving follow mode", now.Sub(f.lastReport))
		f.in = false
		f.wasIn = false
		f.oldSpeed = noSpeed
		st.Active = false
		st.End = true
	}
	return st
}
