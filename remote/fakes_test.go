package remote

import (
	"testing"
	"time"

	"remotectl/core"
	"remotectl/protocol"
	"remotectl/remote/config"
)

type fakeDisplay struct {
	texts      []string
	speed      int
	on         bool
	blink      bool
	brightness uint8
	shows      int
}

func (d *fakeDisplay) SetText(s string) { d.texts = append(d.texts, s) }
func (d *fakeDisplay) SetSpeed(tenths int) { d.speed = tenths }
func (d *fakeDisplay) Clear() {}
func (d *fakeDisplay) Show() error { d.shows++; return nil }
func (d *fakeDisplay) On() { d.on = true }
func (d *fakeDisplay) Off() { d.on = false }
func (d *fakeDisplay) Blink(on bool) { d.blink = on }
func (d *fakeDisplay) SetBrightness(level uint8) { d.brightness = min(level, 15) }
func (d *fakeDisplay) Brightness() uint8 { return d.brightness }
func (d *fakeDisplay) Tenths() int { return d.speed % 10 }

func (d *fakeDisplay) lastText() string {
	if len(d.texts) == 0 {
		return ""
	}
	return d.texts[len(d.texts)-1]
}

func (d *fakeDisplay) shown(s string) bool {
	for _, t := range d.texts {
		if t == s {
			return true
		}
	}
	return false
}

type fakeAudio struct {
	cues   []core.Cue
	stops  int
	volume uint8
}

func (a *fakeAudio) Play(c core.Cue) { a.cues = append(a.cues, c) }
func (a *fakeAudio) Stop() { a.stops++ }
func (a *fakeAudio) Done() bool { return true }
func (a *fakeAudio) SetVolume(level uint8) { a.volume = level }
func (a *fakeAudio) Service() {}

func (a *fakeAudio) last() core.Cue {
	if len(a.cues) == 0 {
		return core.CueNone
	}
	return a.cues[len(a.cues)-1]
}

func (a *fakeAudio) played(c core.Cue) bool {
	for _, x := range a.cues {
		if x == c {
			return true
		}
	}
	return false
}

type fakeInput struct {
	events []core.InputEvent
	pos    int

	zeroed bool
	upOK   bool
	downOK bool
}

func (in *fakeInput) Scan() []core.InputEvent {
	ev := in.events
	in.events = nil
	return ev
}

func (in *fakeInput) Throttle() int { return in.pos }

func (in *fakeInput) ZeroPosition() { in.zeroed = true }
func (in *fakeInput) SetMaxUp() bool { return in.upOK }
func (in *fakeInput) SetMaxDown() bool { return in.downOK }

func (in *fakeInput) press(b core.Button, e core.Edge) {
	in.events = append(in.events, core.InputEvent{Button: b, Edge: e})
}

// fakeLink stands in for the peer link
type fakeLink struct {
	connected  bool
	peer       protocol.PeerState
	pushes     []protocol.LocalStatus
	requests   []bool
	unregister int
}

func (l *fakeLink) Poll() {}
func (l *fakeLink) PollQuick() {}

func (l *fakeLink) PushStatus(st protocol.LocalStatus) error {
	l.pushes = append(l.pushes, st)
	return nil
}

func (l *fakeLink) RequestTimeTravel(probe bool) error {
	if !l.connected {
		return protocol.ErrNotConnected
	}
	l.requests = append(l.requests, probe)
	if l.peer.Busy {
		return protocol.ErrPeerBusy
	}
	return nil
}

func (l *fakeLink) Unregister() error {
	l.unregister++
	return nil
}

func (l *fakeLink) Connected() bool { return l.connected }
func (l *fakeLink) Peer() protocol.PeerState { return l.peer }

func (l *fakeLink) lastPush() protocol.LocalStatus {
	if len(l.pushes) == 0 {
		return protocol.LocalStatus{}
	}
	return l.pushes[len(l.pushes)-1]
}

type source struct {
	codes []uint32
}

func (s *source) Drain() []uint32 {
	c := s.codes
	s.codes = nil
	return c
}

type rig struct {
	m       *Manager
	display *fakeDisplay
	audio   *fakeAudio
	input   *fakeInput
	link    *fakeLink
	store   *MemStore
	clock   *core.ManualClock
	src     *source
	reboots int
}

func newRig(t *testing.T, cfg *config.Config) *rig {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	r := &rig{
		display: &fakeDisplay{},
		audio:   &fakeAudio{},
		input:   &fakeInput{upOK: true, downOK: true},
		link:    &fakeLink{peer: protocol.PeerState{Speed: -1}},
		store:   &MemStore{},
		clock:   core.NewManualClock(),
		src:     &source{},
	}
	m, err := NewManager(Options{
		Config:  cfg,
		Display: r.display,
		Audio:   r.audio,
		Input:   r.input,
		Store:   r.store,
		Clock:   r.clock,
		Rand:    func(n int) int { return 0 },
		Source:  r.src,
		Reboot:  func() { r.reboots++ },
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	m.SetLink(r.link)
	m.Start()
	r.m = m
	return r
}

// tick advances the clock by one loop interval and runs the loop once
func (r *rig) tick() {
	r.clock.Advance(TickInterval)
	r.m.Tick()
}

// run ticks for d
func (r *rig) run(d time.Duration) {
	for end := r.clock.Now().Add(d); r.clock.Now().Before(end); {
		r.tick()
	}
}

func (r *rig) powerOn() {
	r.input.press(core.ButtonPower, core.EdgePress)
	r.tick()
}

func (r *rig) powerOff() {
	r.input.press(core.ButtonPower, core.EdgeRelease)
	r.tick()
}
