package remote

import (
	"context"
	"math/rand/v2"
	"net/netip"
	"time"

	"remotectl/core"
	"remotectl/protocol"
	"remotectl/remote/config"
	"remotectl/remote/throttle"
	"remotectl/remote/timetravel"
)

// TickInterval is the pause between two control loop iterations
const TickInterval = 5 * time.Millisecond

const (
	offDisplayHold  = time.Second      // Value shown while powered off stays this long
	adjustWindow    = 10 * time.Second // A/B first press only shows the value
	armTimeout      = time.Second      // Network travel must start this soon after the trigger
	brakeWarnWindow = 2 * time.Second
	rebootDelay     = 500 * time.Millisecond
)

// Link is what the control loop needs from the peer link
type Link interface {
	Poll()
	PollQuick()
	PushStatus(st protocol.LocalStatus) error
	RequestTimeTravel(probe bool) error
	Unregister() error
	Connected() bool
	Peer() protocol.PeerState
}

// Options are the collaborators of a Manager. Display, Audio and Input
// are required.
type Options struct {
	Config  *config.Config
	Display core.Display
	Audio   core.Audio
	Input   core.Input
	Store   SettingsStore
	Clock   core.Clock
	Rand    func(n int) int
	Source  CommandSource // Optional

	LocalIP         func() netip.Addr // Shown by the IP display
	UpdateAvailable func() bool
	Reboot          func()
	AfterTick       func() // Called at the end of every Tick, from the loop goroutine
}

// CommandSource hands over command codes collected outside the loop,
// such as console input
type CommandSource interface {
	Drain() []uint32
}

// Manager runs the cooperative control loop. Its methods must be called
// from the loop goroutine; other goroutines feed it through a
// CommandSource.
type Manager struct {
	cfg     *config.Config
	display core.Display
	audio   core.Audio
	input   core.Input
	calib   core.Calibrator
	store   SettingsStore
	clock   core.Clock
	link    Link
	source  CommandSource

	engine *throttle.Engine
	seq    *timetravel.Sequencer
	follow *timetravel.Follower

	queue    core.CommandQueue
	commands *core.CommandRegistry
	sched    core.Scheduler
	saver    *saver

	settings Settings
	state    SystemState

	brakeCues *core.VariantPicker

	localIP         func() netip.Addr
	updateAvailable func() bool
	reboot          func()
	afterTick       func()

	boot      bool
	powerSeen bool
}

// NewManager creates a manager with its settings loaded. Attach a link
// with SetLink before calling Start; without one the remote runs
// standalone.
func NewManager(opts Options) (*Manager, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	m := &Manager{
		cfg:             cfg,
		display:         opts.Display,
		audio:           opts.Audio,
		input:           opts.Input,
		store:           opts.Store,
		clock:           opts.Clock,
		source:          opts.Source,
		link:            noLink{},
		follow:          timetravel.NewFollower(),
		commands:        core.NewCommandRegistry(),
		localIP:         opts.LocalIP,
		updateAvailable: opts.UpdateAvailable,
		reboot:          opts.Reboot,
		afterTick:       opts.AfterTick,
	}
	if m.clock == nil {
		m.clock = core.SystemClock{}
	}
	if m.store == nil {
		m.store = &MemStore{}
	}
	if m.localIP == nil {
		m.localIP = func() netip.Addr { return netip.Addr{} }
	}
	if m.updateAvailable == nil {
		m.updateAvailable = func() bool { return false }
	}
	if m.reboot == nil {
		m.reboot = func() {}
	}
	if c, ok := opts.Input.(core.Calibrator); ok {
		m.calib = c
	}

	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.IntN
	}
	m.seq = timetravel.NewSequencer(rnd)
	m.brakeCues = core.NewVariantPicker(core.BrakeWarnVariants, rnd)

	m.settings = defaultSettings(cfg)
	stored, err := m.store.Load()
	if err != nil {
		core.Debugf("remote: %v, using defaults", err)
	} else if stored != (Settings{}) {
		m.settings = stored
	}
	m.applySettings()

	m.engine = throttle.NewEngine(m.engineConfig(), rnd)
	m.saver = newSaver(&m.sched, m.clock, m.idle, m.writeSettings)

	if err := m.registerCommands(); err != nil {
		return nil, err
	}
	return m, nil
}

func defaultSettings(cfg *config.Config) Settings {
	return Settings{
		Brightness:    cfg.Brightness,
		Volume:        cfg.Volume,
		AutoThrottle:  cfg.AutoThrottle,
		Coast:         cfg.Coast,
		PowerMaster:   cfg.PowerMaster,
		MovieMode:     cfg.Profile != "linear",
		ShowPeerSpeed: cfg.ShowPeerSpeed,
		Clicks:        !cfg.NoClicks,
		UpdateAvail:   true,
	}
}

func (m *Manager) applySettings() {
	m.state.PowerMaster = m.settings.PowerMaster
	m.state.ShowPeerSpeed = m.settings.ShowPeerSpeed
	m.state.Clicks = m.settings.Clicks
	m.state.UpdateAvail = m.settings.UpdateAvail
}

func (m *Manager) engineConfig() throttle.Config {
	profile := throttle.Linear
	if m.settings.MovieMode {
		profile = throttle.Movie
	}
	return throttle.Config{
		Profile:      profile,
		Coast:        m.settings.Coast,
		AutoThrottle: m.settings.AutoThrottle,
	}
}

// SetLink attaches the peer link
func (m *Manager) SetLink(l Link) {
	if l == nil {
		m.link = noLink{}
		return
	}
	m.link = l
}

// LinkEvents returns the receiver for link notifications
func (m *Manager) LinkEvents() protocol.Events {
	return linkEvents{m}
}

// Start brings the remote up with fake power off
func (m *Manager) Start() {
	m.display.SetBrightness(m.settings.Brightness)
	m.audio.SetVolume(m.settings.Volume)

	if m.state.UpdateAvail && m.updateAvailable() {
		m.display.On()
		m.display.SetText("UPD")
		m.display.Show()
		m.Delay(500 * time.Millisecond)
		m.display.Clear()
		m.display.Show()
	}
	m.display.Off()

	m.state.peerShown = -2
	m.boot = true
	m.link.Poll()
	core.DebugPrintln("remote: started")
}

// Run ticks the control loop until ctx is cancelled
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return ctx.Err()
		default:
		}
		m.Tick()
		m.clock.Sleep(TickInterval)
	}
}

// Shutdown writes pending settings and says goodbye to the peer
func (m *Manager) Shutdown() {
	m.saver.flush()
	if err := m.link.Unregister(); err != nil {
		core.Debugf("remote: unregister: %v", err)
	}
}

// Delay is the bounded busy-wait of the control loop. It keeps the
// link's multicast intake and the audio serviced.
func (m *Manager) Delay(d time.Duration) {
	core.Delay(m.clock, d, m.service)
}

func (m *Manager) service() {
	m.link.PollQuick()
	m.audio.Service()
}

// Enqueue adds a command code to the queue
func (m *Manager) Enqueue(code uint32) {
	if code == 1900 {
		m.state.brakeWarnAt = m.clock.Now()
	}
	m.queue.Push(code)
}

// Tick runs one control loop iteration
func (m *Manager) Tick() {
	m.link.Poll()
	m.audio.Service()

	for _, ev := range m.input.Scan() {
		m.handleInput(ev)
	}
	if m.source != nil {
		for _, code := range m.source.Drain() {
			m.Enqueue(code)
		}
	}

	if m.state.prepare {
		m.state.prepare = false
		if m.state.Powered && !m.seq.Running() {
			m.prepareTravel()
		}
	}
	if m.state.wakeup {
		m.state.wakeup = false
		if m.state.Powered && !m.seq.Running() {
			m.wake()
		}
	}

	now := m.clock.Now()
	m.runThrottle(now)
	m.runFollow(now)

	if m.state.Powered && m.state.forceDisplay && !m.seq.Running() && !m.follow.Active() {
		m.state.forceDisplay = false
		m.showSpeed()
	}

	if !m.state.Powered && !m.state.offDisplayAt.IsZero() && now.Sub(m.state.offDisplayAt) > offDisplayHold {
		m.state.offDisplayAt = time.Time{}
		m.display.Off()
		m.state.peerShown = -2
	}

	if m.idle() {
		m.executeCommand()
	}

	m.apply(m.seq.Tick(m.clock.Now(), m.engine.Speed(), m.state.Powered))

	if !m.seq.Running() && m.state.alarm && m.idle() {
		m.state.alarm = false
		if m.cfg.PlayAlarm {
			m.audio.Play(core.CueAlarm)
		}
	}

	m.sched.TimerDispatch(m.clock.Now())

	if m.boot {
		m.boot = false
		if !m.powerSeen {
			m.push()
		}
	}
	if m.afterTick != nil {
		m.afterTick()
	}
}

// idle reports whether nothing time critical is going on: no sequence,
// no calibration, no peer-follow and the lever at rest
func (m *Manager) idle() bool {
	return !m.seq.Running() && !m.state.Calibrating && !m.follow.Active() &&
		m.state.ThrottlePos == 0 && !m.engine.KeepCounting()
}

func (m *Manager) runThrottle(now time.Time) {
	pos := m.input.Throttle()

	if m.state.Armed != ArmOff {
		m.state.ThrottlePos = pos
		if m.state.Powered && !m.seq.Running() && !m.follow.Active() {
			m.runArmed(pos, now)
		}
		return
	}
	if m.state.Calibrating || m.follow.Active() {
		return
	}

	countUp := m.seq.CountingUp()
	if m.state.Powered && (!m.seq.Running() || countUp) {
		st := m.engine.Update(pos, countUp, now)
		m.state.ThrottlePos = st.Pos

		switch st.Cue {
		case core.CueClick:
			if m.state.Clicks {
				m.audio.Play(st.Cue)
			}
		case core.CueNone:
		default:
			m.audio.Play(st.Cue)
		}

		if st.ReachedTop {
			if countUp {
				m.seq.CountUpDone()
			} else if !m.link.Connected() || m.link.Peer().Busy {
				// No network travel possible, run one here
				m.timeTravel(0)
			}
		}
		if st.UnitChanged {
			m.push()
		}
		if st.Changed {
			m.showSpeed()
		}
	} else {
		m.state.ThrottlePos = pos
	}

	if !m.state.Powered && !m.state.Calibrating && m.state.offDisplayAt.IsZero() {
		if m.state.ShowPeerSpeed {
			speed := int(m.link.Peer().Speed)
			if speed != m.state.peerShown {
				m.display.On()
				m.display.SetSpeed(speed * 10)
				m.display.Show()
				m.state.peerShown = speed
			}
		} else {
			// Turn the display off on the next check
			m.state.offDisplayAt = now.Add(-offDisplayHold - time.Millisecond)
		}
	}
}

// runArmed handles the lever while tt-on-throttle is armed
func (m *Manager) runArmed(pos int, now time.Time) {
	switch {
	case m.state.Armed == ArmReady && pos > 0:
		if m.state.Brake {
			if !m.state.brakeWarned {
				m.playBrakeWarning()
				m.state.brakeWarned = true
			}
			return
		}
		m.state.brakeWarned = false
		if m.state.armedStandalone {
			m.state.disarm()
			m.timeTravel(timetravel.CountUpDuration)
			return
		}
		m.state.Armed = ArmFired
		m.state.armedAt = now
		if err := m.link.RequestTimeTravel(false); err != nil {
			core.Debugf("remote: time travel request: %v", err)
		}

	case m.state.Armed == ArmFired:
		if now.Sub(m.state.armedAt) > armTimeout {
			m.state.disarm()
			m.audio.Play(core.CueBad)
		}
	}
}

func (m *Manager) runFollow(now time.Time) {
	st := m.follow.Tick(now, m.state.Powered, m.engine.Speed(), m.display.Tenths())

	if st.Start {
		m.state.disarm()
		core.DebugPrintln("remote: following peer P0")
	}
	if st.Cue == core.CueClick && m.state.Clicks {
		m.audio.Play(st.Cue)
	}
	if st.Render {
		m.engine.SetSpeed(st.Tenths)
		m.display.On()
		m.display.SetSpeed(st.Tenths)
		m.display.Show()
	}
	if st.End {
		m.state.forceDisplay = true
		m.state.disarm()
	}
}

// timeTravel starts a standalone sequence. A zero p0 skips P0.
func (m *Manager) timeTravel(p0 time.Duration) {
	threshold := m.engine.Config().Profile.P1Start()
	m.apply(m.seq.Trigger(timetravel.Standalone, p0, timetravel.P1Duration, m.engine.Speed(), threshold, m.clock.Now()))
}

// apply carries out sequencer effects
func (m *Manager) apply(effects []timetravel.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case timetravel.EffectStarted:
			m.state.disarm()
			m.saver.flush()
		case timetravel.EffectCue:
			m.audio.Play(e.Cue)
		case timetravel.EffectText:
			m.display.SetText(e.Text)
			m.display.Show()
			m.display.On()
		case timetravel.EffectResetSpeed:
			m.engine.SetSpeed(0)
			m.push()
		case timetravel.EffectEndPeerP0:
			m.follow.Stop()
		case timetravel.EffectFinish:
			m.engine.Lock()
			m.state.forceDisplay = true
			m.state.disarm()
		}
	}
}

func (m *Manager) showSpeed() {
	m.display.SetSpeed(m.engine.Speed())
	m.display.Show()
}

// push sends the combined state to the peer
func (m *Manager) push() {
	st := protocol.LocalStatus{
		Power:         m.state.Powered,
		Brake:         m.state.Brake,
		PowerMaster:   m.state.PowerMaster,
		ShowPeerSpeed: m.state.ShowPeerSpeed,
		Speed:         uint8(m.engine.Speed() / 10),
	}
	if err := m.link.PushStatus(st); err != nil {
		core.Debugf("remote: status push deferred: %v", err)
	}
}

// showOff shows a value while powered off; it vanishes after a second
func (m *Manager) showOff(text string) {
	m.display.SetText(text)
	m.display.Show()
	m.display.On()
	m.state.offDisplayAt = m.clock.Now()
}

func (m *Manager) playBrakeWarning() {
	m.audio.Play(core.CueBrakeWarn1 + core.Cue(m.brakeCues.Next()))
}

// prepareTravel and wake are hooks for a peer announcing a travel or
// waking its props. The speedo has nothing to prepare.
func (m *Manager) prepareTravel() {
	core.DebugPrintln("remote: peer prepares time travel")
}

func (m *Manager) wake() {
	core.DebugPrintln("remote: peer wakeup")
}

// State returns a copy of the shared state
func (m *Manager) State() SystemState {
	return m.state
}

// Settings returns the current user settings
func (m *Manager) Settings() Settings {
	return m.settings
}

// Speed returns the displayed speed in tenths
func (m *Manager) Speed() int {
	return m.engine.Speed()
}

// Phase returns the time travel phase
func (m *Manager) Phase() timetravel.Phase {
	return m.seq.Phase()
}

// Following reports whether the peer's P0 is being followed
func (m *Manager) Following() bool {
	return m.follow.Active()
}

// PendingCommands returns the number of queued command codes
func (m *Manager) PendingCommands() int {
	return m.queue.Len()
}

// Commands returns the command registry
func (m *Manager) Commands() *core.CommandRegistry {
	return m.commands
}

// noLink stands in when no peer is configured
type noLink struct{}

func (noLink) Poll()      {}
func (noLink) PollQuick() {}
func (noLink) PushStatus(protocol.LocalStatus) error {
	return protocol.ErrNotConnected
}
func (noLink) RequestTimeTravel(bool) error { return protocol.ErrNotConnected }
func (noLink) Unregister() error            { return protocol.ErrNotConnected }
func (noLink) Connected() bool              { return false }
func (noLink) Peer() protocol.PeerState {
	return protocol.PeerState{Speed: -1}
}
