package protocol

import (
	"net/netip"
	"time"

	"remotectl/core"
)

// Events receives what the link learns from peer notifications.
// Calls happen synchronously inside Poll.
type Events interface {
	PeerP0(speed uint16, stalled bool) // Peer is accelerating in its P0
	PeerP0End()                        // Peer left P0, revoked remote control or went silent
	Prepare()
	Wakeup()
	TimeTravel(lead, peak uint16)
	Reentry()
	Abort()
	Alarm()
	RemoteCommand(code uint32)
}

// NopEvents ignores every event. Embed it to handle only some.
type NopEvents struct{}

func (NopEvents) PeerP0(uint16, bool) {}
func (NopEvents) PeerP0End() {}
func (NopEvents) Prepare() {}
func (NopEvents) Wakeup() {}
func (NopEvents) TimeTravel(uint16, uint16) {}
func (NopEvents) Reentry() {}
func (NopEvents) Abort() {}
func (NopEvents) Alarm() {}
func (NopEvents) RemoteCommand(uint32) {}

// LinkConfig configures the link
type LinkConfig struct {
	Peer     string // IPv4 literal or hostname; empty disables the link
	HostName string // Our hostname as shown to the peer
	RemoteID uint32
	Port     int        // Unicast port, DefaultPort if zero
	Group    netip.Addr // Multicast group, MulticastGroup if invalid
}

// LinkState is a coarse view of the link for diagnostics
type LinkState uint8

const (
	LinkDisabled    LinkState = iota // No peer configured
	LinkDiscovering                  // Peer address unknown
	LinkPolling                      // Polling a known peer
	LinkStreaming                    // Peer pushes data-stream notifications
)

func (s LinkState) String() string {
	switch s {
	case LinkDisabled:
		return "disabled"
	case LinkDiscovering:
		return "discovering"
	case LinkPolling:
		return "polling"
	case LinkStreaming:
		return "streaming"
	}
	return "unknown"
}

// PeerState is what the link knows about the peer
type PeerState struct {
	Busy          bool
	RemoteAllowed bool
	Speed         int16 // -1 if unknown
}

// LocalStatus is the combined state pushed to the peer
type LocalStatus struct {
	Power         bool
	Brake         bool
	PowerMaster   bool
	ShowPeerSpeed bool
	Speed         uint8 // Whole units
}

func (s LocalStatus) param1() uint8 {
	var p uint8
	if s.Power {
		p |= CombinedPower
	}
	if s.Brake {
		p |= CombinedBrake
	}
	if s.PowerMaster {
		p |= CombinedPowerMaster
	}
	if s.ShowPeerSpeed {
		p |= CombinedShowPeer
	}
	return p
}

// Link discovers the peer, polls it, takes in its notifications and
// pushes our combined state. It is driven by Poll from the control loop
// and never blocks.
type Link struct {
	tr     Transport
	ev     Events
	clock  core.Clock
	gate   *Gate
	origin Origin

	disabled bool
	port     int
	group    netip.AddrPort

	// Peer address
	peer     netip.AddrPort
	havePeer bool
	byName   bool
	hostHash uint32

	// Poll cycle
	epoch       time.Time
	mask        uint8
	outstanding bool
	reqID       uint32
	sentAt      time.Time
	lastPoll    time.Time
	pollNow     bool
	wasUp       bool
	failures    int
	latency     time.Duration

	// Data stream
	peerDataNotify bool
	streaming      bool
	lastData       time.Time

	// Liveness
	lastPacket   time.Time
	bootTimedOut bool
	contacted    bool // At least one exchange since the last reset

	state PeerState

	// Outbound commands
	cmdSeq       [MaxOp + 1]uint32
	lastCmd      time.Time
	status       LocalStatus
	haveStatus   bool
	pushDeferred bool
}

// NewLink creates a link. An empty or malformed peer leaves it disabled.
func NewLink(cfg LinkConfig, tr Transport, ev Events, clock core.Clock) *Link {
	l := &Link{
		tr:      tr,
		ev:      ev,
		clock:   clock,
		gate:    NewGate(),
		origin:  Origin{HostName: cfg.HostName, DeviceType: DeviceTypeRemote, RemoteID: cfg.RemoteID},
		port:    cfg.Port,
		epoch:   clock.Now(),
		mask:    DefaultRequestMask,
		pollNow: true,
		state:   PeerState{Speed: -1},
	}
	if l.port == 0 {
		l.port = DefaultPort
	}
	group := cfg.Group
	if !group.IsValid() {
		group = netip.MustParseAddr(MulticastGroup)
	}
	l.group = netip.AddrPortFrom(group, uint16(l.port+DiscoveryPortDelta))
	for i := range l.cmdSeq {
		l.cmdSeq[i] = 1
	}

	switch {
	case cfg.Peer == "":
		l.disabled = true
	case isIPv4(cfg.Peer):
		l.peer = netip.AddrPortFrom(netip.MustParseAddr(cfg.Peer), uint16(l.port))
		l.havePeer = true
	case validHostName(cfg.Peer):
		l.byName = true
		l.hostHash = HostHash(cfg.Peer)
	default:
		l.disabled = true
	}
	if l.disabled {
		core.DebugPrintln("link: no valid peer configured, network disabled")
	}
	return l
}

// Poll runs one link iteration: intake, timeouts, polling, liveness
// and deferred pushes
func (l *Link) Poll() {
	if l.disabled {
		return
	}
	now := l.clock.Now()

	l.drainMulticast(now)
	for {
		d, ok := l.tr.Recv()
		if !ok {
			break
		}
		l.handleDatagram(d, now, false)
	}

	if l.streaming && now.Sub(l.lastData) > DataStreamTimeout {
		l.streaming = false
		l.gate.ResetClass(NotifyData)
		if l.byName {
			l.havePeer = false
		}
		// Give polling a fresh liveness window
		l.lastPacket = now
		l.pollNow = true
		core.RecordEvent(core.EvtDataTimeout, now, 0, 0)
		core.DebugPrintln("link: data stream timed out, returning to polling")
	}
	if !l.streaming {
		if l.outstanding && now.Sub(l.sentAt) > ResponseTimeout {
			l.outstanding = false
			l.latency = 0
			if l.havePeer && l.failures < MaxFastRetries {
				l.pollNow = true
			}
			l.failures++
			core.RecordEvent(core.EvtTimeout, now, l.reqID, uint32(l.failures))
		}
		if !l.outstanding {
			if !l.wasUp && l.tr.Up() {
				l.pollNow = true
			}
			if l.pollNow || now.Sub(l.lastPoll) > l.pollInterval() {
				l.sendRequest(now)
			}
		}
	}

	l.checkLiveness(now)

	if l.haveStatus && (l.pushDeferred || now.Sub(l.lastCmd) > HeartbeatInterval) && l.canCommand() == nil {
		l.PushStatus(l.status)
	}
}

// PollQuick only drains the multicast socket
func (l *Link) PollQuick() {
	if l.disabled {
		return
	}
	l.drainMulticast(l.clock.Now())
}

func (l *Link) drainMulticast(now time.Time) {
	for i := 0; i < 100; i++ {
		d, ok := l.tr.RecvMulticast()
		if !ok {
			return
		}
		l.handleDatagram(d, now, true)
	}
}

// pollInterval is shortened until the first exchange succeeds
func (l *Link) pollInterval() time.Duration {
	if !l.contacted {
		return FastPollInterval
	}
	return PollInterval
}

func (l *Link) sendRequest(now time.Time) {
	l.pollNow = false
	l.lastPoll = now

	if !l.tr.Up() {
		l.wasUp = false
		return
	}
	l.wasUp = true

	l.reqID = uint32(now.Sub(l.epoch) / time.Millisecond)
	req := &Request{Origin: l.origin, ID: l.reqID, Mask: l.mask}
	if !l.havePeer {
		req.Mask |= MaskDiscover
		req.HostHash = l.hostHash
	}
	if err := l.send(req); err != nil {
		core.Debugf("link: request send failed: %v", err)
	}
	l.outstanding = true
	l.sentAt = now
	core.RecordEvent(core.EvtRequest, now, l.reqID, uint32(req.Mask))
}

func (l *Link) send(m Message) error {
	pkt := Encode(m)
	dst := l.group
	if l.havePeer {
		dst = l.peer
	}
	return l.tr.Send(dst, pkt[:])
}

func (l *Link) handleDatagram(d Datagram, now time.Time, multicast bool) {
	if multicast && l.havePeer && d.From.Addr().Unmap() != l.peer.Addr() {
		return
	}

	msg, err := Decode(d.Data)
	if err != nil {
		// Foreign traffic on a shared port is expected
		return
	}

	switch m := msg.(type) {
	case *Request, *Trigger, *Command:
		// Another device's packet
		return
	case *Response:
		if multicast {
			return
		}
		l.handleResponse(m, d.From, now)
	default:
		if v, ok := msg.(interface{ version() uint8 }); ok && v.version() != ProtocolVersion {
			return
		}
		l.lastPacket = now
		l.handleNotification(msg, now)
	}
}

func (l *Link) handleResponse(r *Response, from netip.AddrPort, now time.Time) {
	// Mismatches are ignored without counting a failure
	if !l.outstanding || r.ID != l.reqID || r.Version != ProtocolVersion {
		return
	}

	l.latency = now.Sub(l.sentAt) / 2
	l.failures = 0
	l.outstanding = false

	if r.Answered&MaskDiscover != 0 && !l.havePeer {
		l.peer = netip.AddrPortFrom(from.Addr().Unmap(), uint16(l.port))
		l.havePeer = true
		core.RecordEvent(core.EvtDiscovered, now, addrBits(l.peer.Addr()), 0)
		core.Debugf("link: discovered peer at %s", l.peer.Addr())
	}

	l.lastPacket = now
	l.contacted = true
	core.RecordEvent(core.EvtResponse, now, r.ID, uint32(l.latency/time.Millisecond))
	l.foldStatus(r.PeerStatus, true)
}

func (l *Link) foldStatus(s PeerStatus, checkCaps bool) {
	if checkCaps && s.Answered&MaskCapabilities != 0 {
		l.mask &^= MaskCapabilities
		if s.SpeedViaMulticast {
			l.mask &^= MaskSpeed
		}
		if s.DataNotify {
			l.peerDataNotify = true
		}
	}

	if s.Answered&MaskStatus != 0 {
		l.state.RemoteAllowed = s.RemoteAllowed
		l.state.Busy = s.Busy
	} else {
		l.state.RemoteAllowed = false
	}
	if !l.state.RemoteAllowed {
		l.ev.PeerP0End()
	}

	if s.Answered&MaskSpeed != 0 {
		l.state.Speed = s.Speed
		if l.state.Speed > MaxPeerSpeed {
			l.state.Speed = MaxPeerSpeed
		}
	}
}

func (l *Link) handleNotification(msg Message, now time.Time) {
	switch n := msg.(type) {
	case *DataStream:
		if !l.peerDataNotify {
			return
		}
		l.streaming = true
		l.outstanding = false
		l.lastData = now
		if !l.gate.AcceptStream(n.Session, n.Seq) {
			core.RecordEvent(core.EvtStale, now, NotifyData, n.Seq)
			return
		}
		l.foldStatus(n.PeerStatus, false)

	case *SpeedUpdate:
		if !l.gate.Accept(NotifySpeed, n.Seq) {
			core.RecordEvent(core.EvtStale, now, NotifySpeed, n.Seq)
			return
		}
		speed := clampSpeed(n.Speed)
		l.state.Speed = int16(speed)
		if n.Source == SpeedSourceP0 && l.state.RemoteAllowed {
			l.ev.PeerP0(speed, n.Stalled)
		} else {
			l.ev.PeerP0End()
		}

	case *LegacySpeed:
		if !l.gate.Accept(NotifyRemoteSpeed, n.Seq) {
			core.RecordEvent(core.EvtStale, now, NotifyRemoteSpeed, n.Seq)
			return
		}
		if n.InP0 && l.state.RemoteAllowed {
			l.ev.PeerP0(clampSpeed(n.Speed), false)
		} else {
			l.ev.PeerP0End()
		}

	case *TimeTravel:
		if l.state.RemoteAllowed {
			l.ev.TimeTravel(n.Lead, n.Peak)
		}

	case *RemoteCommand:
		l.ev.RemoteCommand(n.Code)

	case *Info:
		l.state.RemoteAllowed = !n.NoRemote
		l.state.Busy = n.Busy
		if !l.state.RemoteAllowed {
			l.ev.PeerP0End()
		}

	case *Event:
		switch n.Kind {
		case NotifyPrepare:
			if l.state.RemoteAllowed {
				l.ev.Prepare()
			}
		case NotifyWakeup:
			if l.state.RemoteAllowed {
				l.ev.Wakeup()
			}
		case NotifyReentry:
			l.ev.Reentry()
		case NotifyAbort:
			l.ev.Abort()
		case NotifyAlarm:
			l.ev.Alarm()
		default:
			return
		}
	}
	core.RecordEvent(core.EvtNotify, now, notifyKind(msg), 0)
}

func (l *Link) checkLiveness(now time.Time) {
	silent := !l.lastPacket.IsZero() && now.Sub(l.lastPacket) > LivenessTimeout
	neverHeard := l.lastPacket.IsZero() && !l.bootTimedOut && now.Sub(l.epoch) > BootLivenessTimeout
	if !silent && !neverHeard {
		return
	}

	l.lastPacket = time.Time{}
	l.bootTimedOut = true
	l.contacted = false
	l.state = PeerState{Speed: -1}
	l.ev.PeerP0End()

	if l.byName {
		l.havePeer = false
		l.mask = DefaultRequestMask
		l.peerDataNotify = false
		l.streaming = false
		l.gate.Reset()
	}
	core.RecordEvent(core.EvtPeerLost, now, 0, 0)
	core.DebugPrintln("link: peer silent, falling back to standalone")
}

func (l *Link) canCommand() error {
	if !l.Connected() {
		return ErrNotConnected
	}
	if !l.state.RemoteAllowed {
		return ErrNotAllowed
	}
	return nil
}

func (l *Link) sendCommand(op, p1, p2 uint8) error {
	if l.disabled {
		return ErrNotConnected
	}
	if err := l.canCommand(); err != nil {
		return err
	}

	cmd := &Command{Origin: l.origin, Seq: l.cmdSeq[op], Op: op, Param1: p1, Param2: p2}
	l.cmdSeq[op]++
	if l.cmdSeq[op] == 0 {
		l.cmdSeq[op]++
	}
	if err := l.send(cmd); err != nil {
		return err
	}
	l.lastCmd = l.clock.Now()
	return nil
}

// PushStatus sends the combined state. If it cannot go out now it is
// retried on the next Poll that can send.
func (l *Link) PushStatus(st LocalStatus) error {
	l.status = st
	l.haveStatus = true
	if err := l.sendCommand(OpCombined, st.param1(), st.Speed); err != nil {
		l.pushDeferred = true
		return err
	}
	l.pushDeferred = false
	core.RecordEvent(core.EvtPush, l.lastCmd, uint32(st.param1()), uint32(st.Speed))
	return nil
}

// Unregister tells the peer we are going away
func (l *Link) Unregister() error {
	return l.sendCommand(OpBye, 0, 0)
}

// RequestTimeTravel asks the peer for a network-wide time travel. With
// probe set it only reports whether one could be requested.
func (l *Link) RequestTimeTravel(probe bool) error {
	if l.disabled || !l.Connected() {
		return ErrNotConnected
	}
	if probe {
		return nil
	}
	if l.state.Busy {
		return ErrPeerBusy
	}
	return l.send(&Trigger{Origin: l.origin})
}

// Connected reports whether the peer address is known and has answered
func (l *Link) Connected() bool {
	return !l.disabled && l.havePeer && l.tr.Up() && !l.lastPacket.IsZero()
}

// Peer returns a snapshot of the peer state
func (l *Link) Peer() PeerState {
	return l.state
}

// PeerBusy reports whether the peer says it is busy
func (l *Link) PeerBusy() bool {
	return l.state.Busy
}

// State returns the coarse link state
func (l *Link) State() LinkState {
	switch {
	case l.disabled:
		return LinkDisabled
	case !l.havePeer:
		return LinkDiscovering
	case l.streaming:
		return LinkStreaming
	}
	return LinkPolling
}

// PeerAddr returns the peer address if known
func (l *Link) PeerAddr() (netip.AddrPort, bool) {
	return l.peer, l.havePeer
}

// Latency returns half the last round trip, zero after a timeout
func (l *Link) Latency() time.Duration {
	return l.latency
}

// Failures returns the number of consecutive timeouts
func (l *Link) Failures() int {
	return l.failures
}

// RequestMask returns the mask the next poll will carry, without the discovery bit
func (l *Link) RequestMask() uint8 {
	return l.mask
}

func clampSpeed(s uint16) uint16 {
	if s > MaxPeerSpeed {
		return MaxPeerSpeed
	}
	return s
}

func notifyKind(m Message) uint32 {
	switch n := m.(type) {
	case *DataStream:
		return NotifyData
	case *SpeedUpdate:
		return NotifySpeed
	case *LegacySpeed:
		return NotifyRemoteSpeed
	case *TimeTravel:
		return NotifyTimeTravel
	case *RemoteCommand:
		return NotifyRemoteCmd
	case *Info:
		return NotifyInfo
	case *Event:
		return uint32(n.Kind)
	}
	return 0
}

func addrBits(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func isIPv4(s string) bool {
	a, err := netip.ParseAddr(s)
	return err == nil && a.Is4()
}

func validHostName(s string) bool {
	if len(s) > 253 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
		default:
			return false
		}
	}
	return true
}
