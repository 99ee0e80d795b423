// Package peer simulates the master device on the other end of the
// link: it answers polls, takes the remote's combined state and plays
// time travels with the matching notifications
package peer

import (
	"errors"
	"net/netip"
	"time"

	"github.com/sasha-s/go-deadlock"

	"remotectl/core"
	"remotectl/protocol"
)

var (
	ErrNoRemote = errors.New("no remote has registered")
	ErrBusy     = errors.New("time travel in progress")
)

// Default travel timing when the remote triggers one
const (
	DefaultLead = 5000 * time.Millisecond
	DefaultPeak = 6000 * time.Millisecond

	speedStep = 100 * time.Millisecond // P0 speed report spacing
	topSpeed  = 88
)

// Config configures the simulated peer
type Config struct {
	HostName          string // Discovery requests must carry this name's hash
	Port              int    // Unicast port, protocol.DefaultPort if zero
	Group             netip.Addr
	SpeedViaMulticast bool // Push speed to the multicast group instead of unicast
}

// Phase is the simulated travel phase
type Phase uint8

const (
	Idle Phase = iota
	Accelerating
	Peak
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Accelerating:
		return "accelerating"
	case Peak:
		return "peak"
	}
	return "unknown"
}

// RemoteStatus is what the peer knows about the registered remote
type RemoteStatus struct {
	Addr     netip.AddrPort
	HostName string
	RemoteID uint32
	LastSeen time.Time

	Power         bool
	Brake         bool
	PowerMaster   bool
	ShowPeerSpeed bool
	Speed         uint8
}

// Peer is the simulated master device. It is safe for concurrent use.
type Peer struct {
	mu deadlock.Mutex

	cfg   Config
	tr    protocol.Transport
	clock core.Clock
	hash  uint32
	group netip.AddrPort
	gate  *protocol.Gate

	speed         int16
	busy          bool
	remoteAllowed bool
	speedSeq      uint32

	remote     RemoteStatus
	haveRemote bool
	triggers   int

	phase      Phase
	phaseStart time.Time
	lead, peak time.Duration
	fromSpeed  int16
	lastReport time.Time
}

// New creates an idle peer at standstill that allows remote control
func New(cfg Config, tr protocol.Transport, clock core.Clock) *Peer {
	if cfg.Port == 0 {
		cfg.Port = protocol.DefaultPort
	}
	group := cfg.Group
	if !group.IsValid() {
		group = netip.MustParseAddr(protocol.MulticastGroup)
	}
	return &Peer{
		cfg:           cfg,
		tr:            tr,
		clock:         clock,
		hash:          protocol.HostHash(cfg.HostName),
		group:         netip.AddrPortFrom(group, uint16(cfg.Port+protocol.MulticastPortDelta)),
		gate:          protocol.NewGate(),
		remoteAllowed: true,
	}
}

// Poll handles pending datagrams and advances a running travel
func (p *Peer) Poll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	for {
		d, ok := p.tr.Recv()
		if !ok {
			break
		}
		p.handle(d, now)
	}
	for {
		d, ok := p.tr.RecvMulticast()
		if !ok {
			break
		}
		p.handle(d, now)
	}
	p.advance(now)
}

func (p *Peer) handle(d protocol.Datagram, now time.Time) {
	msg, err := protocol.Decode(d.Data)
	if err != nil {
		return
	}

	switch m := msg.(type) {
	case *protocol.Request:
		if m.Mask&protocol.MaskDiscover != 0 && m.HostHash != p.hash {
			return
		}
		p.register(m.Origin, d.From, now)
		p.reply(m, d.From)

	case *protocol.Command:
		if !p.gate.Accept(m.Op, m.Seq) {
			return
		}
		p.register(m.Origin, d.From, now)
		switch m.Op {
		case protocol.OpCombined:
			p.remote.Power = m.Param1&protocol.CombinedPower != 0
			p.remote.Brake = m.Param1&protocol.CombinedBrake != 0
			p.remote.PowerMaster = m.Param1&protocol.CombinedPowerMaster != 0
			p.remote.ShowPeerSpeed = m.Param1&protocol.CombinedShowPeer != 0
			p.remote.Speed = m.Param2
		case protocol.OpBye:
			core.Debugf("peer: %s signed off", p.remote.HostName)
			p.haveRemote = false
			p.gate.Reset()
		}

	case *protocol.Trigger:
		p.triggers++
		if !p.busy && p.remoteAllowed {
			p.startTravel(DefaultLead, DefaultPeak, now)
		}
	}
}

func (p *Peer) register(o protocol.Origin, from netip.AddrPort, now time.Time) {
	if !p.haveRemote || p.remote.Addr != from {
		core.Debugf("peer: remote %q at %s", o.HostName, from)
	}
	p.remote.Addr = from
	p.remote.HostName = o.HostName
	p.remote.RemoteID = o.RemoteID
	p.remote.LastSeen = now
	p.haveRemote = true
}

func (p *Peer) reply(r *protocol.Request, to netip.AddrPort) {
	resp := &protocol.Response{
		ID: r.ID,
		PeerStatus: protocol.PeerStatus{
			Answered:          r.Mask & (protocol.MaskDiscover | protocol.DefaultRequestMask),
			Speed:             p.speed,
			RemoteAllowed:     p.remoteAllowed,
			Busy:              p.busy,
			SpeedViaMulticast: p.cfg.SpeedViaMulticast,
		},
	}
	p.send(to, resp)
}

func (p *Peer) send(to netip.AddrPort, m protocol.Message) error {
	pkt := protocol.Encode(m)
	return p.tr.Send(to, pkt[:])
}

// notify sends a notification to the registered remote
func (p *Peer) notify(m protocol.Message) error {
	if !p.haveRemote {
		return ErrNoRemote
	}
	return p.send(p.remote.Addr, m)
}

func (p *Peer) reportSpeed(p0 bool) error {
	p.speedSeq++
	if p.speedSeq == 0 {
		p.speedSeq = 1
	}
	upd := &protocol.SpeedUpdate{Seq: p.speedSeq, Speed: uint16(max(p.speed, 0))}
	if p0 {
		upd.Source = protocol.SpeedSourceP0
	}
	if p.cfg.SpeedViaMulticast {
		return p.send(p.group, upd)
	}
	return p.notify(upd)
}

func (p *Peer) startTravel(lead, peak time.Duration, now time.Time) {
	core.Debugf("peer: time travel, lead %v peak %v", lead, peak)
	p.notify(&protocol.TimeTravel{
		Lead: uint16(lead / time.Millisecond),
		Peak: uint16(peak / time.Millisecond),
	})
	p.busy = true
	p.phase = Accelerating
	p.phaseStart = now
	p.lead = lead
	p.peak = peak
	p.fromSpeed = max(p.speed, 0)
	p.lastReport = time.Time{}
}

// advance runs the simulated travel: the speed climbs to 88 over the
// lead time, holds through the peak and drops to zero on reentry
func (p *Peer) advance(now time.Time) {
	elapsed := now.Sub(p.phaseStart)

	switch p.phase {
	case Accelerating:
		if elapsed >= p.lead {
			p.speed = topSpeed
			p.reportSpeed(false)
			p.phase = Peak
			p.phaseStart = now
			return
		}
		if !p.lastReport.IsZero() && now.Sub(p.lastReport) < speedStep {
			return
		}
		p.lastReport = now
		span := int64(topSpeed - p.fromSpeed)
		p.speed = p.fromSpeed + int16(span*int64(elapsed)/int64(p.lead))
		p.reportSpeed(true)

	case Peak:
		if elapsed >= p.peak {
			p.notify(&protocol.Event{Kind: protocol.NotifyReentry})
			p.endTravel()
		}
	}
}

func (p *Peer) endTravel() {
	p.phase = Idle
	p.busy = false
	p.speed = 0
	p.reportSpeed(false)
}

// TimeTravel starts a travel with the given timing
func (p *Peer) TimeTravel(lead, peak time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.busy {
		return ErrBusy
	}
	if !p.haveRemote {
		return ErrNoRemote
	}
	p.startTravel(lead, peak, p.clock.Now())
	return nil
}

// Abort cuts a running travel short
func (p *Peer) Abort() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == Idle {
		return nil
	}
	err := p.notify(&protocol.Event{Kind: protocol.NotifyAbort})
	p.endTravel()
	return err
}

// Event sends a payload-free notification: prepare, wakeup, reentry or alarm
func (p *Peer) Event(kind uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notify(&protocol.Event{Kind: kind})
}

// SendCommand queues a command code on the remote
func (p *Peer) SendCommand(code uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notify(&protocol.RemoteCommand{Code: code})
}

// SetSpeed changes the peer's own speed and reports it
func (p *Peer) SetSpeed(speed int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase != Idle {
		return ErrBusy
	}
	p.speed = speed
	return p.reportSpeed(false)
}

// SetBusy changes the busy flag and reports it right away
func (p *Peer) SetBusy(busy bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = busy
	return p.notify(&protocol.Info{NoRemote: !p.remoteAllowed, Busy: p.busy})
}

// SetRemoteAllowed changes whether the remote may control the peer
func (p *Peer) SetRemoteAllowed(allowed bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteAllowed = allowed
	return p.notify(&protocol.Info{NoRemote: !p.remoteAllowed, Busy: p.busy})
}

// Remote returns the registered remote
func (p *Peer) Remote() (RemoteStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote, p.haveRemote
}

// Speed returns the peer's speed
func (p *Peer) Speed() int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// Phase returns the travel phase
func (p *Peer) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Triggers returns how many travel triggers the remote sent
func (p *Peer) Triggers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers
}
