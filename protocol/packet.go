package protocol

import (
	"encoding/binary"
	"strings"
)

// Packet is one wire datagram
type Packet [PacketSize]byte

// Message is any decoded packet. Peer-originated messages are Response
// and the notification types; device-originated ones are Request,
// Trigger and Command.
type Message interface {
	encode(p *Packet)
}

// Head carries the protocol version of a peer-originated packet.
// A zero Version encodes as ProtocolVersion.
type Head struct {
	Version uint8
}

func (h Head) version() uint8 {
	return h.Version
}

func (h Head) flags(marker uint8) uint8 {
	v := h.Version & versionMask
	if v == 0 {
		v = ProtocolVersion
	}
	return v | marker
}

// Origin identifies the sending device in device-originated packets
type Origin struct {
	HostName   string
	DeviceType uint8
	RemoteID   uint32
}

func (o Origin) encode(p *Packet) {
	p[offFlags] = ProtocolVersion | CapMulticast | CapDataNotify
	n := copy(p[offHostName:offHostName+HostNameLen], o.HostName)
	if len(o.HostName) > HostNameLen && n == HostNameLen {
		p[offHostName+HostNameLen-1] = '.'
	}
	p[offDeviceType] = o.DeviceType
	binary.LittleEndian.PutUint32(p[offRemoteID:], o.RemoteID)
}

func decodeOrigin(b []byte) Origin {
	name := string(b[offHostName : offHostName+HostNameLen])
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Origin{
		HostName:   name,
		DeviceType: b[offDeviceType],
		RemoteID:   binary.LittleEndian.Uint32(b[offRemoteID:]),
	}
}

// Request is a poll sent to the peer
type Request struct {
	Origin
	ID       uint32 // Echoed by the matching response
	Mask     uint8  // Mask* bits; MaskDiscover adds HostHash
	HostHash uint32
}

func (r *Request) encode(p *Packet) {
	r.Origin.encode(p)
	p[offMask] = r.Mask
	binary.LittleEndian.PutUint32(p[offID:], r.ID)
	if r.Mask&MaskDiscover != 0 {
		binary.LittleEndian.PutUint32(p[offHostHash:], r.HostHash)
	}
}

// Trigger asks the peer to start a network-wide time travel
type Trigger struct {
	Origin
}

func (t *Trigger) encode(p *Packet) {
	t.Origin.encode(p)
	p[offMask] = MaskDiscover
}

// Command is an operation sent to the peer, such as the combined-state update
type Command struct {
	Origin
	Seq    uint32
	Op     uint8
	Param1 uint8
	Param2 uint8
}

func (c *Command) encode(p *Packet) {
	c.Origin.encode(p)
	binary.LittleEndian.PutUint32(p[offID:], c.Seq)
	p[offCommand] = c.Op
	p[offCmdParam1] = c.Param1
	p[offCmdParam2] = c.Param2
}

// PeerStatus is the status block carried by poll responses and data-stream notifications
type PeerStatus struct {
	Answered          uint8 // Mask* bits the peer answered
	Speed             int16 // Valid if Answered has MaskSpeed
	RemoteAllowed     bool  // Valid if Answered has MaskStatus
	Busy              bool
	SpeedViaMulticast bool // Valid if Answered has MaskCapabilities
	DataNotify        bool
}

func (s PeerStatus) encode(p *Packet) {
	binary.LittleEndian.PutUint16(p[offSpeed:], uint16(s.Speed))
	var st, caps uint8
	if s.RemoteAllowed {
		st |= StatusRemoteAllowed
	}
	if s.Busy {
		st |= StatusBusy
	}
	if s.SpeedViaMulticast {
		caps |= PeerCapSpeedMulticast
	}
	if s.DataNotify {
		caps |= PeerCapDataNotify
	}
	p[offStatus] = st
	p[offCaps] = caps
}

func decodePeerStatus(b []byte, answered uint8) PeerStatus {
	st, caps := b[offStatus], b[offCaps]
	return PeerStatus{
		Answered:          answered,
		Speed:             int16(binary.LittleEndian.Uint16(b[offSpeed:])),
		RemoteAllowed:     st&StatusRemoteAllowed != 0,
		Busy:              st&StatusBusy != 0,
		SpeedViaMulticast: caps&PeerCapSpeedMulticast != 0,
		DataNotify:        caps&PeerCapDataNotify != 0,
	}
}

// Response answers a Request
type Response struct {
	Head
	ID uint32
	PeerStatus
}

func (r *Response) encode(p *Packet) {
	p[offFlags] = r.flags(FlagResponse)
	p[offMask] = r.Answered
	binary.LittleEndian.PutUint32(p[offID:], r.ID)
	r.PeerStatus.encode(p)
}

// Event is a notification without payload: prepare, reentry, abort,
// alarm, wakeup, or a subtype this side does not know
type Event struct {
	Head
	Kind uint8
}

func (e *Event) encode(p *Packet) {
	p[offFlags] = e.flags(FlagNotification)
	p[offMask] = e.Kind
}

// TimeTravel requests a synchronized time travel
type TimeTravel struct {
	Head
	Lead uint16 // ms until the peak
	Peak uint16 // ms the peak lasts
}

func (t *TimeTravel) encode(p *Packet) {
	p[offFlags] = t.flags(FlagNotification)
	p[offMask] = NotifyTimeTravel
	binary.LittleEndian.PutUint16(p[6:], t.Lead)
	binary.LittleEndian.PutUint16(p[8:], t.Peak)
}

// SpeedUpdate is the peer's pushed speed
type SpeedUpdate struct {
	Head
	Seq     uint32
	Speed   uint16
	Source  uint16 // SpeedSourceP0 while the peer accelerates
	Stalled bool
}

func (s *SpeedUpdate) encode(p *Packet) {
	p[offFlags] = s.flags(FlagNotification)
	p[offMask] = NotifySpeed
	binary.LittleEndian.PutUint16(p[6:], s.Speed)
	binary.LittleEndian.PutUint16(p[8:], s.Source)
	if s.Stalled {
		binary.LittleEndian.PutUint16(p[10:], 1)
	}
	binary.LittleEndian.PutUint32(p[12:], s.Seq)
}

// LegacySpeed is the older speed push used by peers without multicast speed
type LegacySpeed struct {
	Head
	Seq   uint32
	Speed uint16
	InP0  bool
}

func (s *LegacySpeed) encode(p *Packet) {
	p[offFlags] = s.flags(FlagNotification)
	p[offMask] = NotifyRemoteSpeed
	binary.LittleEndian.PutUint16(p[6:], s.Speed)
	if s.InP0 {
		binary.LittleEndian.PutUint16(p[8:], 1)
	}
	binary.LittleEndian.PutUint32(p[12:], s.Seq)
}

// RemoteCommand carries a command code for the command queue
type RemoteCommand struct {
	Head
	Code uint32
}

func (r *RemoteCommand) encode(p *Packet) {
	p[offFlags] = r.flags(FlagNotification)
	p[offMask] = NotifyRemoteCmd
	binary.LittleEndian.PutUint32(p[6:], r.Code)
}

// Info reports peer-side flags outside the poll cycle
type Info struct {
	Head
	NoRemote bool
	Busy     bool
}

func (i *Info) encode(p *Packet) {
	p[offFlags] = i.flags(FlagNotification)
	p[offMask] = NotifyInfo
	if i.NoRemote {
		binary.LittleEndian.PutUint16(p[6:], InfoNoRemote)
	}
	if i.Busy {
		binary.LittleEndian.PutUint16(p[8:], InfoBusy)
	}
}

// DataStream replaces polling once both sides support it
type DataStream struct {
	Head
	Seq     uint32
	Session uint32
	PeerStatus
}

func (d *DataStream) encode(p *Packet) {
	p[offFlags] = d.flags(FlagNotification)
	p[offMask] = NotifyData | (d.Answered &^ MaskDiscover)
	binary.LittleEndian.PutUint32(p[offID:], d.Seq)
	d.PeerStatus.encode(p)
	// Session shares bytes with the command fields, not the status block
	binary.LittleEndian.PutUint32(p[offSession:], d.Session)
}

// Encode serialises a message and writes the checksum last
func Encode(m Message) Packet {
	var p Packet
	copy(p[:], magic[:])
	m.encode(&p)
	p[offChecksum] = Checksum(p[:])
	return p
}

// Decode validates and parses a datagram.
// Any error means the datagram must be dropped.
func Decode(buf []byte) (Message, error) {
	if err := validPacket(buf); err != nil {
		return nil, err
	}
	flags := buf[offFlags]
	head := Head{Version: flags & versionMask}

	switch flags & (FlagResponse | FlagNotification) {
	case FlagResponse:
		return &Response{
			Head:       head,
			ID:         binary.LittleEndian.Uint32(buf[offID:]),
			PeerStatus: decodePeerStatus(buf, buf[offMask]),
		}, nil
	case FlagNotification:
		return decodeNotification(head, buf), nil
	}
	return decodeDeviceMessage(buf), nil
}

func decodeNotification(head Head, b []byte) Message {
	sub := b[offMask]
	u16 := func(off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }

	if sub&NotifyData != 0 {
		return &DataStream{
			Head:       head,
			Seq:        u32(offID),
			Session:    u32(offSession),
			PeerStatus: decodePeerStatus(b, sub&^NotifyData),
		}
	}

	switch sub {
	case NotifyTimeTravel:
		return &TimeTravel{Head: head, Lead: u16(6), Peak: u16(8)}
	case NotifySpeed:
		return &SpeedUpdate{Head: head, Speed: u16(6), Source: u16(8), Stalled: u16(10) != 0, Seq: u32(12)}
	case NotifyRemoteSpeed:
		return &LegacySpeed{Head: head, Speed: u16(6), InP0: u16(8) != 0, Seq: u32(12)}
	case NotifyRemoteCmd:
		return &RemoteCommand{Head: head, Code: u32(6)}
	case NotifyInfo:
		return &Info{Head: head, NoRemote: u16(6)&InfoNoRemote != 0, Busy: u16(8)&InfoBusy != 0}
	}
	return &Event{Head: head, Kind: sub}
}

func decodeDeviceMessage(b []byte) Message {
	origin := decodeOrigin(b)
	mask := b[offMask]

	switch mask {
	case 0:
		return &Command{
			Origin: origin,
			Seq:    binary.LittleEndian.Uint32(b[offID:]),
			Op:     b[offCommand],
			Param1: b[offCmdParam1],
			Param2: b[offCmdParam2],
		}
	case MaskDiscover:
		return &Trigger{Origin: origin}
	}

	req := &Request{
		Origin: origin,
		ID:     binary.LittleEndian.Uint32(b[offID:]),
		Mask:   mask,
	}
	if mask&MaskDiscover != 0 {
		req.HostHash = binary.LittleEndian.Uint32(b[offHostHash:])
	}
	return req
}

// HostHash computes the discovery hash of a peer hostname
func HostHash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		h = 37*h + uint32(c)
	}
	return h
}
