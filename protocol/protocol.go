// Package protocol implements the fixed-size UDP packet protocol spoken
// between the remote and its peer, plus the link state machine that drives it
package protocol

import "time"

// Version represents the remotectl firmware version
const Version = "0.1.0"

// Wire constants
const (
	PacketSize      = 48 // Every datagram is exactly this long
	ProtocolVersion = 1  // Low nibble of the flags byte

	DefaultPort        = 1338             // Unicast request/response and notifications
	DiscoveryPortDelta = 1                // Discovery and legacy channel is Port+1
	MulticastPortDelta = 2                // Broadcast notifications arrive on Port+2
	MulticastGroup     = "224.0.0.224"    // Group for discovery and notifications
	HostNameLen        = 13               // Hostname bytes carried in every packet
	DeviceTypeRemote   = 6                // Our device type as reported to the peer
	MaxPeerSpeed       = 88               // Peer speeds above this are clamped
)

var magic = [4]byte{'B', 'T', 'T', 'F'}

// Byte offsets inside a packet
const (
	offFlags      = 4
	offMask       = 5
	offID         = 6
	offHostName   = 10
	offDeviceType = 23
	offSpeed      = 18
	offCommand    = 25
	offCmdParam1  = 26
	offCmdParam2  = 27
	offStatus     = 26
	offSession    = 27
	offCaps       = 31
	offHostHash   = 31
	offRemoteID   = 35
	offChecksum   = PacketSize - 1
)

// Flags byte bits
const (
	FlagResponse     = 0x80 // Set by the peer on poll responses
	FlagNotification = 0x40 // Set by the peer on notifications

	CapMulticast  = 0x80 // We can receive notifications via multicast
	CapDataNotify = 0x40 // We understand data-stream notifications

	versionMask = 0x0f
)

// Request mask bits (byte 5 of a request, echoed in a response)
const (
	MaskDiscover     = 0x80
	MaskCapabilities = 0x40
	MaskStatus       = 0x10
	MaskSpeed        = 0x02

	// DefaultRequestMask asks for capabilities, status and speed
	DefaultRequestMask = MaskCapabilities | MaskStatus | MaskSpeed
)

// Status bits in a response (byte 26)
const (
	StatusRemoteAllowed = 0x04
	StatusBusy          = 0x10
)

// Peer capability bits in a response (byte 31)
const (
	PeerCapSpeedMulticast = 0x01
	PeerCapDataNotify     = 0x10
)

// Notification subtypes
const (
	NotifyPrepare     = 1
	NotifyTimeTravel  = 2
	NotifyReentry     = 3
	NotifyAbort       = 4
	NotifyAlarm       = 5
	NotifyWakeup      = 6
	NotifyRemoteCmd   = 13
	NotifyRemoteSpeed = 14
	NotifySpeed       = 15
	NotifyInfo        = 16

	// NotifyData marks a data-stream notification; the low bits carry
	// the same answered-mask bits as a poll response
	NotifyData = 0x80
)

// Speed sources in a speed notification
const (
	SpeedSourceP0 = 4
)

// Info flags
const (
	InfoNoRemote = 0x0001 // flags1: peer refuses remote control
	InfoBusy     = 0x0001 // flags2: peer is busy
)

// Command operations sent to the peer
const (
	OpPing     = 1
	OpBye      = 2
	OpCombined = 3

	MaxOp = OpCombined
)

// Combined-state bits (command parameter 1)
const (
	CombinedPower       = 0x01
	CombinedBrake       = 0x02
	CombinedPowerMaster = 0x08
	CombinedShowPeer    = 0x10
)

// Link timing
const (
	PollInterval        = 1300 * time.Millisecond
	FastPollInterval    = 500 * time.Millisecond
	ResponseTimeout     = 700 * time.Millisecond
	MaxFastRetries      = 10
	DataStreamTimeout   = 18600 * time.Millisecond
	LivenessTimeout     = 30 * time.Second
	BootLivenessTimeout = 60 * time.Second
	HeartbeatInterval   = 10 * time.Second
)
