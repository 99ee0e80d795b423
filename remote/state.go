// Package remote is the control loop of the remote: it ties the link,
// the throttle engine and the time travel sequencer to the display,
// audio and input collaborators
package remote

import "time"

// ArmState is the tt-on-throttle arming state
type ArmState uint8

const (
	ArmOff   ArmState = iota
	ArmReady          // Next forward lever movement triggers a time travel
	ArmFired          // Network travel requested, waiting for the peer
)

func (a ArmState) String() string {
	switch a {
	case ArmOff:
		return "off"
	case ArmReady:
		return "ready"
	case ArmFired:
		return "fired"
	}
	return "unknown"
}

// SystemState is the state shared between the input handlers, the
// command handlers and the sequence logic. It is only touched from the
// control loop.
type SystemState struct {
	Powered       bool // Fake power
	Brake         bool
	PowerMaster   bool
	ShowPeerSpeed bool // Show the peer's speed while powered off
	Clicks        bool // Acceleration clicks
	UpdateAvail   bool // Show "update available" at boot

	Calibrating bool
	calibUp     bool // Waiting for full forward, else full reverse

	// Busy is set while a blocking display sequence runs. Peer requests
	// that arrive meanwhile are refused.
	Busy bool

	ThrottlePos int // Effective lever position of the last tick

	Armed           ArmState
	armedStandalone bool
	armedAt         time.Time
	brakeWarned     bool

	brakeWarnAt     time.Time // Last queued brake warning request
	cancelBrakeWarn bool

	alarm   bool
	prepare bool
	wakeup  bool

	forceDisplay bool
	offDisplayAt time.Time // Display turns off 1s after this while powered off
	peerShown    int       // Peer speed last shown while off, -2 forces a refresh

	volumeShownAt     time.Time
	brightnessShownAt time.Time
}

func (s *SystemState) disarm() {
	s.Armed = ArmOff
	s.armedStandalone = false
}
