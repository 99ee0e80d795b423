package remote

import (
	"errors"
	"fmt"
	"time"

	"remotectl/core"
	"remotectl/protocol"
)

func (m *Manager) handleInput(ev core.InputEvent) {
	switch ev.Button {
	case core.ButtonPower:
		m.powerSeen = true
		if ev.Edge == core.EdgePress {
			m.powerOn()
		} else if ev.Edge == core.EdgeRelease {
			m.powerOff()
		}
	case core.ButtonBrake:
		m.brake(ev.Edge == core.EdgePress)
	case core.ButtonA:
		m.buttonA(ev.Edge)
	case core.ButtonB:
		m.buttonB(ev.Edge)
	case core.ButtonCalib:
		m.calibButton(ev.Edge)
	}
}

func (m *Manager) powerOn() {
	if m.state.Powered {
		return
	}
	core.DebugPrintln("remote: fake power on")
	m.state.Powered = true
	m.state.Calibrating = false
	m.state.offDisplayAt = time.Time{}

	m.engine.Reset()
	m.state.disarm()

	m.display.SetBrightness(m.settings.Brightness)
	m.startupRamp()

	m.display.Blink(false)
	m.display.On()
	m.showSpeed()
	m.state.forceDisplay = false

	m.follow.Stop()
	m.seq.Cancel()

	m.push()
	m.audio.Play(core.CuePowerOn)
}

// startupRamp sweeps the speedo from 0 to 11 and back
func (m *Manager) startupRamp() {
	m.state.Busy = true
	m.display.SetSpeed(0)
	m.display.Show()
	m.display.On()
	m.Delay(200 * time.Millisecond)

	for i := 10; i <= 110; i += 10 {
		m.display.SetSpeed(i)
		m.display.Show()
		m.Delay(80 * time.Millisecond)
	}

	m.display.SetSpeed(0)
	m.display.Show()
	m.state.Busy = false
}

func (m *Manager) powerOff() {
	if !m.state.Powered {
		return
	}
	core.DebugPrintln("remote: fake power off")
	m.state.Powered = false

	m.engine.SetSpeed(0)
	m.state.disarm()

	m.audio.Stop()
	m.state.cancelBrakeWarn = true

	m.seq.Cancel()

	m.state.offDisplayAt = time.Time{}
	m.state.peerShown = -2
	m.display.Off()

	m.saver.flush()
	m.push()
	m.audio.Play(core.CuePowerOff)
}

func (m *Manager) brake(on bool) {
	if !m.state.Powered {
		// Picked up silently; it is pushed with the next power on
		m.state.Brake = on
		return
	}
	if m.state.Brake == on {
		return
	}
	m.state.Brake = on
	m.state.cancelBrakeWarn = !on
	m.state.brakeWarned = false
	m.push()

	if !m.seq.Running() {
		if on {
			m.audio.Play(core.CueBrakeOn)
		} else {
			m.audio.Play(core.CueBrakeOff)
		}
	}
}

// buttonA is "O.O": arms time travel or plays a key while powered,
// raises volume or brightness while off
func (m *Manager) buttonA(edge core.Edge) {
	if m.state.Powered {
		if m.seq.Running() || m.follow.Active() {
			return
		}
		switch edge {
		case core.EdgePress:
			if m.cfg.TravelOnA {
				m.armTravel()
			} else {
				m.audio.Play(core.KeyCue(3, false))
			}
		case core.EdgeLongPress:
			m.audio.Play(core.KeyCue(3, true))
		}
		return
	}
	if m.state.Calibrating {
		return
	}

	switch edge {
	case core.EdgePress:
		m.adjustVolume(1)
	case core.EdgeLongPress:
		if m.cfg.ButtonsToggleMaster {
			m.setPowerMaster(true)
			m.audio.Play(core.CuePowerMasterOn)
		} else {
			m.adjustBrightness(1)
		}
	}
}

// buttonB is "RESET": plays a key while powered, lowers volume or
// brightness while off
func (m *Manager) buttonB(edge core.Edge) {
	if m.state.Powered {
		if m.seq.Running() || m.follow.Active() {
			return
		}
		switch edge {
		case core.EdgePress:
			m.audio.Play(core.KeyCue(6, false))
		case core.EdgeLongPress:
			m.audio.Play(core.KeyCue(6, true))
		}
		return
	}
	if m.state.Calibrating {
		return
	}

	switch edge {
	case core.EdgePress:
		m.adjustVolume(-1)
	case core.EdgeLongPress:
		if m.cfg.ButtonsToggleMaster {
			m.setPowerMaster(false)
			m.audio.Play(core.CuePowerMasterOff)
		} else {
			m.adjustBrightness(-1)
		}
	}
}

// armTravel toggles tt-on-throttle. Without a connected peer the travel
// runs standalone; a busy peer refuses.
func (m *Manager) armTravel() {
	m.state.brakeWarned = false

	if m.state.Armed == ArmReady {
		m.state.disarm()
		m.audio.Play(core.CueBad)
		return
	}
	if m.state.Armed != ArmOff {
		return
	}

	err := m.link.RequestTimeTravel(true)
	switch {
	case errors.Is(err, protocol.ErrNotConnected):
		m.state.Armed = ArmReady
		m.state.armedStandalone = true
	case m.link.Peer().Busy:
		m.audio.Play(core.CueBad)
		return
	default:
		m.state.Armed = ArmReady
	}
	m.audio.Play(core.CueReady)
}

func (m *Manager) adjustVolume(d int) {
	now := m.clock.Now()
	if !m.state.volumeShownAt.IsZero() && now.Sub(m.state.volumeShownAt) < adjustWindow {
		v := int(m.settings.Volume) + d
		if v >= 0 && v <= 19 {
			m.setVolume(uint8(v))
		}
	}
	m.state.volumeShownAt = now
	m.showOff(fmt.Sprintf("%3d", m.settings.Volume))
	m.audio.Play(core.CueVolume)
}

func (m *Manager) adjustBrightness(d int) {
	now := m.clock.Now()
	if !m.state.brightnessShownAt.IsZero() && now.Sub(m.state.brightnessShownAt) < adjustWindow {
		b := int(m.display.Brightness()) + d
		if b < 0 {
			b = 0
		} else if b > 15 {
			b = 15
		}
		m.setBrightness(uint8(b))
	}
	m.state.brightnessShownAt = now
	m.showOff(fmt.Sprintf("%3d", m.display.Brightness()))
}

// calibButton calibrates the lever while off and resets the speed or
// shows the IP address while powered
func (m *Manager) calibButton(edge core.Edge) {
	if m.state.Powered {
		if m.seq.Running() || m.follow.Active() {
			return
		}
		switch edge {
		case core.EdgePress:
			if m.state.ThrottlePos == 0 {
				m.engine.SetSpeed(0)
				m.engine.StopCounting()
				m.state.disarm()
				m.push()
				m.state.forceDisplay = true
			}
		case core.EdgeLongPress:
			m.saver.flush()
			m.showIP()
			m.state.forceDisplay = true
			m.state.disarm()
		}
		return
	}

	switch edge {
	case core.EdgePress:
		if m.state.Calibrating {
			m.calibrateStep()
			return
		}
		// Register the neutral position
		m.display.SetText("CAL")
		m.display.Show()
		m.display.On()
		m.Delay(200 * time.Millisecond)
		m.state.offDisplayAt = m.clock.Now()
		if m.calib != nil {
			m.calib.ZeroPosition()
		}

	case core.EdgeLongPress:
		if m.state.Calibrating {
			m.state.Calibrating = false
			m.display.Clear()
			m.display.Show()
			m.display.Off()
			m.state.peerShown = -2
			return
		}
		m.state.Calibrating = true
		m.state.calibUp = true
		m.state.offDisplayAt = time.Time{}
		m.display.SetText("UP")
		m.display.Show()
		m.display.On()
	}
}

// calibrateStep records full forward, then full reverse
func (m *Manager) calibrateStep() {
	if m.state.calibUp {
		if m.calib != nil && m.calib.SetMaxUp() {
			m.display.SetText("DN")
			m.display.Show()
			m.state.calibUp = false
			return
		}
	} else if m.calib != nil && m.calib.SetMaxDown() {
		m.state.Calibrating = false
		m.display.Clear()
		m.display.Show()
		m.display.Off()
		m.state.peerShown = -2
		return
	}

	m.state.Calibrating = false
	m.display.SetText("ERR")
	m.display.Show()
	m.state.offDisplayAt = m.clock.Now()
}

// showIP spells the local address one octet per second
func (m *Manager) showIP() {
	m.state.Busy = true
	defer func() { m.state.Busy = false }()

	m.display.Blink(false)
	m.display.SetText("IP")
	m.display.Show()
	m.Delay(500 * time.Millisecond)

	a := m.localIP()
	var octets [4]byte
	if a.Is4() {
		octets = a.As4()
	}
	for i, o := range octets {
		text := fmt.Sprintf("%3d", o)
		if i < 3 {
			text += "."
		}
		m.display.SetText(text)
		m.display.Show()
		m.Delay(time.Second)
	}

	m.display.Clear()
	m.display.Show()
	m.Delay(500 * time.Millisecond)
}
