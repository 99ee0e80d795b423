package remote

import (
	"errors"
	"time"

	"remotectl/core"
)

// Command codes with a fixed meaning
const (
	CodeMovieMode     = 60
	CodeShowPeerSpeed = 61
	CodeAutoThrottle  = 62
	CodeCoast         = 63
	CodeShowIP        = 90
	CodePowerMaster   = 96
	CodeBrakeWarning  = 1900
	CodeUpdateNotice  = 53281
	CodeReboot        = 64738
	CodeClearNetwork  = 123456
)

// registerCommands fills the registry with the remote's command codes
func (m *Manager) registerCommands() error {
	type entry struct {
		name     string
		min, max uint32
		flags    uint8
		handler  core.CommandHandler
	}
	entries := []entry{
		{"key", 1, 9, 0, m.cmdKey},
		{"movie_mode", CodeMovieMode, CodeMovieMode, 0, func(uint32) error {
			m.setMovieMode(!m.settings.MovieMode)
			return nil
		}},
		{"show_peer_speed", CodeShowPeerSpeed, CodeShowPeerSpeed, 0, func(uint32) error {
			m.setShowPeerSpeed(!m.settings.ShowPeerSpeed)
			return nil
		}},
		{"auto_throttle", CodeAutoThrottle, CodeAutoThrottle, 0, func(uint32) error {
			m.setAutoThrottle(!m.settings.AutoThrottle)
			return nil
		}},
		{"coast", CodeCoast, CodeCoast, 0, func(uint32) error {
			m.setCoast(!m.settings.Coast)
			return nil
		}},
		{"show_ip", CodeShowIP, CodeShowIP, 0, m.cmdShowIP},
		{"power_master", CodePowerMaster, CodePowerMaster, 0, func(uint32) error {
			m.setPowerMaster(!m.state.PowerMaster)
			return nil
		}},
		{"volume", 300, 319, 0, func(code uint32) error {
			m.setVolume(uint8(code - 300))
			return nil
		}},
		{"clicks", 350, 351, 0, func(code uint32) error {
			m.setClicks(code == 351)
			return nil
		}},
		{"brightness", 400, 415, 0, func(code uint32) error {
			m.setBrightness(uint8(code - 400))
			return nil
		}},
		{"key_remote", 501, 509, core.CmdNeedsPower, func(code uint32) error {
			m.audio.Play(core.KeyCue(int(code-500), false))
			return nil
		}},
		{"key_remote_long", 511, 519, core.CmdNeedsPower, func(code uint32) error {
			m.audio.Play(core.KeyCue(int(code-510), true))
			return nil
		}},
		{"integration", 1001, 1010, core.CmdNotInjected, m.cmdIntegration},
		{"brake_warning", CodeBrakeWarning, CodeBrakeWarning, core.CmdNotInjected, m.cmdBrakeWarning},
		{"update_notice", CodeUpdateNotice, CodeUpdateNotice, 0, func(uint32) error {
			m.state.UpdateAvail = !m.state.UpdateAvail
			m.settings.UpdateAvail = m.state.UpdateAvail
			m.writeSettings()
			return nil
		}},
		{"reboot", CodeReboot, CodeReboot, core.CmdNotInjected, m.cmdReboot},
		{"clear_network", CodeClearNetwork, CodeClearNetwork, core.CmdNotInjected, func(uint32) error {
			m.saver.flush()
			return m.store.ClearNetwork()
		}},
	}

	for _, e := range entries {
		if err := m.commands.Register(e.name, e.min, e.max, e.flags, e.handler); err != nil {
			return err
		}
	}
	return nil
}

// executeCommand runs at most one queued command
func (m *Manager) executeCommand() {
	raw, ok := m.queue.Pop()
	if !ok {
		return
	}
	core.RecordEvent(core.EvtCommand, m.clock.Now(), raw, 0)

	err := m.commands.Dispatch(raw, m.state.Powered)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNeedsPower), errors.Is(err, core.ErrNotInjectable):
		core.Debugf("remote: command %d ignored: %v", raw&^core.InjectedFlag, err)
	default:
		core.Debugf("remote: command: %v", err)
	}
}

// cmdKey plays a key cue. Keys 2, 5 and 8 control music, which the
// remote does not have.
func (m *Manager) cmdKey(code uint32) error {
	switch code {
	case 2, 5, 8:
		return nil
	}
	m.audio.Play(core.KeyCue(int(code), false))
	return nil
}

func (m *Manager) cmdShowIP(uint32) error {
	m.saver.flush()
	m.display.On()
	m.showIP()
	if m.state.Powered {
		m.state.forceDisplay = true
	} else {
		m.display.Off()
		m.state.peerShown = -2
	}
	return nil
}

// cmdIntegration handles codes from home automation integrations
func (m *Manager) cmdIntegration(code uint32) error {
	switch code {
	case 1001:
		if m.state.Powered {
			m.audio.Stop()
		}
	case 1002, 1003:
		m.setAutoThrottle(code == 1002)
	case 1004, 1005:
		m.setCoast(code == 1004)
	case 1006, 1007:
		m.setMovieMode(code == 1006)
	case 1008, 1009:
		m.setShowPeerSpeed(code == 1008)
	case 1010:
		if m.state.Powered && !m.seq.Running() && !m.follow.Active() && !m.state.Busy {
			m.state.disarm()
			m.timeTravel(0)
		}
	}
	return nil
}

// cmdBrakeWarning plays a brake warning if the request is recent and
// the brake was not released in between
func (m *Manager) cmdBrakeWarning(uint32) error {
	if m.state.cancelBrakeWarn || m.clock.Now().Sub(m.state.brakeWarnAt) > brakeWarnWindow {
		return nil
	}
	m.playBrakeWarning()
	return nil
}

func (m *Manager) cmdReboot(uint32) error {
	core.DebugPrintln("remote: reboot requested")
	if err := m.link.Unregister(); err != nil {
		core.Debugf("remote: unregister: %v", err)
	}
	m.audio.Stop()
	m.display.Off()
	m.saver.flush()
	m.Delay(rebootDelay)
	m.reboot()
	return nil
}

func (m *Manager) setVolume(v uint8) {
	if v > 19 {
		v = 19
	}
	m.settings.Volume = v
	m.audio.SetVolume(v)
	m.saver.touch(saveVolume, m.clock.Now())
}

func (m *Manager) setBrightness(b uint8) {
	m.display.SetBrightness(b)
	m.settings.Brightness = m.display.Brightness()
	m.saver.touch(saveBrightness, m.clock.Now())
}

func (m *Manager) setClicks(on bool) {
	m.state.Clicks = on
	m.settings.Clicks = on
	m.saver.touch(saveModes, m.clock.Now())
}

func (m *Manager) setPowerMaster(on bool) {
	m.state.PowerMaster = on
	m.settings.PowerMaster = on
	m.saver.touch(saveModes, m.clock.Now())
	m.push()
}

func (m *Manager) setShowPeerSpeed(on bool) {
	m.state.ShowPeerSpeed = on
	m.settings.ShowPeerSpeed = on
	m.state.peerShown = -2
	m.saver.touch(saveModes, m.clock.Now())
	m.push()
}

func (m *Manager) setMovieMode(on bool) {
	m.settings.MovieMode = on
	m.engine.SetConfig(m.engineConfig())
	m.saver.touch(saveModes, m.clock.Now())
}

func (m *Manager) setAutoThrottle(on bool) {
	m.settings.AutoThrottle = on
	m.engine.SetConfig(m.engineConfig())
	m.saver.touch(saveModes, m.clock.Now())
}

func (m *Manager) setCoast(on bool) {
	m.settings.Coast = on
	m.engine.SetConfig(m.engineConfig())
	m.saver.touch(saveModes, m.clock.Now())
}

// writeSettings persists the settings now
func (m *Manager) writeSettings() {
	start := m.clock.Now()
	if err := m.store.Save(m.settings); err != nil {
		core.Debugf("remote: %v", err)
		return
	}
	core.Debugf("remote: settings saved in %v", m.clock.Now().Sub(start).Round(time.Millisecond))
}
