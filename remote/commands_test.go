package remote

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"remotectl/core"
	"remotectl/remote/throttle"
	"remotectl/remote/timetravel"
)

func (r *rig) command(codes ...uint32) {
	r.src.codes = append(r.src.codes, codes...)
	for range codes {
		r.tick()
	}
}

func TestCommandSettings(t *testing.T) {
	testCases := []struct {
		name  string
		code  uint32
		check func(r *rig) bool
	}{
		{"volume", 305, func(r *rig) bool { return r.audio.volume == 5 && r.m.Settings().Volume == 5 }},
		{"volume max", 319, func(r *rig) bool { return r.m.Settings().Volume == 19 }},
		{"brightness", 403, func(r *rig) bool { return r.display.brightness == 3 && r.m.Settings().Brightness == 3 }},
		{"clicks off", 350, func(r *rig) bool { return !r.m.State().Clicks && !r.m.Settings().Clicks }},
		{"auto throttle", 62, func(r *rig) bool { return r.m.engine.Config().AutoThrottle }},
		{"coast", 63, func(r *rig) bool { return r.m.engine.Config().Coast }},
		{"movie mode toggle", 60, func(r *rig) bool { return r.m.engine.Config().Profile == throttle.Linear }},
		{"auto throttle on", 1002, func(r *rig) bool { return r.m.Settings().AutoThrottle }},
		{"coast on", 1004, func(r *rig) bool { return r.m.Settings().Coast }},
		{"linear", 1007, func(r *rig) bool { return !r.m.Settings().MovieMode }},
		{"peer speed", 1008, func(r *rig) bool { return r.m.State().ShowPeerSpeed }},
		{"power master", 96, func(r *rig) bool { return r.m.State().PowerMaster && r.link.lastPush().PowerMaster }},
		{"injected alias", core.InjectedFlag | 7305, func(r *rig) bool { return r.m.Settings().Volume == 5 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, nil)
			r.tick()
			r.command(tc.code)
			if !tc.check(r) {
				t.Errorf("Code %d had no effect", tc.code)
			}
			if r.m.PendingCommands() != 0 {
				t.Errorf("Expected queue drained, got %d", r.m.PendingCommands())
			}
		})
	}
}

func TestCommandModesSaved(t *testing.T) {
	r := newRig(t, nil)
	r.command(60)

	r.run(ModesSaveDelay - 100*time.Millisecond)
	if r.store.Saves != 0 {
		t.Fatalf("Expected no save yet, got %d", r.store.Saves)
	}
	r.run(200 * time.Millisecond)
	if r.store.Saves != 1 || r.store.Settings.MovieMode {
		t.Errorf("Expected linear profile saved, got %d saves %+v", r.store.Saves, r.store.Settings)
	}
}

func TestInjectedCodesRestricted(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()

	r.command(core.InjectedFlag|1002, core.InjectedFlag|123456, core.InjectedFlag|64738)
	if r.m.Settings().AutoThrottle {
		t.Error("Injected integration code must be ignored")
	}
	if r.store.Cleared || r.reboots != 0 {
		t.Error("Injected maintenance codes must be ignored")
	}
}

func TestCommandNeedsPower(t *testing.T) {
	r := newRig(t, nil)
	r.command(503)
	if len(r.audio.cues) != 0 {
		t.Errorf("Expected no cue while off, got %v", r.audio.cues)
	}

	r.powerOn()
	r.command(503)
	if r.audio.last() != core.KeyCue(3, false) {
		t.Errorf("Expected key 3, got %v", r.audio.last())
	}
	r.command(517)
	if r.audio.last() != core.KeyCue(7, true) {
		t.Errorf("Expected long key 7, got %v", r.audio.last())
	}
}

func TestCommandKeys(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()
	n := len(r.audio.cues)

	r.command(2, 5, 8)
	if len(r.audio.cues) != n {
		t.Errorf("Music keys must not play, got %v", r.audio.cues[n:])
	}
	r.command(9)
	if r.audio.last() != core.KeyCue(9, false) {
		t.Errorf("Expected key 9, got %v", r.audio.last())
	}
}

func TestCommandOnePerTick(t *testing.T) {
	r := newRig(t, nil)
	r.src.codes = []uint32{301, 302, 303}
	r.tick()
	if r.m.PendingCommands() != 2 || r.m.Settings().Volume != 1 {
		t.Errorf("Expected one command run, got %d pending volume %d", r.m.PendingCommands(), r.m.Settings().Volume)
	}
	r.tick()
	r.tick()
	if r.m.PendingCommands() != 0 || r.m.Settings().Volume != 3 {
		t.Errorf("Expected all commands run in order, got volume %d", r.m.Settings().Volume)
	}
}

func TestCommandsWaitForIdle(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()
	r.input.pos = 40
	r.tick()

	r.command(305)
	if r.m.PendingCommands() != 1 {
		t.Fatalf("Expected command held while the lever is moved, got %d pending", r.m.PendingCommands())
	}

	r.input.pos = 0
	r.tick()
	if r.m.PendingCommands() != 0 || r.m.Settings().Volume != 5 {
		t.Error("Expected command run once idle")
	}
}

func TestRemoteCommandEvent(t *testing.T) {
	r := newRig(t, nil)
	r.m.LinkEvents().RemoteCommand(404)
	r.tick()
	if r.display.brightness != 4 {
		t.Errorf("Expected brightness 4, got %d", r.display.brightness)
	}
}

func TestCommandShowIP(t *testing.T) {
	r := newRig(t, nil)
	r.m.localIP = func() netip.Addr { return netip.MustParseAddr("192.168.4.1") }

	r.command(CodeShowIP)
	got := strings.Join(r.display.texts, "|")
	if !strings.Contains(got, "IP|192.|168.|  4.|  1") {
		t.Errorf("Expected address spelled out, got %q", got)
	}
	if r.display.on {
		t.Error("Expected display off again while powered off")
	}
	if r.m.State().Busy {
		t.Error("Expected busy cleared")
	}
}

func TestCommandTimeTravel(t *testing.T) {
	r := newRig(t, nil)
	r.command(1010)
	if r.m.Phase() != timetravel.Idle {
		t.Fatal("Expected no time travel while off")
	}

	r.powerOn()
	r.command(1010)
	if r.m.Phase() != timetravel.P1 {
		t.Fatalf("Expected immediate P1, got %v", r.m.Phase())
	}
	if !r.audio.played(core.CueTravelStartNoLead) || !r.display.shown(timetravel.PeakText) {
		t.Error("Expected travel start cue and peak text")
	}
}

func TestCommandBrakeWarning(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()
	r.input.press(core.ButtonBrake, core.EdgePress)
	r.tick()

	r.command(CodeBrakeWarning)
	if r.audio.last() != core.CueBrakeWarn1 {
		t.Fatalf("Expected brake warning, got %v", r.audio.last())
	}

	// Releasing the brake cancels further warnings
	r.input.press(core.ButtonBrake, core.EdgeRelease)
	r.tick()
	r.command(CodeBrakeWarning)
	if r.audio.last() != core.CueBrakeOff {
		t.Errorf("Expected no warning after release, got %v", r.audio.last())
	}
}

func TestCommandBrakeWarningStale(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()
	r.input.press(core.ButtonBrake, core.EdgePress)
	r.tick()

	// Queued while the lever is moved, run after the window
	r.input.pos = 20
	r.tick()
	r.command(CodeBrakeWarning)
	r.run(brakeWarnWindow + 100*time.Millisecond)
	r.input.pos = 0
	r.tick()

	if r.audio.played(core.CueBrakeWarn1) {
		t.Error("Expected stale brake warning dropped")
	}
}

func TestCommandReboot(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()
	r.command(CodeReboot)

	if r.reboots != 1 || r.link.unregister != 1 {
		t.Errorf("Expected unregister and reboot, got %d %d", r.link.unregister, r.reboots)
	}
	if r.display.on {
		t.Error("Expected display off")
	}
}

func TestCommandClearNetwork(t *testing.T) {
	r := newRig(t, nil)
	r.command(CodeClearNetwork)
	if !r.store.Cleared {
		t.Error("Expected network configuration cleared")
	}
}

func TestCommandUpdateNotice(t *testing.T) {
	r := newRig(t, nil)
	r.command(CodeUpdateNotice)
	if r.m.State().UpdateAvail || r.store.Saves != 1 {
		t.Errorf("Expected update notice off and saved, got %+v", r.store.Settings)
	}
}

func TestCommandUnknown(t *testing.T) {
	r := newRig(t, nil)
	r.command(777, 0)
	if r.m.PendingCommands() != 0 {
		t.Error("Expected unknown code consumed")
	}
}

func TestCommandDictionary(t *testing.T) {
	r := newRig(t, nil)
	dict := r.m.Commands().GetDictionary()
	for _, name := range []string{"volume", "brightness", "integration", "reboot"} {
		if !strings.Contains(dict, name) {
			t.Errorf("Expected %s in dictionary", name)
		}
	}
}
