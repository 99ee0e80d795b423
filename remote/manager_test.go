package remote

import (
	"testing"
	"time"

	"remotectl/core"
	"remotectl/protocol"
	"remotectl/remote/config"
	"remotectl/remote/timetravel"
)

func TestBootPushesStatus(t *testing.T) {
	r := newRig(t, nil)
	r.tick()

	if len(r.link.pushes) != 1 {
		t.Fatalf("Expected one boot status push, got %d", len(r.link.pushes))
	}
	if r.link.pushes[0].Power {
		t.Error("Expected power off in boot push")
	}

	r.tick()
	if len(r.link.pushes) != 1 {
		t.Errorf("Expected boot push only once, got %d", len(r.link.pushes))
	}
}

func TestBootPowerSwitchSkipsBootPush(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()

	if len(r.link.pushes) != 1 || !r.link.pushes[0].Power {
		t.Errorf("Expected only the power on push, got %+v", r.link.pushes)
	}
}

func TestPowerOnOff(t *testing.T) {
	r := newRig(t, nil)
	r.tick()
	start := r.clock.Now()

	r.powerOn()
	st := r.m.State()
	if !st.Powered {
		t.Fatal("Expected powered state")
	}
	if r.clock.Now().Sub(start) < time.Second {
		t.Errorf("Expected startup ramp to take a second, took %v", r.clock.Now().Sub(start))
	}
	if !r.display.on || r.display.speed != 0 {
		t.Errorf("Expected display on at 0.0, got on=%v speed=%d", r.display.on, r.display.speed)
	}
	if r.audio.last() != core.CuePowerOn {
		t.Errorf("Expected %v, got %v", core.CuePowerOn, r.audio.last())
	}
	if !r.link.lastPush().Power {
		t.Error("Expected power on pushed")
	}

	// Repeated edges are ignored
	r.powerOn()
	if n := len(r.link.pushes); n != 2 {
		t.Errorf("Expected 2 pushes, got %d", n)
	}

	r.powerOff()
	if r.m.State().Powered {
		t.Fatal("Expected power off")
	}
	if r.display.on {
		t.Error("Expected display off")
	}
	if r.audio.last() != core.CuePowerOff || r.audio.stops == 0 {
		t.Errorf("Expected audio stopped and %v, got %v", core.CuePowerOff, r.audio.last())
	}
	if r.link.lastPush().Power {
		t.Error("Expected power off pushed")
	}
}

func TestBrake(t *testing.T) {
	r := newRig(t, nil)
	r.tick()

	// Silent while off
	r.input.press(core.ButtonBrake, core.EdgePress)
	r.tick()
	if !r.m.State().Brake {
		t.Error("Expected brake state while off")
	}
	if len(r.audio.cues) != 0 || len(r.link.pushes) != 1 {
		t.Errorf("Expected no cue and no push while off, got %v %d", r.audio.cues, len(r.link.pushes))
	}

	r.powerOn()
	if !r.link.lastPush().Brake {
		t.Error("Expected brake in power on push")
	}

	r.input.press(core.ButtonBrake, core.EdgeRelease)
	r.tick()
	if r.audio.last() != core.CueBrakeOff || r.link.lastPush().Brake {
		t.Errorf("Expected brake off cue and push, got %v", r.audio.last())
	}

	r.input.press(core.ButtonBrake, core.EdgePress)
	r.tick()
	if r.audio.last() != core.CueBrakeOn || !r.link.lastPush().Brake {
		t.Errorf("Expected brake on cue and push, got %v", r.audio.last())
	}
}

func TestVolumeButtons(t *testing.T) {
	cfg := config.Default()
	cfg.Volume = 10
	r := newRig(t, cfg)
	r.tick()

	// First press only shows the value
	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	if r.display.lastText() != " 10" || r.m.Settings().Volume != 10 {
		t.Errorf("Expected volume 10 shown, got %q %d", r.display.lastText(), r.m.Settings().Volume)
	}
	if r.audio.last() != core.CueVolume {
		t.Errorf("Expected %v, got %v", core.CueVolume, r.audio.last())
	}

	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	if r.m.Settings().Volume != 12 || r.audio.volume != 12 {
		t.Errorf("Expected volume 12, got %d", r.m.Settings().Volume)
	}

	r.input.press(core.ButtonB, core.EdgePress)
	r.tick()
	if r.display.lastText() != " 11" || r.audio.volume != 11 {
		t.Errorf("Expected volume 11, got %q", r.display.lastText())
	}
	if !r.display.on {
		t.Error("Expected display on")
	}

	r.run(offDisplayHold + 10*time.Millisecond)
	if r.display.on {
		t.Error("Expected display off after hold")
	}
	if r.store.Saves != 0 {
		t.Fatalf("Expected deferred save, got %d saves", r.store.Saves)
	}

	r.run(VolumeSaveDelay)
	if r.store.Saves != 1 || r.store.Settings.Volume != 11 {
		t.Errorf("Expected volume 11 saved once, got %d saves volume %d", r.store.Saves, r.store.Settings.Volume)
	}
}

func TestVolumeLimits(t *testing.T) {
	cfg := config.Default()
	cfg.Volume = 19
	r := newRig(t, cfg)

	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	if r.m.Settings().Volume != 19 {
		t.Errorf("Expected volume capped at 19, got %d", r.m.Settings().Volume)
	}
}

func TestBrightnessButtons(t *testing.T) {
	r := newRig(t, nil)

	r.input.press(core.ButtonB, core.EdgeLongPress)
	r.tick()
	if r.display.lastText() != " 15" {
		t.Errorf("Expected brightness 15 shown, got %q", r.display.lastText())
	}

	r.input.press(core.ButtonB, core.EdgeLongPress)
	r.tick()
	if r.display.brightness != 14 || r.m.Settings().Brightness != 14 {
		t.Errorf("Expected brightness 14, got %d", r.display.brightness)
	}

	// The value times out after the adjust window
	r.run(adjustWindow)
	r.input.press(core.ButtonA, core.EdgeLongPress)
	r.tick()
	if r.display.brightness != 14 {
		t.Errorf("Expected first press after timeout to only show, got %d", r.display.brightness)
	}
}

func TestButtonsTogglePowerMaster(t *testing.T) {
	cfg := config.Default()
	cfg.ButtonsToggleMaster = true
	r := newRig(t, cfg)
	r.tick()

	r.input.press(core.ButtonA, core.EdgeLongPress)
	r.tick()
	if !r.m.State().PowerMaster || !r.link.lastPush().PowerMaster {
		t.Error("Expected power master on and pushed")
	}
	if r.audio.last() != core.CuePowerMasterOn {
		t.Errorf("Expected %v, got %v", core.CuePowerMasterOn, r.audio.last())
	}

	r.input.press(core.ButtonB, core.EdgeLongPress)
	r.tick()
	if r.m.State().PowerMaster || r.audio.last() != core.CuePowerMasterOff {
		t.Error("Expected power master off")
	}
}

func TestKeyButtonsWhilePowered(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()

	testCases := []struct {
		button core.Button
		edge   core.Edge
		cue    core.Cue
	}{
		{core.ButtonA, core.EdgePress, core.KeyCue(3, false)},
		{core.ButtonA, core.EdgeLongPress, core.KeyCue(3, true)},
		{core.ButtonB, core.EdgePress, core.KeyCue(6, false)},
		{core.ButtonB, core.EdgeLongPress, core.KeyCue(6, true)},
	}
	for _, tc := range testCases {
		r.input.press(tc.button, tc.edge)
		r.tick()
		if r.audio.last() != tc.cue {
			t.Errorf("%v %v: expected %v, got %v", tc.button, tc.edge, tc.cue, r.audio.last())
		}
	}
}

func travelConfig() *config.Config {
	cfg := config.Default()
	cfg.TravelOnA = true
	cfg.Profile = "linear"
	return cfg
}

func TestArmedStandaloneTravel(t *testing.T) {
	r := newRig(t, travelConfig())
	r.powerOn()

	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	if r.m.State().Armed != ArmReady || r.audio.last() != core.CueReady {
		t.Fatalf("Expected armed with ready cue, got %v %v", r.m.State().Armed, r.audio.last())
	}

	r.input.pos = 100
	r.tick()
	if r.m.Phase() != timetravel.P0 {
		t.Fatalf("Expected count-up P0, got %v", r.m.Phase())
	}
	if r.m.State().Armed != ArmOff {
		t.Error("Expected disarm on trigger")
	}

	for i := 0; i < 20000 && r.m.Phase() == timetravel.P0; i++ {
		r.tick()
	}
	if r.m.Phase() != timetravel.P1 {
		t.Fatalf("Expected P1 after count-up, got %v", r.m.Phase())
	}
	if !r.audio.played(core.CueTravelStart) || !r.display.shown(timetravel.PeakText) {
		t.Error("Expected travel start cue and peak text")
	}

	for i := 0; i < 20000 && r.m.Phase() != timetravel.Idle; i++ {
		r.tick()
	}
	if r.m.Phase() != timetravel.Idle {
		t.Fatalf("Expected sequence to end, got %v", r.m.Phase())
	}
	if !r.audio.played(core.CueTimeTravel) || !r.audio.played(core.CueReentry1) {
		t.Errorf("Expected time travel and reentry cues, got %v", r.audio.cues)
	}
	if r.m.Speed() != 0 {
		t.Errorf("Expected speed reset, got %d", r.m.Speed())
	}
}

func TestArmToggle(t *testing.T) {
	r := newRig(t, travelConfig())
	r.powerOn()

	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	if r.m.State().Armed != ArmOff || r.audio.last() != core.CueBad {
		t.Errorf("Expected second press to disarm, got %v %v", r.m.State().Armed, r.audio.last())
	}
}

func TestArmedBrakeWarning(t *testing.T) {
	r := newRig(t, travelConfig())
	r.powerOn()
	r.input.press(core.ButtonBrake, core.EdgePress)
	r.tick()
	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()

	r.input.pos = 50
	r.tick()
	r.tick()

	warnings := 0
	for _, c := range r.audio.cues {
		if c >= core.CueBrakeWarn1 && c <= core.CueBrakeWarn4 {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("Expected one brake warning, got %d", warnings)
	}
	if r.m.State().Armed != ArmReady || r.m.Phase() != timetravel.Idle {
		t.Error("Expected travel held back by the brake")
	}
}

func TestArmedNetworkTimeout(t *testing.T) {
	r := newRig(t, travelConfig())
	r.link.connected = true
	r.powerOn()

	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	if r.m.State().Armed != ArmReady || len(r.link.requests) != 1 || !r.link.requests[0] {
		t.Fatalf("Expected probe request and ready, got %v %v", r.m.State().Armed, r.link.requests)
	}

	r.input.pos = 30
	r.tick()
	if r.m.State().Armed != ArmFired || len(r.link.requests) != 2 || r.link.requests[1] {
		t.Fatalf("Expected travel request, got %v %v", r.m.State().Armed, r.link.requests)
	}

	r.input.pos = 0
	r.run(armTimeout + 10*time.Millisecond)
	if r.m.State().Armed != ArmOff || r.audio.last() != core.CueBad {
		t.Errorf("Expected timeout disarm, got %v %v", r.m.State().Armed, r.audio.last())
	}
}

func TestArmPeerBusy(t *testing.T) {
	r := newRig(t, travelConfig())
	r.link.connected = true
	r.link.peer.Busy = true
	r.powerOn()

	r.input.press(core.ButtonA, core.EdgePress)
	r.tick()
	if r.m.State().Armed != ArmOff || r.audio.last() != core.CueBad {
		t.Errorf("Expected refusal, got %v %v", r.m.State().Armed, r.audio.last())
	}
}

func TestExternalTravel(t *testing.T) {
	r := newRig(t, nil)
	r.link.connected = true
	r.powerOn()
	ev := r.m.LinkEvents()

	ev.TimeTravel(1000, 5000)
	r.tick()
	if r.m.Phase() != timetravel.P0 {
		t.Fatalf("Expected P0, got %v", r.m.Phase())
	}

	r.run(time.Second + 10*time.Millisecond)
	if r.m.Phase() != timetravel.P1 || !r.display.shown(timetravel.PeakText) {
		t.Fatalf("Expected P1 with peak text, got %v", r.m.Phase())
	}

	// A second request while running is dropped
	ev.TimeTravel(1000, 5000)

	ev.Reentry()
	r.tick()
	if r.m.Phase() != timetravel.P2 || !r.display.shown(timetravel.HalfwayText) {
		t.Fatalf("Expected P2 after reentry, got %v", r.m.Phase())
	}

	r.run(timetravel.AlarmDelay + 20*time.Millisecond)
	if r.m.Phase() != timetravel.Idle || !r.audio.played(core.CueReentry1) {
		t.Errorf("Expected sequence end with reentry cue, got %v %v", r.m.Phase(), r.audio.cues)
	}

	r.tick()
	if r.m.Phase() != timetravel.Idle {
		t.Error("Expected no second sequence")
	}
}

func TestExternalTravelIgnoredWhileOff(t *testing.T) {
	r := newRig(t, nil)
	r.m.LinkEvents().TimeTravel(1000, 5000)
	r.tick()
	if r.m.Phase() != timetravel.Idle {
		t.Errorf("Expected no sequence while off, got %v", r.m.Phase())
	}
}

func TestFollowPeer(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()
	ev := r.m.LinkEvents()

	ev.PeerP0(40, false)
	r.tick()
	if !r.m.Following() {
		t.Fatal("Expected follow mode")
	}
	if r.display.speed != 400 || r.m.Speed() != 400 {
		t.Errorf("Expected 40.0, got display %d engine %d", r.display.speed, r.m.Speed())
	}

	ev.PeerP0(41, false)
	r.tick()
	if r.display.speed != 410 {
		t.Errorf("Expected 41.0, got %d", r.display.speed)
	}

	ev.PeerP0End()
	r.tick()
	if r.m.Following() {
		t.Error("Expected follow mode to end")
	}
}

func TestFollowStopsWhilePeerBusy(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()
	ev := r.m.LinkEvents()

	ev.PeerP0(40, false)
	r.tick()
	if !r.m.Following() {
		t.Fatal("Expected follow mode")
	}

	r.link.peer.Busy = true
	ev.PeerP0(50, false)
	r.tick()
	if r.m.Following() {
		t.Error("Expected follow mode to end while the peer is busy")
	}
	if r.display.speed == 500 {
		t.Error("Busy peer speed must not be rendered")
	}
}

func TestFollowRefusedWhileOff(t *testing.T) {
	r := newRig(t, nil)
	r.m.LinkEvents().PeerP0(40, false)
	r.tick()
	if r.m.Following() {
		t.Error("Expected no follow mode while off")
	}
}

func TestPeerSpeedWhileOff(t *testing.T) {
	cfg := config.Default()
	cfg.ShowPeerSpeed = true
	r := newRig(t, cfg)
	r.link.peer = protocol.PeerState{Speed: 42}

	r.tick()
	if !r.display.on || r.display.speed != 420 {
		t.Errorf("Expected peer speed 42.0, got on=%v speed=%d", r.display.on, r.display.speed)
	}
}

func TestAlarm(t *testing.T) {
	cfg := config.Default()
	cfg.PlayAlarm = true
	r := newRig(t, cfg)

	r.m.LinkEvents().Alarm()
	r.tick()
	if r.audio.last() != core.CueAlarm {
		t.Errorf("Expected %v, got %v", core.CueAlarm, r.audio.last())
	}
}

func TestCalibration(t *testing.T) {
	r := newRig(t, nil)

	r.input.press(core.ButtonCalib, core.EdgePress)
	r.tick()
	if !r.input.zeroed || !r.display.shown("CAL") {
		t.Error("Expected neutral position registered")
	}

	r.input.press(core.ButtonCalib, core.EdgeLongPress)
	r.tick()
	if !r.m.State().Calibrating || r.display.lastText() != "UP" {
		t.Fatalf("Expected calibration mode, got %q", r.display.lastText())
	}

	r.input.press(core.ButtonCalib, core.EdgePress)
	r.tick()
	if r.display.lastText() != "DN" {
		t.Errorf("Expected DN, got %q", r.display.lastText())
	}

	r.input.press(core.ButtonCalib, core.EdgePress)
	r.tick()
	if r.m.State().Calibrating || r.display.on {
		t.Error("Expected calibration done with display off")
	}
}

func TestCalibrationError(t *testing.T) {
	r := newRig(t, nil)
	r.input.upOK = false

	r.input.press(core.ButtonCalib, core.EdgeLongPress)
	r.tick()
	r.input.press(core.ButtonCalib, core.EdgePress)
	r.tick()
	if r.m.State().Calibrating || r.display.lastText() != "ERR" {
		t.Errorf("Expected ERR, got %q", r.display.lastText())
	}
}

func TestCalibButtonResetsSpeed(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()

	r.m.engine.SetSpeed(300)
	n := len(r.link.pushes)
	r.input.press(core.ButtonCalib, core.EdgePress)
	r.tick()
	if r.m.Speed() != 0 || r.display.speed != 0 {
		t.Errorf("Expected speed reset, got %d", r.m.Speed())
	}
	if len(r.link.pushes) != n+1 {
		t.Error("Expected status push")
	}
}

func TestSettingsFlushedOnPowerOff(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()

	r.src.codes = []uint32{305}
	r.tick()
	r.powerOff()
	if r.store.Saves != 1 || r.store.Settings.Volume != 5 {
		t.Errorf("Expected settings flushed, got %d saves", r.store.Saves)
	}
}

func TestSaveWaitsForIdle(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn()

	r.src.codes = []uint32{305}
	r.tick()

	r.input.pos = 50
	r.run(VolumeSaveDelay + time.Second)
	if r.store.Saves != 0 {
		t.Fatalf("Expected save deferred while the lever is moved, got %d", r.store.Saves)
	}

	r.input.pos = 0
	r.run(3 * saveRetry)
	if r.store.Saves != 1 {
		t.Errorf("Expected save once idle, got %d", r.store.Saves)
	}
}

func TestStoredSettingsLoaded(t *testing.T) {
	r := &rig{
		display: &fakeDisplay{},
		audio:   &fakeAudio{},
		input:   &fakeInput{},
		clock:   core.NewManualClock(),
		store:   &MemStore{Settings: Settings{Brightness: 3, Volume: 7, Clicks: true, PowerMaster: true}},
	}
	m, err := NewManager(Options{Display: r.display, Audio: r.audio, Input: r.input, Store: r.store, Clock: r.clock})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	m.Start()

	if r.display.brightness != 3 || r.audio.volume != 7 {
		t.Errorf("Expected stored brightness 3 and volume 7, got %d %d", r.display.brightness, r.audio.volume)
	}
	if !m.State().PowerMaster || !m.State().Clicks {
		t.Error("Expected stored modes applied")
	}
}

func TestAfterTick(t *testing.T) {
	calls := 0
	m, err := NewManager(Options{
		Display:   &fakeDisplay{},
		Audio:     &fakeAudio{},
		Input:     &fakeInput{},
		Clock:     core.NewManualClock(),
		AfterTick: func() { calls++ },
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	m.Start()
	m.Tick()
	m.Tick()
	if calls != 2 {
		t.Errorf("Expected hook once per tick, got %d", calls)
	}
}
