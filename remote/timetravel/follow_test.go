package timetravel

import (
	"testing"
	"time"

	"remotectl/core"
)

func TestFollowerRendersPeerSpeed(t *testing.T) {
	f := NewFollower()

	f.Observe(30, false)
	st := f.Tick(t0, true, 100, 0)
	if !st.Start || !st.Active {
		t.Fatalf("Expected follow mode to start, got %+v", st)
	}
	if !st.Render || st.Tenths != 300 || st.Cue != core.CueClick {
		t.Errorf("Expected 30.0 with a click, got %+v", st)
	}

	// Synthesized tenths between reports
	st = f.Tick(t0.Add(FakeTenthsEvery), true, 300, 0)
	if st.Render {
		t.Error("Fake tenths too early")
	}
	st = f.Tick(t0.Add(FakeTenthsEvery+time.Millisecond), true, 300, 0)
	if !st.Render || st.Tenths != 301 {
		t.Errorf("Expected 30.1, got %+v", st)
	}

	f.Observe(31, false)
	st = f.Tick(t0.Add(50*time.Millisecond), true, 301, 1)
	if !st.Render || st.Tenths != 310 || st.Cue != core.CueClick {
		t.Errorf("Expected 31.0 with click, got %+v", st)
	}

	// Clicks are spaced
	f.Observe(32, false)
	st = f.Tick(t0.Add(60*time.Millisecond), true, 310, 0)
	if st.Cue != core.CueNone || st.Tenths != 320 {
		t.Errorf("Expected 32.0 without click, got %+v", st)
	}
}

func TestFollowerFakeTenthsWrap(t *testing.T) {
	f := NewFollower()
	f.Observe(40, false)
	now := t0
	f.Tick(now, true, 0, 0)

	var got []int
	for i := 0; i < 11; i++ {
		now = now.Add(FakeTenthsEvery + time.Millisecond)
		if st := f.Tick(now, true, 0, 0); st.Render {
			got = append(got, st.Tenths-400)
		}
	}
	want := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestFollowerStalled(t *testing.T) {
	f := NewFollower()
	f.Observe(50, true)

	st := f.Tick(t0, true, 0, 7)
	if !st.Render || st.Tenths != 507 || st.Cue != core.CueNone {
		t.Errorf("Expected 50.7 without click, got %+v", st)
	}
	st = f.Tick(t0.Add(time.Second), true, 507, 7)
	if st.Render {
		t.Error("Stalled feed must not fake tenths")
	}
}

func TestFollowerBelowStartSpeed(t *testing.T) {
	f := NewFollower()
	f.Observe(20, false)

	st := f.Tick(t0, true, 450, 0)
	if st.Render {
		t.Errorf("Peer slower than local speed must not render, got %+v", st)
	}
}

func TestFollowerTimeout(t *testing.T) {
	f := NewFollower()
	f.Observe(30, false)
	f.Tick(t0, true, 0, 0)

	// Same speed again is not a change
	f.Observe(30, false)
	st := f.Tick(t0.Add(FollowTimeout), true, 300, 0)
	if !st.Active {
		t.Fatal("Expired early")
	}
	st = f.Tick(t0.Add(FollowTimeout+time.Millisecond), true, 300, 0)
	if st.Active || !st.End || f.Active() {
		t.Errorf("Expected follow mode to expire, got %+v", st)
	}
	st = f.Tick(t0.Add(FollowTimeout+time.Second), true, 300, 0)
	if st.End {
		t.Error("End reported twice")
	}
}

func TestFollowerStop(t *testing.T) {
	f := NewFollower()
	f.Observe(30, false)
	f.Tick(t0, true, 0, 0)

	f.Stop()
	st := f.Tick(t0.Add(time.Second), true, 300, 0)
	if st.Active || !st.End {
		t.Errorf("Expected end after stop, got %+v", st)
	}

	// A new report starts over from the current speed
	f.Observe(35, false)
	st = f.Tick(t0.Add(2*time.Second), true, 300, 0)
	if !st.Start || st.Tenths != 350 {
		t.Errorf("Expected restart at 35.0, got %+v", st)
	}
}
