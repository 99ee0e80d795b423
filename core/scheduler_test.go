package core

import (
	"testing"
	"time"
)

func TestSchedulerOrder(t *testing.T) {
	clock := NewManualClock()
	var s Scheduler
	var fired []string

	mk := func(name string) *Timer {
		return &Timer{Handler: func(*Timer) uint8 {
			fired = append(fired, name)
			return SF_DONE
		}}
	}

	vis, bri, vol := mk("vis"), mk("bri"), mk("vol")
	s.ScheduleAfter(bri, clock.Now(), 8*time.Second)
	s.ScheduleAfter(vis, clock.Now(), 3*time.Second)
	s.ScheduleAfter(vol, clock.Now(), 5*time.Second)

	clock.Advance(4 * time.Second)
	s.TimerDispatch(clock.Now())
	if len(fired) != 1 || fired[0] != "vis" {
		t.Errorf("Expected [vis] after 4s, got %v", fired)
	}

	clock.Advance(10 * time.Second)
	s.TimerDispatch(clock.Now())
	if len(fired) != 3 || fired[1] != "vol" || fired[2] != "bri" {
		t.Errorf("Expected [vis vol bri], got %v", fired)
	}
	if s.Pending(bri) {
		t.Error("Fired timer still pending")
	}
}

func TestSchedulerRearmAndCancel(t *testing.T) {
	clock := NewManualClock()
	var s Scheduler
	count := 0
	tm := &Timer{Handler: func(*Timer) uint8 { count++; return SF_DONE }}

	s.ScheduleAfter(tm, clock.Now(), time.Second)
	clock.Advance(900 * time.Millisecond)
	// Debounce: a new change pushes the deadline out
	s.ScheduleAfter(tm, clock.Now(), time.Second)
	clock.Advance(500 * time.Millisecond)
	s.TimerDispatch(clock.Now())
	if count != 0 {
		t.Errorf("Re-armed timer fired early")
	}

	s.CancelTimer(tm)
	clock.Advance(2 * time.Second)
	s.TimerDispatch(clock.Now())
	if count != 0 || s.Pending(tm) {
		t.Errorf("Cancelled timer fired or still pending")
	}
}

func TestSchedulerReschedule(t *testing.T) {
	clock := NewManualClock()
	var s Scheduler
	count := 0
	tm := &Timer{}
	tm.Handler = func(t *Timer) uint8 {
		count++
		if count < 3 {
			t.WakeTime = t.WakeTime.Add(100 * time.Millisecond)
			return SF_RESCHEDULE
		}
		return SF_DONE
	}

	s.ScheduleAfter(tm, clock.Now(), 0)
	for i := 0; i < 5; i++ {
		s.TimerDispatch(clock.Now())
		clock.Advance(100 * time.Millisecond)
	}
	if count != 3 {
		t.Errorf("Expected 3 runs, got %d", count)
	}
}
