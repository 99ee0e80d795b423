package input

import (
	"testing"

	"remotectl/core"
)

func TestQueueEvents(t *testing.T) {
	q := NewQueue()
	q.Press(core.ButtonPower, core.EdgePress)
	q.Press(core.ButtonA, core.EdgeLongPress)

	ev := q.Scan()
	if len(ev) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(ev))
	}
	if ev[1] != (core.InputEvent{Button: core.ButtonA, Edge: core.EdgeLongPress}) {
		t.Errorf("Expected long A, got %+v", ev[1])
	}
	if len(q.Scan()) != 0 {
		t.Error("Expected queue drained")
	}
}

func TestQueueLever(t *testing.T) {
	q := NewQueue()

	testCases := []struct {
		name string
		move int
		want int
	}{
		{"forward", 30, 30},
		{"clamped", 200, 100},
		{"reverse", -250, -100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q.MoveLever(tc.move)
			if got := q.Throttle(); got != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestQueueCalibration(t *testing.T) {
	q := NewQueue()

	q.SetLever(10)
	q.ZeroPosition()
	if q.Throttle() != 0 {
		t.Errorf("Expected neutral after zeroing, got %d", q.Throttle())
	}

	q.SetLever(20)
	if q.SetMaxUp() {
		t.Error("Expected too short forward travel rejected")
	}
	q.SetLever(60)
	if !q.SetMaxUp() {
		t.Fatal("Expected forward travel accepted")
	}
	if q.Throttle() != 100 {
		t.Errorf("Expected full forward, got %d", q.Throttle())
	}
	q.SetLever(35)
	if q.Throttle() != 50 {
		t.Errorf("Expected half forward, got %d", q.Throttle())
	}

	q.SetLever(-40)
	if !q.SetMaxDown() {
		t.Fatal("Expected reverse travel accepted")
	}
	q.SetLever(-15)
	if q.Throttle() != -50 {
		t.Errorf("Expected half reverse, got %d", q.Throttle())
	}
}
