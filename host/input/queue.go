// Package input feeds the control loop from host input devices: a
// terminal keyboard or a USB keypad stands in for the lever and the
// buttons of the prop
package input

import (
	"github.com/sasha-s/go-deadlock"

	"remotectl/core"
)

const (
	leverRange = 100
	// minTravel is the smallest calibrated full deflection accepted
	minTravel = 20
)

// Queue hands button edges and the lever position from reader
// goroutines to the control loop. It implements core.Input and
// core.Calibrator.
type Queue struct {
	mu     deadlock.Mutex
	events []core.InputEvent

	raw     int // Lever as reported by the device
	zero    int
	maxUp   int
	maxDown int
}

// NewQueue creates a queue with the lever centred and uncalibrated
func NewQueue() *Queue {
	return &Queue{maxUp: leverRange, maxDown: leverRange}
}

// Press queues one button edge
func (q *Queue) Press(b core.Button, e core.Edge) {
	q.mu.Lock()
	q.events = append(q.events, core.InputEvent{Button: b, Edge: e})
	q.mu.Unlock()
}

// SetLever sets the raw lever position, clamped to -100..100
func (q *Queue) SetLever(raw int) {
	q.mu.Lock()
	q.raw = clamp(raw, -leverRange, leverRange)
	q.mu.Unlock()
}

// MoveLever shifts the raw lever position by d
func (q *Queue) MoveLever(d int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.raw = clamp(q.raw+d, -leverRange, leverRange)
	return q.raw
}

// Scan returns and clears the queued edges
func (q *Queue) Scan() []core.InputEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	ev := q.events
	q.events = nil
	return ev
}

// Throttle returns the calibrated lever position
func (q *Queue) Throttle() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	d := q.raw - q.zero
	switch {
	case d > 0:
		return clamp(d*leverRange/q.maxUp, 0, leverRange)
	case d < 0:
		return clamp(d*leverRange/q.maxDown, -leverRange, 0)
	}
	return 0
}

// ZeroPosition takes the current lever position as neutral
func (q *Queue) ZeroPosition() {
	q.mu.Lock()
	q.zero = q.raw
	q.mu.Unlock()
}

// SetMaxUp takes the current position as full forward. It fails if
// the lever is too close to neutral.
func (q *Queue) SetMaxUp() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	d := q.raw - q.zero
	if d < minTravel {
		return false
	}
	q.maxUp = d
	return true
}

// SetMaxDown takes the current position as full reverse
func (q *Queue) SetMaxDown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	d := q.zero - q.raw
	if d < minTravel {
		return false
	}
	q.maxDown = d
	return true
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
