package core

import "time"

// Timer represents a scheduled event
type Timer struct {
	WakeTime time.Time
	Handler  func(*Timer) uint8
	Next     *Timer
	queued   bool
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler is a sorted list of one-shot timers serviced by the control loop
type Scheduler struct {
	timerList *Timer
}

// ScheduleTimer adds a timer to the schedule, moving it if already queued
func (s *Scheduler) ScheduleTimer(t *Timer) {
	if t.queued {
		s.CancelTimer(t)
	}
	s.insertTimer(t)
}

// ScheduleAfter (re)arms t to fire d after now
func (s *Scheduler) ScheduleAfter(t *Timer, now time.Time, d time.Duration) {
	if t.queued {
		s.CancelTimer(t)
	}
	t.WakeTime = now.Add(d)
	s.insertTimer(t)
}

// Pending reports whether t is waiting to fire
func (s *Scheduler) Pending(t *Timer) bool {
	return t.queued
}

// CancelTimer removes t from the schedule
func (s *Scheduler) CancelTimer(t *Timer) {
	if !t.queued {
		return
	}
	if s.timerList == t {
		s.timerList = t.Next
	} else {
		for cur := s.timerList; cur != nil; cur = cur.Next {
			if cur.Next == t {
				cur.Next = t.Next
				break
			}
		}
	}
	t.Next = nil
	t.queued = false
}

// insertTimer inserts a timer in sorted order by WakeTime
func (s *Scheduler) insertTimer(t *Timer) {
	t.queued = true
	if s.timerList == nil || t.WakeTime.Before(s.timerList.WakeTime) {
		t.Next = s.timerList
		s.timerList = t
		return
	}

	current := s.timerList
	for current.Next != nil && !t.WakeTime.Before(current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// TimerDispatch processes due timers. A handler returning SF_RESCHEDULE
// must have moved WakeTime forward.
func (s *Scheduler) TimerDispatch(now time.Time) {
	for s.timerList != nil && !s.timerList.WakeTime.After(now) {
		timer := s.timerList
		s.timerList = timer.Next
		timer.Next = nil
		timer.queued = false

		if timer.Handler(timer) == SF_RESCHEDULE {
			s.insertTimer(timer)
		}
	}
}
