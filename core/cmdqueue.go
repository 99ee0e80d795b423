package core

// CommandQueueSize is the number of pending command codes kept
const CommandQueueSize = 16

// CommandQueue is a fixed ring of pending command codes.
// Zero marks an empty slot. When full, Push overwrites the oldest
// unread code.
type CommandQueue struct {
	slots [CommandQueueSize]uint32
	in    int
	out   int
}

// Push queues a code; zero is ignored
func (q *CommandQueue) Push(code uint32) {
	if code == 0 {
		return
	}
	if q.slots[q.in] != 0 {
		// Full: the write slot is the oldest unread entry
		q.out = (q.in + 1) % CommandQueueSize
	}
	q.slots[q.in] = code
	q.in = (q.in + 1) % CommandQueueSize
}

// Pop returns the oldest pending code
func (q *CommandQueue) Pop() (uint32, bool) {
	code := q.slots[q.out]
	if code == 0 {
		return 0, false
	}
	q.slots[q.out] = 0
	q.out = (q.out + 1) % CommandQueueSize
	return code, true
}

// Len returns the number of pending codes
func (q *CommandQueue) Len() int {
	n := 0
	for _, c := range q.slots {
		if c != 0 {
			n++
		}
	}
	return n
}
