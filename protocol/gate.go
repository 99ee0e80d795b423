package protocol

// Gate drops stale and duplicate notifications.
// Each notification class remembers the last counter it saw, accepted or
// not, so a peer that restarted and lost its first packet is followed
// again from its second one. A counter of 1 always passes, since the
// peer restarts its counters at 1.
type Gate struct {
	last        map[uint8]uint32
	session     uint32
	haveSession bool
}

// NewGate creates an empty gate
func NewGate() *Gate {
	return &Gate{last: make(map[uint8]uint32)}
}

// Accept reports whether seq is newer than the last counter seen for
// the given class. seq becomes the new baseline either way.
func (g *Gate) Accept(class uint8, seq uint32) bool {
	prev := g.last[class]
	g.last[class] = seq
	return seq == 1 || seq > prev
}

// ResetClass forgets the baseline of one class
func (g *Gate) ResetClass(class uint8) {
	delete(g.last, class)
}

// AcceptStream gates data-stream notifications. A change of session id
// drops the baseline before the counter is checked.
func (g *Gate) AcceptStream(session, seq uint32) bool {
	if g.haveSession && session != g.session {
		g.ResetClass(NotifyData)
	}
	g.session = session
	g.haveSession = true
	return g.Accept(NotifyData, seq)
}

// Reset forgets all baselines
func (g *Gate) Reset() {
	for k := range g.last {
		delete(g.last, k)
	}
	g.session = 0
	g.haveSession = false
}
