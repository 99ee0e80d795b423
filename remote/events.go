package remote

// linkEvents applies link notifications to the manager. The link calls
// it from Poll and PollQuick, so it runs on the control loop.
type linkEvents struct {
	m *Manager
}

func (e linkEvents) PeerP0(speed uint16, stalled bool) {
	m := e.m
	if m.state.Powered && !m.seq.InPeak() && !m.state.Busy && !m.link.Peer().Busy {
		m.follow.Observe(speed, stalled)
	} else {
		m.follow.Stop()
	}
}

func (e linkEvents) PeerP0End() {
	e.m.follow.Stop()
}

func (e linkEvents) Prepare() {
	e.m.state.prepare = true
}

func (e linkEvents) Wakeup() {
	e.m.state.wakeup = true
}

func (e linkEvents) TimeTravel(lead, peak uint16) {
	m := e.m
	if m.state.Powered && !m.seq.Running() && !m.state.Busy {
		m.seq.RequestExternal(lead, peak)
	}
}

func (e linkEvents) Reentry() {
	e.m.seq.NotifyReentry()
}

func (e linkEvents) Abort() {
	e.m.seq.NotifyAbort()
}

func (e linkEvents) Alarm() {
	e.m.state.alarm = true
}

func (e linkEvents) RemoteCommand(code uint32) {
	if !e.m.state.Busy {
		e.m.Enqueue(code)
	}
}
