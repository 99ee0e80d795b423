package protocol

import (
	"net/netip"
	"sync"
)

// Datagram is one received UDP payload and its sender
type Datagram struct {
	From netip.AddrPort
	Data []byte
}

// Transport owns the unicast and multicast sockets. Receive calls never
// block; the link drains them once per loop tick.
type Transport interface {
	// Recv returns the next datagram received on the unicast port
	Recv() (Datagram, bool)

	// RecvMulticast returns the next datagram received on the multicast group
	RecvMulticast() (Datagram, bool)

	// Send writes one datagram
	Send(dst netip.AddrPort, b []byte) error

	// Up reports whether the network is usable
	Up() bool
}

// MemTransport is an in-memory Transport for tests and simulations
type MemTransport struct {
	mu        sync.Mutex
	unicast   []Datagram
	multicast []Datagram
	sent      []Datagram
	down      bool
	sendErr   error
}

// NewMemTransport creates a transport whose network is up
func NewMemTransport() *MemTransport {
	return &MemTransport{}
}

// Recv pops the next queued unicast datagram
func (t *MemTransport) Recv() (Datagram, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return pop(&t.unicast)
}

// RecvMulticast pops the next queued multicast datagram
func (t *MemTransport) RecvMulticast() (Datagram, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return pop(&t.multicast)
}

// Send records the datagram
func (t *MemTransport) Send(dst netip.AddrPort, b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	data := make([]byte, len(b))
	copy(data, b)
	t.sent = append(t.sent, Datagram{From: dst, Data: data})
	return nil
}

// Up reports the simulated network state
func (t *MemTransport) Up() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.down
}

// SetUp switches the simulated network
func (t *MemTransport) SetUp(up bool) {
	t.mu.Lock()
	t.down = !up
	t.mu.Unlock()
}

// SetSendError makes every Send fail with err (nil clears)
func (t *MemTransport) SetSendError(err error) {
	t.mu.Lock()
	t.sendErr = err
	t.mu.Unlock()
}

// Inject queues a unicast datagram from src
func (t *MemTransport) Inject(src netip.AddrPort, m Message) {
	p := Encode(m)
	t.InjectRaw(src, p[:])
}

// InjectRaw queues raw unicast bytes from src
func (t *MemTransport) InjectRaw(src netip.AddrPort, b []byte) {
	t.mu.Lock()
	t.unicast = append(t.unicast, Datagram{From: src, Data: b})
	t.mu.Unlock()
}

// InjectMulticast queues a multicast datagram from src
func (t *MemTransport) InjectMulticast(src netip.AddrPort, m Message) {
	p := Encode(m)
	t.mu.Lock()
	t.multicast = append(t.multicast, Datagram{From: src, Data: p[:]})
	t.mu.Unlock()
}

// Sent returns and clears the datagrams written so far.
// Datagram.From holds the destination.
func (t *MemTransport) Sent() []Datagram {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.sent
	t.sent = nil
	return out
}

func pop(q *[]Datagram) (Datagram, bool) {
	if len(*q) == 0 {
		return Datagram{}, false
	}
	d := (*q)[0]
	*q = (*q)[1:]
	return d, true
}
