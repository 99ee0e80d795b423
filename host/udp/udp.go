// Package udp is the socket transport for the link on a host with a
// real network stack
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"

	"remotectl/core"
	"remotectl/protocol"
)

// Config selects the sockets to open
type Config struct {
	// LocalPort is the unicast port to bind, 0 for an ephemeral one
	LocalPort int

	// Group and GroupPort select the multicast socket. GroupPort 0
	// disables multicast reception.
	Group     netip.Addr
	GroupPort int

	// Interface restricts multicast to one interface, empty for the default
	Interface string
}

// queueDepth is the number of datagrams buffered per socket between polls
const queueDepth = 16

// Transport implements protocol.Transport over two UDP sockets. A reader
// goroutine per socket feeds a bounded queue that the control loop drains.
type Transport struct {
	uc *net.UDPConn
	mc *net.UDPConn

	unicast   chan protocol.Datagram
	multicast chan protocol.Datagram

	up      atomic.Bool
	dropped atomic.Uint32

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Open binds the sockets and starts the readers
func Open(cfg Config) (*Transport, error) {
	lc := &net.ListenConfig{Control: reuseControl}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", cfg.LocalPort))
	if err != nil {
		return nil, fmt.Errorf("failed to bind unicast port %d: %w", cfg.LocalPort, err)
	}
	t := &Transport{
		uc:        pc.(*net.UDPConn),
		unicast:   make(chan protocol.Datagram, queueDepth),
		multicast: make(chan protocol.Datagram, queueDepth),
		stopChan:  make(chan struct{}),
	}

	// Discovery goes out to the group; keep it on the local segment
	if err := ipv4.NewPacketConn(t.uc).SetMulticastTTL(1); err != nil {
		core.Debugf("udp: failed to set multicast TTL: %v", err)
	}

	if cfg.GroupPort != 0 {
		if err := t.joinGroup(lc, cfg); err != nil {
			t.uc.Close()
			return nil, err
		}
	}

	t.up.Store(true)
	t.startReader(t.uc, t.unicast)
	if t.mc != nil {
		t.startReader(t.mc, t.multicast)
	}
	return t, nil
}

func (t *Transport) joinGroup(lc *net.ListenConfig, cfg Config) error {
	var ifi *net.Interface
	if cfg.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			return fmt.Errorf("unknown interface %s: %w", cfg.Interface, err)
		}
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", cfg.GroupPort))
	if err != nil {
		return fmt.Errorf("failed to bind multicast port %d: %w", cfg.GroupPort, err)
	}
	t.mc = pc.(*net.UDPConn)

	p := ipv4.NewPacketConn(t.mc)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: cfg.Group.AsSlice()}); err != nil {
		t.mc.Close()
		return fmt.Errorf("failed to join %s: %w", cfg.Group, err)
	}
	return nil
}

func (t *Transport) startReader(conn *net.UDPConn, out chan protocol.Datagram) {
	t.wg.Add(1)
	go t.readLoop(conn, out)
}

// readLoop reads datagrams until the transport is closed
func (t *Transport) readLoop(conn *net.UDPConn, out chan protocol.Datagram) {
	defer t.wg.Done()

	buf := make([]byte, 512)
	for {
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-t.stopChan:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				t.up.Store(false)
				return
			}
			// Transient; back off and keep going
			core.Debugf("udp: read error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		// Foreign traffic of another size is common on shared ports
		if n != protocol.PacketSize {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		d := protocol.Datagram{
			From: netip.AddrPortFrom(from.Addr().Unmap(), from.Port()),
			Data: data,
		}

		select {
		case out <- d:
		default:
			// Queue full, drop oldest
			select {
			case <-out:
				t.dropped.Add(1)
			default:
			}
			select {
			case out <- d:
			default:
			}
		}
	}
}

// Recv returns the next unicast datagram without blocking
func (t *Transport) Recv() (protocol.Datagram, bool) {
	select {
	case d := <-t.unicast:
		return d, true
	default:
		return protocol.Datagram{}, false
	}
}

// RecvMulticast returns the next multicast datagram without blocking
func (t *Transport) RecvMulticast() (protocol.Datagram, bool) {
	select {
	case d := <-t.multicast:
		return d, true
	default:
		return protocol.Datagram{}, false
	}
}

// Send writes one datagram
func (t *Transport) Send(dst netip.AddrPort, b []byte) error {
	n, err := t.uc.WriteToUDPAddrPort(b, dst)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(b))
	}
	return nil
}

// Up reports whether the sockets are open
func (t *Transport) Up() bool {
	return t.up.Load()
}

// LocalAddr returns the bound unicast address
func (t *Transport) LocalAddr() netip.AddrPort {
	return t.uc.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Dropped returns the number of datagrams lost to full queues
func (t *Transport) Dropped() uint32 {
	return t.dropped.Load()
}

// Close stops the readers and closes the sockets
func (t *Transport) Close() error {
	close(t.stopChan)
	t.up.Store(false)
	err := t.uc.Close()
	if t.mc != nil {
		if merr := t.mc.Close(); err == nil {
			err = merr
		}
	}
	t.wg.Wait()
	return err
}
