package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/shlex"

	"remotectl/core"
	"remotectl/host/peer"
	"remotectl/host/udp"
	"remotectl/protocol"
)

var (
	hostName  = flag.String("name", "timecircuits", "Hostname the remote discovers us by")
	port      = flag.Int("port", protocol.DefaultPort, "Unicast port")
	group     = flag.String("group", protocol.MulticastGroup, "Multicast group")
	iface     = flag.String("interface", "", "Interface for the multicast join")
	mcSpeed   = flag.Bool("multicast-speed", false, "Push speed to the multicast group")
	pollEvery = flag.Duration("poll", 10*time.Millisecond, "Receive poll interval")
	verbose   = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	core.SetDebugWriter(func(s string) { log.Println(s) })
	core.SetDebugEnabled(*verbose)

	grp, err := netip.ParseAddr(*group)
	if err != nil || !grp.Is4() || !grp.IsMulticast() {
		log.Fatalf("Error: bad multicast group %q", *group)
	}

	tr, err := udp.Open(udp.Config{
		LocalPort: *port,
		Group:     grp,
		GroupPort: *port + protocol.DiscoveryPortDelta,
		Interface: *iface,
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer tr.Close()

	p := peer.New(peer.Config{
		HostName:          *hostName,
		Port:              *port,
		Group:             grp,
		SpeedViaMulticast: *mcSpeed,
	}, tr, core.SystemClock{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(*pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Poll()
			}
		}
	}()

	fmt.Printf("Peer simulator %q on %s (type 'help' for commands)\n", *hostName, tr.LocalAddr())
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := execLine(p, line)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if quit {
				return
			}
		}
	}
}

func execLine(p *peer.Peer, line string) (bool, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}

	switch args[0] {
	case "quit", "exit", "q":
		return true, nil

	case "help", "?":
		printHelp()

	case "status":
		rs, ok := p.Remote()
		fmt.Printf("phase=%s speed=%d triggers=%d\n", p.Phase(), p.Speed(), p.Triggers())
		if !ok {
			fmt.Println("no remote")
			break
		}
		fmt.Printf("remote %q at %s, seen %s ago\n", rs.HostName, rs.Addr, time.Since(rs.LastSeen).Round(time.Millisecond))
		fmt.Printf("power=%v brake=%v power_master=%v show_peer=%v speed=%d\n",
			rs.Power, rs.Brake, rs.PowerMaster, rs.ShowPeerSpeed, rs.Speed)

	case "travel":
		lead, peak := peer.DefaultLead, peer.DefaultPeak
		if len(args) > 1 {
			if lead, err = msArg(args[1]); err != nil {
				return false, err
			}
		}
		if len(args) > 2 {
			if peak, err = msArg(args[2]); err != nil {
				return false, err
			}
		}
		return false, p.TimeTravel(lead, peak)

	case "abort":
		return false, p.Abort()

	case "speed":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: speed <0..88>")
		}
		v, err := strconv.ParseInt(args[1], 10, 16)
		if err != nil {
			return false, err
		}
		return false, p.SetSpeed(int16(v))

	case "busy", "allow":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: %s on|off", args[0])
		}
		on := args[1] == "on"
		if args[0] == "busy" {
			return false, p.SetBusy(on)
		}
		return false, p.SetRemoteAllowed(on)

	case "cmd":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: cmd <code>")
		}
		code, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return false, err
		}
		return false, p.SendCommand(uint32(code))

	case "event":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: event prepare|wakeup|reentry|alarm")
		}
		kind, ok := events[args[1]]
		if !ok {
			return false, fmt.Errorf("unknown event %q", args[1])
		}
		return false, p.Event(kind)

	default:
		return false, fmt.Errorf("unknown command %q (type 'help' for available commands)", args[0])
	}
	return false, nil
}

var events = map[string]uint8{
	"prepare": protocol.NotifyPrepare,
	"wakeup":  protocol.NotifyWakeup,
	"reentry": protocol.NotifyReentry,
	"alarm":   protocol.NotifyAlarm,
}

func msArg(s string) (time.Duration, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad milliseconds %q", s)
	}
	return time.Duration(v) * time.Millisecond, nil
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  status                 - Show the peer and the registered remote")
	fmt.Println("  travel [lead] [peak]   - Start a time travel, times in ms")
	fmt.Println("  abort                  - Abort the running time travel")
	fmt.Println("  speed <n>              - Set our speed")
	fmt.Println("  busy on|off            - Report busy")
	fmt.Println("  allow on|off           - Allow or refuse remote control")
	fmt.Println("  cmd <code>             - Send a command code to the remote")
	fmt.Println("  event <kind>           - Send prepare, wakeup, reentry or alarm")
	fmt.Println("  quit/exit/q            - Exit the program")
	fmt.Println()
}
