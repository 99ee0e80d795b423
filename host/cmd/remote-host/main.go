package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"remotectl/core"
	"remotectl/display"
	"remotectl/host/audio"
	"remotectl/host/console"
	"remotectl/host/i2c"
	"remotectl/host/input"
	"remotectl/host/serial"
	"remotectl/host/udp"
	"remotectl/protocol"
	"remotectl/remote"
	"remotectl/remote/config"
)

var (
	configPath  = flag.String("config", "", "JSON configuration file")
	peer        = flag.String("peer", "", "Peer IPv4 address or hostname (overrides the config)")
	inputKind   = flag.String("input", "", "Input: keyboard, evdev or console (overrides the config)")
	serialPort  = flag.String("serial", "", "Serial device for the maintenance console (overrides the config)")
	localPort   = flag.Int("local-port", 0, "Unicast port to bind, 0 for an ephemeral one")
	textDisplay = flag.Bool("text-display", false, "Print the speedo instead of driving the LED board")
	soundDir    = flag.String("sounds", "", "Directory with the cue sound files")
	verbose     = flag.Bool("verbose", false, "Enable verbose output")
)

// statusEvery is the number of loop ticks between console status snapshots
const statusEvery = 20

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	core.SetDebugWriter(func(s string) { log.Println(s) })
	core.SetDebugEnabled(cfg.Debug || *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := run(ctx, cancel, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if *peer != "" {
		cfg.Peer = *peer
	}
	if *inputKind != "" {
		cfg.Input = *inputKind
	}
	if *serialPort != "" {
		cfg.SerialPort = *serialPort
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config) error {
	clock := core.SystemClock{}

	speedo, closeDisplay := openDisplay(cfg)
	defer closeDisplay()

	player := audio.NewPlayer(clock, *soundDir, func(s string) { log.Println(s) })

	q := input.NewQueue()
	if err := startInput(ctx, cancel, cfg, q); err != nil {
		return err
	}

	group, _ := cfg.Group()
	tr, err := udp.Open(udp.Config{
		LocalPort: *localPort,
		Group:     group,
		GroupPort: cfg.Port + protocol.MulticastPortDelta,
		Interface: cfg.Interface,
	})
	if err != nil {
		return err
	}
	defer tr.Close()
	log.Printf("Listening on %s, peer %q", tr.LocalAddr(), cfg.Peer)

	inbox := &console.Inbox{}
	var (
		m     *remote.Manager
		link  *protocol.Link
		con   *console.Console
		ticks int
	)
	m, err = remote.NewManager(remote.Options{
		Config:  cfg,
		Display: speedo,
		Audio:   player,
		Input:   q,
		Store:   &remote.FileStore{Path: cfg.SettingsPath},
		Clock:   clock,
		Source:  inbox,
		LocalIP: localIP,
		Reboot: func() {
			log.Println("Reboot requested, exiting")
			cancel()
		},
		AfterTick: func() {
			if ticks++; ticks%statusEvery == 0 {
				con.Publish(snapshot(m, link))
			}
		},
	})
	if err != nil {
		return err
	}

	link = protocol.NewLink(cfg.LinkConfig(), tr, m.LinkEvents(), clock)
	m.SetLink(link)

	con = console.New(inbox, q, m.Commands().GetDictionary)
	if err := startConsole(ctx, cfg, con); err != nil {
		return err
	}

	m.Start()
	return m.Run(ctx)
}

// openDisplay drives the LED board, or prints the speedo if there is none
func openDisplay(cfg *config.Config) (core.Display, func()) {
	text := func() (core.Display, func()) {
		return display.NewText(func(s string) { log.Println(s) }), func() {}
	}
	if *textDisplay {
		return text()
	}

	bus, err := i2c.Open(cfg.I2CBus)
	if err != nil {
		log.Printf("No LED board (%v), printing the speedo", err)
		return text()
	}
	speedo := display.New(bus, cfg.DisplayAddress)
	if err := speedo.Configure(); err != nil {
		bus.Close()
		log.Printf("LED board at 0x%02x not responding (%v), printing the speedo", cfg.DisplayAddress, err)
		return text()
	}
	return speedo, func() {
		speedo.Off()
		bus.Close()
	}
}

func startInput(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, q *input.Queue) error {
	switch cfg.Input {
	case "keyboard":
		fmt.Println(input.KeyboardHelp)
		kb := input.NewKeyboard(q)
		go func() {
			err := kb.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, input.ErrQuit) {
				log.Printf("Keyboard: %v", err)
			}
			cancel()
		}()

	case "evdev":
		ev, err := input.OpenEvdev(cfg.EvdevDevice, q)
		if err != nil {
			return err
		}
		go func() {
			defer ev.Close()
			if err := ev.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Keypad: %v", err)
			}
		}()
	}
	return nil
}

// startConsole serves the console on the serial port if one is set, or
// on the terminal unless the keyboard input holds it
func startConsole(ctx context.Context, cfg *config.Config, con *console.Console) error {
	var rw io.ReadWriter
	switch {
	case cfg.SerialPort != "":
		sc := serial.DefaultConfig(cfg.SerialPort)
		sc.Baud = cfg.SerialBaud
		port, err := serial.Open(sc)
		if err != nil {
			return err
		}
		go func() {
			<-ctx.Done()
			port.Close()
		}()
		rw = port
	case cfg.Input != "keyboard":
		rw = struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}
	default:
		return nil
	}

	go func() {
		if err := con.Serve(ctx, rw, rw); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Console: %v", err)
		}
	}()
	return nil
}

func snapshot(m *remote.Manager, link *protocol.Link) console.Status {
	st := m.State()
	set := m.Settings()
	peer := link.Peer()
	return console.Status{
		Powered:    st.Powered,
		Brake:      st.Brake,
		Speed:      m.Speed(),
		Phase:      m.Phase().String(),
		Armed:      st.Armed.String(),
		Following:  m.Following(),
		Busy:       st.Busy,
		Pending:    m.PendingCommands(),
		Volume:     set.Volume,
		Brightness: set.Brightness,
		Link:       link.State().String(),
		PeerSpeed:  peer.Speed,
		PeerBusy:   peer.Busy,
	}
}

// localIP returns the first non-loopback IPv4 address of the host
func localIP() netip.Addr {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Addr{}
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil {
			ip, _ := netip.AddrFromSlice(ip4)
			return ip
		}
	}
	return netip.Addr{}
}
