// Package console is the maintenance command line of the remote. It
// reads lines from a serial port or a terminal, queues command codes for
// the control loop and prints status snapshots published by it.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/sasha-s/go-deadlock"

	"remotectl/core"
	"remotectl/host/input"
)

// CodeTimeTravel is the command code of an immediate standalone time travel
const CodeTimeTravel = 1010

var (
	ErrUsage       = errors.New("usage error")
	ErrUnknownVerb = errors.New("unknown command")
	ErrNoInput     = errors.New("no console input attached")
)

// Inbox collects command codes from other goroutines. It implements
// remote.CommandSource.
type Inbox struct {
	mu    deadlock.Mutex
	codes []uint32
}

// Push queues a code
func (b *Inbox) Push(code uint32) {
	b.mu.Lock()
	b.codes = append(b.codes, code)
	b.mu.Unlock()
}

// Drain returns and clears the queued codes
func (b *Inbox) Drain() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.codes
	b.codes = nil
	return c
}

// Status is the snapshot shown by the status command
type Status struct {
	Powered    bool
	Brake      bool
	Speed      int // Tenths
	Phase      string
	Armed      string
	Following  bool
	Busy       bool
	Pending    int
	Volume     uint8
	Brightness uint8
	Link       string
	PeerSpeed  int16
	PeerBusy   bool
}

func (s Status) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "power=%v brake=%v speed=%d.%d phase=%s armed=%s\n",
		s.Powered, s.Brake, s.Speed/10, s.Speed%10, s.Phase, s.Armed)
	fmt.Fprintf(&sb, "following=%v busy=%v pending=%d volume=%d brightness=%d\n",
		s.Following, s.Busy, s.Pending, s.Volume, s.Brightness)
	fmt.Fprintf(&sb, "link=%s peer_speed=%d peer_busy=%v", s.Link, s.PeerSpeed, s.PeerBusy)
	return sb.String()
}

// Console executes console lines
type Console struct {
	inbox *Inbox
	input *input.Queue // Optional; lever and press need it
	dict  func() string

	mu     deadlock.Mutex
	status Status
}

// New creates a console feeding inbox. in and dict may be nil.
func New(inbox *Inbox, in *input.Queue, dict func() string) *Console {
	return &Console{inbox: inbox, input: in, dict: dict}
}

// Publish stores the latest status snapshot
func (c *Console) Publish(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Serve reads lines from r until EOF or ctx is cancelled, writing
// replies to w
func (c *Console) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	fmt.Fprint(w, "> ")
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := c.Exec(sc.Text())
		switch {
		case err != nil:
			fmt.Fprintf(w, "error: %v\n", err)
		case out != "":
			fmt.Fprintln(w, out)
		}
		fmt.Fprint(w, "> ")
	}
	return sc.Err()
}

// Exec runs one line and returns its output
func (c *Console) Exec(line string) (string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if len(args) == 0 {
		return "", nil
	}

	switch args[0] {
	case "cmd", "inject":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: %s <code>", ErrUsage, args[0])
		}
		code, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil || code == 0 || code&core.InjectedFlag != 0 {
			return "", fmt.Errorf("%w: bad code %q", ErrUsage, args[1])
		}
		if args[0] == "inject" {
			code |= core.InjectedFlag
		}
		c.inbox.Push(uint32(code))
		return "", nil

	case "travel":
		c.inbox.Push(CodeTimeTravel)
		return "", nil

	case "lever":
		if c.input == nil {
			return "", ErrNoInput
		}
		if len(args) != 2 {
			return "", fmt.Errorf("%w: lever <-100..100>", ErrUsage)
		}
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("%w: bad position %q", ErrUsage, args[1])
		}
		c.input.SetLever(pos)
		return "", nil

	case "press":
		return "", c.press(args[1:])

	case "status":
		c.mu.Lock()
		s := c.status
		c.mu.Unlock()
		return s.String(), nil

	case "events":
		return formatEvents(core.Events()), nil

	case "commands":
		if c.dict == nil {
			return "", nil
		}
		return c.dict(), nil

	case "help":
		return help, nil
	}
	return "", fmt.Errorf("%w %q, try help", ErrUnknownVerb, args[0])
}

func (c *Console) press(args []string) error {
	if c.input == nil {
		return ErrNoInput
	}
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("%w: press <button> [long|release]", ErrUsage)
	}
	b, ok := buttons[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown button %q", ErrUsage, args[0])
	}
	edge := core.EdgePress
	if len(args) == 2 {
		switch args[1] {
		case "long":
			edge = core.EdgeLongPress
		case "release", "off":
			edge = core.EdgeRelease
		default:
			return fmt.Errorf("%w: unknown edge %q", ErrUsage, args[1])
		}
	}
	c.input.Press(b, edge)
	return nil
}

var buttons = map[string]core.Button{
	"power": core.ButtonPower,
	"brake": core.ButtonBrake,
	"calib": core.ButtonCalib,
	"a":     core.ButtonA,
	"b":     core.ButtonB,
}

func formatEvents(events []core.TraceEvent) string {
	var sb strings.Builder
	for i, ev := range events {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s %-12s v1=%d v2=%d",
			ev.At.Format("15:04:05.000"), core.EventName(ev.EventType), ev.Value1, ev.Value2)
	}
	return sb.String()
}

const help = `cmd <code>                  queue a command code
inject <code>               queue a code as an outside integration would
travel                      immediate time travel (code 1010)
lever <pos>                 set the lever, -100..100
press <button> [long|off]   button edge: power, brake, calib, a, b
status                      show the control loop state
events                      show the event trace
commands                    list the command code ranges`
