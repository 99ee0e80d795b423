package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// InjectedFlag marks a command code that came from an outside integration
const InjectedFlag = 0x80000000

var (
	ErrUnknownCommand = errors.New("unknown command code")
	ErrNeedsPower     = errors.New("command requires the unit to be on")
	ErrNotInjectable  = errors.New("command cannot be injected")
	ErrOverlap        = errors.New("command range overlaps a registered command")
)

// Command flags
const (
	CmdNeedsPower  = 1 << iota // Ignored while fake power is off
	CmdNotInjected             // Ignored when the code was injected
)

// CommandHandler handles one code out of a registered range
type CommandHandler func(code uint32) error

// Command is a named range of command codes
type Command struct {
	Name    string
	Min     uint32
	Max     uint32
	Flags   uint8
	Handler CommandHandler
}

// CommandRegistry maps command codes to handlers
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command // sorted by Min
	byName   map[string]*Command
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		byName: make(map[string]*Command),
	}
}

// Register adds a handler for the codes min..max inclusive
func (r *CommandRegistry) Register(name string, min, max uint32, flags uint8, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if min > max {
		min, max = max, min
	}
	for _, c := range r.commands {
		if min <= c.Max && max >= c.Min {
			return fmt.Errorf("%s %d-%d: %w (%s)", name, min, max, ErrOverlap, c.Name)
		}
	}

	cmd := &Command{Name: name, Min: min, Max: max, Flags: flags, Handler: handler}
	r.commands = append(r.commands, cmd)
	sort.Slice(r.commands, func(i, j int) bool { return r.commands[i].Min < r.commands[j].Min })
	r.byName[name] = cmd
	return nil
}

// Lookup finds the command covering code
func (r *CommandRegistry) Lookup(code uint32) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := sort.Search(len(r.commands), func(i int) bool { return r.commands[i].Max >= code })
	if i < len(r.commands) && r.commands[i].Min <= code {
		return r.commands[i], true
	}
	return nil, false
}

// GetCommand retrieves a command by name
func (r *CommandRegistry) GetCommand(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler for a raw code from the queue.
// Injected codes are normalised first.
func (r *CommandRegistry) Dispatch(raw uint32, poweredOn bool) error {
	code, injected := NormalizeCode(raw)
	if code == 0 {
		return nil
	}

	cmd, ok := r.Lookup(code)
	if !ok {
		return fmt.Errorf("%d: %w", code, ErrUnknownCommand)
	}
	if cmd.Flags&CmdNeedsPower != 0 && !poweredOn {
		return ErrNeedsPower
	}
	if cmd.Flags&CmdNotInjected != 0 && injected {
		return ErrNotInjectable
	}
	return cmd.Handler(code)
}

// GetDictionary lists the registered ranges, one per line
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, c := range r.commands {
		if c.Min == c.Max {
			fmt.Fprintf(&b, "%-8d %s\n", c.Min, c.Name)
		} else {
			fmt.Fprintf(&b, "%d-%d %s\n", c.Min, c.Max, c.Name)
		}
	}
	return b.String()
}

// NormalizeCode strips the injected flag and folds the 7xxx and
// 7xxxxxx aliases onto the plain code
func NormalizeCode(raw uint32) (code uint32, injected bool) {
	if raw&InjectedFlag == 0 {
		return raw, false
	}
	code = raw &^ InjectedFlag
	switch {
	case code >= 7000 && code <= 7999:
		code -= 7000
	case code >= 7000000 && code <= 7999999:
		code -= 7000000
	}
	return code, true
}
