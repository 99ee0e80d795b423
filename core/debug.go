package core

import (
	"fmt"
	"time"
)

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures a protocol or sequencer event for post-mortem analysis
type TraceEvent struct {
	EventType uint8     // Event type code
	At        time.Time // Loop time at event
	Value1    uint32    // Context-dependent value
	Value2    uint32    // Context-dependent value
}

// Event type codes
const (
	EvtRequest     = 1  // Poll sent (v1=id, v2=mask)
	EvtResponse    = 2  // Poll answered (v1=id, v2=latency ms)
	EvtTimeout     = 3  // Poll timed out (v1=id, v2=failures)
	EvtDiscovered  = 4  // Peer address latched
	EvtNotify      = 5  // Notification accepted (v1=subtype)
	EvtStale       = 6  // Notification dropped by the gate (v1=subtype, v2=seq)
	EvtPeerLost    = 7  // Liveness expired
	EvtPhase       = 8  // Sequencer phase change (v1=from, v2=to)
	EvtCommand     = 9  // Command executed (v1=code, v2=injected)
	EvtPush        = 10 // Combined state sent (v1=p1, v2=speed)
	EvtDataTimeout = 11 // Data stream expired
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	traceRing     [TraceRingSize]TraceEvent
	traceRingHead uint8
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// Debugf formats only when debug output is enabled
func Debugf(format string, args ...any) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(fmt.Sprintf(format, args...))
	}
}

// RecordEvent captures an event in the trace ring
func RecordEvent(eventType uint8, at time.Time, value1, value2 uint32) {
	idx := traceRingHead
	traceRing[idx] = TraceEvent{
		EventType: eventType,
		At:        at,
		Value1:    value1,
		Value2:    value2,
	}
	traceRingHead = (idx + 1) % TraceRingSize
}

// Events returns the recorded events, oldest first
func Events() []TraceEvent {
	out := make([]TraceEvent, 0, TraceRingSize)
	start := traceRingHead
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := traceRing[(start+i)%TraceRingSize]
		if evt.EventType == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// DumpEvents outputs the trace ring regardless of the debug switch
func DumpEvents() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TRACE] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln(fmt.Sprintf("[TRACE] %s %-12s v1=%d v2=%d",
			evt.At.Format("15:04:05.000"), EventName(evt.EventType), evt.Value1, evt.Value2))
	}
	debugPrintln("[TRACE] === End Dump ===")
}

// ClearEvents clears the trace ring
func ClearEvents() {
	for i := range traceRing {
		traceRing[i] = TraceEvent{}
	}
	traceRingHead = 0
}

// EventName returns the trace name of an event type
func EventName(t uint8) string {
	switch t {
	case EvtRequest:
		return "REQUEST"
	case EvtResponse:
		return "RESPONSE"
	case EvtTimeout:
		return "TIMEOUT"
	case EvtDiscovered:
		return "DISCOVERED"
	case EvtNotify:
		return "NOTIFY"
	case EvtStale:
		return "STALE"
	case EvtPeerLost:
		return "PEER_LOST"
	case EvtPhase:
		return "PHASE"
	case EvtCommand:
		return "COMMAND"
	case EvtPush:
		return "PUSH"
	case EvtDataTimeout:
		return "DATA_TO"
	}
	return "UNKNOWN"
}
