package core

import "strconv"

// Cue identifies a sound the audio collaborator can play
type Cue uint16

const (
	CueNone Cue = iota
	CuePowerOn
	CuePowerOff
	CueBrakeOn
	CueBrakeOff
	CueThrottleUp
	CueClick
	CueTravelStart       // Speed crossed the P1 threshold during count-up
	CueTravelStartNoLead // Sequence started above the threshold, or immediate mode
	CueTimeTravel        // Standalone peak ended
	CueAlarm
	CueReady
	CueBad
	CueVolume
	CuePowerMasterOn
	CuePowerMasterOff
	CueEasterEgg
	CueReentry1
	CueReentry2
	CueReentry3
	CueBrakeWarn1
	CueBrakeWarn2
	CueBrakeWarn3
	CueBrakeWarn4
	CueKey1     // CueKey1+n-1 is key n
	CueKeyLong1 = CueKey1 + 9
	cueEnd      = CueKeyLong1 + 9
)

// ReentryVariants is the number of reentry warning cues
const ReentryVariants = 3

// BrakeWarnVariants is the number of brake warning cues
const BrakeWarnVariants = 4

var cueNames = [...]string{
	CueNone:              "none",
	CuePowerOn:           "poweron",
	CuePowerOff:          "poweroff",
	CueBrakeOn:           "brakeon",
	CueBrakeOff:          "brakeoff",
	CueThrottleUp:        "throttleup",
	CueClick:             "click",
	CueTravelStart:       "travelstart",
	CueTravelStartNoLead: "travelstart2",
	CueTimeTravel:        "timetravel",
	CueAlarm:             "alarm",
	CueReady:             "rdy",
	CueBad:               "bad",
	CueVolume:            "volchg",
	CuePowerMasterOn:     "pmon",
	CuePowerMasterOff:    "pmoff",
	CueEasterEgg:         "tmd",
	CueReentry1:          "reentry1",
	CueReentry2:          "reentry2",
	CueReentry3:          "reentry3",
	CueBrakeWarn1:        "rbrake1",
	CueBrakeWarn2:        "rbrake2",
	CueBrakeWarn3:        "rbrake3",
	CueBrakeWarn4:        "rbrake4",
}

// KeyCue returns the cue for key n (1-9), long variant if long is set
func KeyCue(n int, long bool) Cue {
	if n < 1 || n > 9 {
		return CueNone
	}
	if long {
		return CueKeyLong1 + Cue(n-1)
	}
	return CueKey1 + Cue(n-1)
}

// String returns the cue's file stem
func (c Cue) String() string {
	switch {
	case c >= CueKeyLong1 && c < cueEnd:
		return "key" + strconv.Itoa(int(c-CueKeyLong1)+1) + "l"
	case c >= CueKey1 && c < CueKeyLong1:
		return "key" + strconv.Itoa(int(c-CueKey1)+1)
	case int(c) < len(cueNames) && cueNames[c] != "":
		return cueNames[c]
	}
	return "cue" + strconv.Itoa(int(c))
}

// VariantPicker cycles through n cue variants: in order on the first
// pass, then at random but never the same one twice in a row
type VariantPicker struct {
	n     int
	count int
	last  int
	rnd   func(n int) int
}

// NewVariantPicker creates a picker over n variants using rnd for the random phase
func NewVariantPicker(n int, rnd func(n int) int) *VariantPicker {
	return &VariantPicker{n: n, last: -1, rnd: rnd}
}

// Next returns the next variant index in 0..n-1
func (p *VariantPicker) Next() int {
	if p.n <= 1 {
		return 0
	}
	if p.count < p.n {
		p.last = p.count
		p.count++
		return p.last
	}
	v := p.rnd(p.n - 1)
	if v >= p.last {
		v++
	}
	p.last = v
	return v
}
