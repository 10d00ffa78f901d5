package navigation

import (
	"time"

	"github.com/cjeanneret/MazeGo/internal/logic/movelog"
)

// Reading is the sensor snapshot a single tick acts on.
type Reading struct {
	Front    float64 // cm
	Right    float64 // cm
	Magnetic float64 // field magnitude (µT)
	IR       float64 // mean IR intensity
}

// Action is the outcome of one decision.
type Action int

const (
	ActFollowWall Action = iota
	ActTurnLeft
	ActMagneticHazard
	ActIRHazard
	ActOpenCorner
	ActBlockedCorner
)

func (a Action) String() string {
	switch a {
	case ActFollowWall:
		return "follow-wall"
	case ActTurnLeft:
		return "turn-left"
	case ActMagneticHazard:
		return "magnetic-hazard"
	case ActIRHazard:
		return "ir-hazard"
	case ActOpenCorner:
		return "open-corner"
	case ActBlockedCorner:
		return "blocked-corner"
	default:
		return "unknown"
	}
}

// Params are the navigation thresholds and timings.
type Params struct {
	SpeedDPS          float64
	Tick              time.Duration
	NearWall          float64 // right distance below which the wall is followed (cm)
	FrontClearance    float64 // front distance below which the way is blocked (cm)
	MagneticThreshold float64
	IRThreshold       float64
	OpenCornerDrive   time.Duration
	OpenCornerTurn    time.Duration
	Settle            time.Duration
	Gains             Gains
}

// DefaultParams returns the parameters of the competition robot.
func DefaultParams() Params {
	return Params{
		SpeedDPS:          180,
		Tick:              100 * time.Millisecond,
		NearWall:          20,
		FrontClearance:    15,
		MagneticThreshold: 100,
		IRThreshold:       9,
		OpenCornerDrive:   1400 * time.Millisecond,
		OpenCornerTurn:    1200 * time.Millisecond,
		Settle:            500 * time.Millisecond,
		Gains:             DefaultGains(),
	}
}

// State is everything the control loop carries between ticks.
type State struct {
	Heading    Heading
	Leg        float64 // distance accrued on the current leg
	JustTurned bool
	PID        PIDState
	Log        movelog.Log
	Tick       int
}

// NewState returns the state at the maze entrance: facing north with an
// open north leg.
func NewState() State {
	return State{
		Heading: HeadingNorth,
		Log: movelog.Log{
			{Code: movelog.Start},
			{Code: movelog.North},
		},
	}
}

// Decide picks the action for a reading. Hazards win over everything and
// magnetic is checked before IR.
func Decide(s State, r Reading, p Params) Action {
	switch {
	case r.Magnetic > p.MagneticThreshold:
		return ActMagneticHazard
	case r.IR > p.IRThreshold:
		return ActIRHazard
	case r.Right < p.NearWall || s.JustTurned:
		if r.Front < p.FrontClearance {
			return ActTurnLeft
		}
		return ActFollowWall
	case r.Front > p.FrontClearance:
		return ActOpenCorner
	default:
		return ActBlockedCorner
	}
}
