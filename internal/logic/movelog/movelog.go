// Package movelog defines the move log produced by the navigation loop
// and consumed by the map builder.
package movelog

import (
	"errors"
	"fmt"
	"math"
)

// Code identifies the kind of a move record.
type Code int

const (
	North Code = iota
	East
	South
	West
	End
	Magnetic
	IR
	Start
)

// Valid returns true if c is one of the known record codes.
func (c Code) Valid() bool {
	return c >= North && c <= Start
}

// Directional returns true for the four cardinal leg codes.
func (c Code) Directional() bool {
	return c >= North && c <= West
}

// Hazard returns true for magnetic and IR hazard codes.
func (c Code) Hazard() bool {
	return c == Magnetic || c == IR
}

func (c Code) String() string {
	switch c {
	case North:
		return "NORTH"
	case East:
		return "EAST"
	case South:
		return "SOUTH"
	case West:
		return "WEST"
	case End:
		return "END"
	case Magnetic:
		return "MAGNETIC"
	case IR:
		return "IR"
	case Start:
		return "START"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Record is a single (code, value) entry. For directional records Value is
// the leg length in grid units; for hazards it is the raw sensor value.
type Record struct {
	Code  Code
	Value float64
}

func (r Record) String() string {
	return fmt.Sprintf("[%s %g]", r.Code, r.Value)
}

// Log is an ordered move log.
type Log []Record

// Clone returns an independent copy of l.
func (l Log) Clone() Log {
	if l == nil {
		return nil
	}
	out := make(Log, len(l))
	copy(out, l)
	return out
}

// Validation errors.
var (
	ErrEmpty            = errors.New("move log is empty")
	ErrMissingStart     = errors.New("move log does not begin with START")
	ErrMissingEnd       = errors.New("move log does not end with END")
	ErrMisplacedMarker  = errors.New("START/END marker in the middle of the log")
	ErrUnknownCode      = errors.New("unknown record code")
	ErrNegativeDistance = errors.New("directional record has a negative or non-finite distance")
	ErrDanglingHazard   = errors.New("hazard record is not followed by a directional or hazard record")
)

// Validate checks that l satisfies the invariants of a log produced by the
// navigation loop. Two consecutive hazards are accepted.
func Validate(l Log) error {
	if len(l) == 0 {
		return ErrEmpty
	}
	if l[0].Code != Start {
		return ErrMissingStart
	}
	last := len(l) - 1
	if l[last].Code != End {
		return ErrMissingEnd
	}

	for i, rec := range l {
		if !rec.Code.Valid() {
			return fmt.Errorf("record %d: %w: %d", i, ErrUnknownCode, int(rec.Code))
		}
		switch {
		case rec.Code == Start && i != 0, rec.Code == End && i != last:
			return fmt.Errorf("record %d: %w", i, ErrMisplacedMarker)
		case rec.Code.Directional():
			if rec.Value < 0 || math.IsNaN(rec.Value) || math.IsInf(rec.Value, 0) {
				return fmt.Errorf("record %d: %w: %g", i, ErrNegativeDistance, rec.Value)
			}
		case rec.Code.Hazard():
			next := l[i+1].Code
			if !next.Directional() && !next.Hazard() {
				return fmt.Errorf("record %d: %w (followed by %s)", i, ErrDanglingHazard, next)
			}
		}
	}
	return nil
}
