package navigation

import "time"

// PIDState is the wall-follower control history. It is zeroed after every
// turn or hazard.
type PIDState struct {
	PrevErr  float64
	Integral float64
}

// Reset clears the control history.
func (s *PIDState) Reset() {
	s.PrevErr = 0
	s.Integral = 0
}

// Gains configures the right-wall follower.
type Gains struct {
	KP, KD, KI float64
	Period     time.Duration // control period used by the D and I terms
	Target     float64       // desired distance to the right wall (cm)
	Stable     float64       // beyond this distance the far error applies (cm)
	FarError   float64       // error used when the wall is out of the stable band
}

// DefaultGains returns the gains tuned on the competition robot.
func DefaultGains() Gains {
	return Gains{
		KP:       3,
		KD:       2,
		KI:       1.5,
		Period:   100 * time.Millisecond,
		Target:   6,
		Stable:   11,
		FarError: -6,
	}
}

// TrackingError returns the control error for a right wall distance.
// A positive error means the robot drifted toward the wall.
func (g Gains) TrackingError(rightDist float64) float64 {
	if rightDist < g.Stable {
		return g.Target - rightDist
	}
	return g.FarError
}

// Update runs one PID step and returns the right and left wheel speed
// factors. The factors always sum to 2 so the mean forward speed is kept.
func (g Gains) Update(s *PIDState, rightDist float64) (right, left float64) {
	e := g.TrackingError(rightDist)
	period := g.Period.Seconds()

	p := g.KP * e
	var d float64
	if period > 0 {
		d = g.KD * (e - s.PrevErr) / period
	}
	s.Integral += g.KI * (e - s.PrevErr) * period / 2
	s.PrevErr = e

	right = 1 + (p+d+s.Integral)/100
	left = 2 - right
	return right, left
}
