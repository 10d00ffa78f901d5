package navigation

// DistanceEstimator supplies the leg increments for each kind of motion.
type DistanceEstimator interface {
	Tick() float64   // one closed-loop wall-following tick
	Corner() float64 // a completed corner
	Settle() float64 // the straight run after a corner
}

// TimedEstimator estimates distance from elapsed time at a known speed.
type TimedEstimator struct {
	TickIncrement   float64
	CornerIncrement float64
	SettleIncrement float64
}

// DefaultEstimator returns the increments calibrated at 180 dps.
func DefaultEstimator() TimedEstimator {
	return TimedEstimator{
		TickIncrement:   0.25641,
		CornerIncrement: 4.10256,
		SettleIncrement: 1.28205,
	}
}

func (e TimedEstimator) Tick() float64   { return e.TickIncrement }
func (e TimedEstimator) Corner() float64 { return e.CornerIncrement }
func (e TimedEstimator) Settle() float64 { return e.SettleIncrement }
