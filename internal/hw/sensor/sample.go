package sensor

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarises repeated readings of one sensor.
type Stats struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

func summarize(xs []float64) Stats {
	mean, std := stat.MeanStdDev(xs, nil)
	return Stats{
		N:      len(xs),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
	}
}

func sample(ctx context.Context, n int, interval time.Duration, read func() (float64, error)) (Stats, error) {
	if n <= 0 {
		return Stats{}, fmt.Errorf("sample count must be > 0, got %d", n)
	}
	xs := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v, err := read()
		if err != nil {
			return Stats{}, err
		}
		xs = append(xs, v)
		if i == n-1 {
			break
		}
		select {
		case <-ctx.Done():
			return Stats{}, ctx.Err()
		case <-time.After(interval):
		}
	}
	return summarize(xs), nil
}

// SampleMagnitude reads the magnetometer n times, interval apart, and
// summarises the field magnitude. Used to pick the hazard threshold.
func SampleMagnitude(ctx context.Context, m Magnetometer, n int, interval time.Duration) (Stats, error) {
	return sample(ctx, n, interval, func() (float64, error) {
		f, err := m.ReadField()
		if err != nil {
			return 0, err
		}
		return f.Magnitude(), nil
	})
}

// SampleIR reads the IR pair n times and summarises the combined intensity.
func SampleIR(ctx context.Context, p IRPair, n int, interval time.Duration) (Stats, error) {
	return sample(ctx, n, interval, func() (float64, error) {
		a, b, err := p.ReadPair()
		if err != nil {
			return 0, err
		}
		return IRIntensity(a, b), nil
	})
}

// SampleDistance reads a range sensor n times.
func SampleDistance(ctx context.Context, d Distance, n int, interval time.Duration) (Stats, error) {
	return sample(ctx, n, interval, d.Read)
}
