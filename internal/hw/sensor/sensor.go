// Package sensor reads the robot's range, magnetic and infrared sensors.
package sensor

import (
	"gonum.org/v1/gonum/floats"
)

// Distance is a range sensor reporting centimetres.
type Distance interface {
	Read() (float64, error)
}

// Field is a raw 3-axis magnetometer reading in µT.
type Field struct {
	X, Y, Z float64
}

// Magnitude returns the Euclidean norm of the field.
func (f Field) Magnitude() float64 {
	return floats.Norm([]float64{f.X, f.Y, f.Z}, 2)
}

// Magnetometer reads the magnetic field.
type Magnetometer interface {
	ReadField() (Field, error)
}

// IRPair reads the two infrared sensors.
type IRPair interface {
	ReadPair() (float64, float64, error)
}

// IRIntensity combines an IR pair into one intensity value.
func IRIntensity(a, b float64) float64 {
	return (a + b) / 2
}
