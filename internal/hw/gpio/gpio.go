package gpio

import (
	"fmt"

	"github.com/cjeanneret/MazeGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// PinMode indicates how a GPIO pin is used.
type PinMode int

const (
	Input PinMode = iota
	Output
	PWM
)

// Driver defines the abstract interface for controlling GPIOs.
// Wheels, ultrasonic rangers and the label stepper are all built on it,
// so the whole robot runs against MockDriver on a development PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// SetPWM drives a hardware PWM pin at freqHz with a duty cycle in [0,1].
	SetPWM(pin int, freqHz int, duty float64) error
	Close() error
}

// ValidateDuty rejects duty cycles outside [0,1].
func ValidateDuty(duty float64) error {
	if duty < 0 || duty > 1 || duty != duty {
		return fmt.Errorf("duty cycle must be within [0,1], got %g", duty)
	}
	return nil
}

// MockDriver logs every action and keeps the last written level and
// duty cycle per pin. Used for development on PC or testing.
type MockDriver struct {
	levels map[int]Level
	duties map[int]float64
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return Low, nil
}

func (m *MockDriver) SetPWM(pin int, freqHz int, duty float64) error {
	debug.GPIO("SetPWM", pin, duty)
	if err := ValidateDuty(duty); err != nil {
		return err
	}
	if m.duties == nil {
		m.duties = make(map[int]float64)
	}
	m.duties[pin] = duty
	return nil
}

// LastLevel returns the last level written to pin (Low if never written).
func (m *MockDriver) LastLevel(pin int) Level {
	return m.levels[pin]
}

// LastDuty returns the last duty cycle set on pin (0 if never set).
func (m *MockDriver) LastDuty(pin int) float64 {
	return m.duties[pin]
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
