// Package wheel drives the two independently speed-controlled wheels.
package wheel

import (
	"fmt"
	"math"
	"sync"

	"github.com/cjeanneret/MazeGo/internal/debug"
	"github.com/cjeanneret/MazeGo/internal/hw/gpio"
)

// Wheel accepts an angular velocity in degrees per second. Negative values
// spin the wheel backwards.
type Wheel interface {
	SetSpeed(dps float64) error
}

// Config holds the pins of one H-bridge channel (L298N style).
type Config struct {
	Name        string
	PWMPin      int     // enable pin, driven with hardware PWM
	ForwardPin  int     // IN1
	BackwardPin int     // IN2
	MaxDPS      float64 // wheel speed at 100% duty
	PWMFreqHz   int
}

// HBridge is a Wheel driven through an H-bridge: direction on two digital
// pins, magnitude as a PWM duty cycle proportional to |dps|/MaxDPS.
type HBridge struct {
	gpio gpio.Driver
	cfg  Config
}

// NewHBridge configures the pins and leaves the wheel stopped.
func NewHBridge(g gpio.Driver, cfg Config) (*HBridge, error) {
	if cfg.MaxDPS <= 0 {
		return nil, fmt.Errorf("wheel %s: max_dps must be > 0", cfg.Name)
	}
	if cfg.PWMFreqHz <= 0 {
		cfg.PWMFreqHz = 1000
	}
	for _, pin := range []int{cfg.ForwardPin, cfg.BackwardPin} {
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("wheel %s: setup pin %d: %w", cfg.Name, pin, err)
		}
	}
	if err := g.SetupPin(cfg.PWMPin, gpio.PWM); err != nil {
		return nil, fmt.Errorf("wheel %s: setup pwm pin %d: %w", cfg.Name, cfg.PWMPin, err)
	}

	h := &HBridge{gpio: g, cfg: cfg}
	if err := h.SetSpeed(0); err != nil {
		return nil, err
	}
	return h, nil
}

// Duty converts a wheel speed to a PWM duty cycle, saturating at MaxDPS.
func (h *HBridge) Duty(dps float64) float64 {
	return math.Min(math.Abs(dps)/h.cfg.MaxDPS, 1)
}

func (h *HBridge) SetSpeed(dps float64) error {
	fwd, back := gpio.Low, gpio.Low
	switch {
	case dps > 0:
		fwd = gpio.High
	case dps < 0:
		back = gpio.High
	}

	if err := h.gpio.WritePin(h.cfg.ForwardPin, fwd); err != nil {
		return fmt.Errorf("wheel %s: %w", h.cfg.Name, err)
	}
	if err := h.gpio.WritePin(h.cfg.BackwardPin, back); err != nil {
		return fmt.Errorf("wheel %s: %w", h.cfg.Name, err)
	}
	if err := h.gpio.SetPWM(h.cfg.PWMPin, h.cfg.PWMFreqHz, h.Duty(dps)); err != nil {
		return fmt.Errorf("wheel %s: %w", h.cfg.Name, err)
	}
	return nil
}

// Mock is a Wheel that only remembers the commanded speeds.
type Mock struct {
	Name string

	mu     sync.Mutex
	speeds []float64
}

func (m *Mock) SetSpeed(dps float64) error {
	debug.Trace("Wheel %s (mock): %.1f dps", m.Name, dps)
	m.mu.Lock()
	m.speeds = append(m.speeds, dps)
	m.mu.Unlock()
	return nil
}

// Speed returns the last commanded speed (0 if none).
func (m *Mock) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.speeds) == 0 {
		return 0
	}
	return m.speeds[len(m.speeds)-1]
}

// History returns every commanded speed in order.
func (m *Mock) History() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.speeds))
	copy(out, m.speeds)
	return out
}
