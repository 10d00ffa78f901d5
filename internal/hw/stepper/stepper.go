package stepper

import (
	"context"
	"math"
	"time"

	"github.com/cjeanneret/MazeGo/internal/debug"
	"github.com/cjeanneret/MazeGo/internal/hw/gpio"
)

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	StepPin       int
	DirPin        int
	EnablePin     int // A4988 ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	StepsPerRev   int
	Microstepping int
	StepDelay     time.Duration // delay per half-cycle of STEP pulse. Total step = 2*StepDelay.
}

// Stepper drives the label carousel motor through an A4988 driver and
// keeps track of its position in microsteps since power-up.
type Stepper struct {
	gpio     gpio.Driver
	cfg      Config
	delay    time.Duration
	position int
}

// NewStepper creates a new stepper motor controller.
// cfg.StepDelay: if 0, defaults to 1ms.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}
	if cfg.Microstepping <= 0 {
		cfg.Microstepping = 1
	}

	s := &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
	}

	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low)
	}

	return s
}

// StepsPerDegree returns the microsteps needed for one degree of rotation.
func (s *Stepper) StepsPerDegree() float64 {
	return float64(s.cfg.StepsPerRev*s.cfg.Microstepping) / 360.0
}

// StepsForAngle converts an angle in degrees to a signed microstep count.
func (s *Stepper) StepsForAngle(deg float64) int {
	return int(math.Round(deg * s.StepsPerDegree()))
}

// Position returns the current position in microsteps.
func (s *Stepper) Position() int {
	return s.position
}

// MoveSteps moves the motor by a number of steps (positive = clockwise).
// It stops between pulses when ctx is cancelled.
func (s *Stepper) MoveSteps(ctx context.Context, steps int) error {
	if steps == 0 {
		return nil
	}

	dirLevel, sign := gpio.High, 1
	if steps < 0 {
		dirLevel, sign = gpio.Low, -1
		steps = -steps
	}

	debug.Printf("Stepper: moving %d steps (dir %v) on pin %d", steps, dirLevel, s.cfg.StepPin)

	if err := s.gpio.WritePin(s.cfg.DirPin, dirLevel); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.stepPulse(); err != nil {
			return err
		}
		s.position += sign
	}
	return nil
}

// MoveTo rotates to an absolute angle relative to the power-up position.
func (s *Stepper) MoveTo(ctx context.Context, deg float64) error {
	return s.MoveSteps(ctx, s.StepsForAngle(deg)-s.position)
}

func (s *Stepper) stepPulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(s.delay)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(s.delay)
	return nil
}

// Enable turns on the motor driver (A4988 ENABLE=LOW). The carousel holds position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH) once the label is shown.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
