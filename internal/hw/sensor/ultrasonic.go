package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/MazeGo/internal/debug"
	"github.com/cjeanneret/MazeGo/internal/hw/gpio"
)

// Speed of sound in cm/s at ~20°C.
const speedOfSoundCMPerSec = 34300.0

// ErrEchoTimeout is returned when the ranger never starts its echo pulse.
var ErrEchoTimeout = errors.New("ultrasonic: no echo")

// UltrasonicConfig holds the pins of an HC-SR04 ranger.
type UltrasonicConfig struct {
	Name       string
	TriggerPin int
	EchoPin    int
	Timeout    time.Duration // 0 = 40ms
	MaxRangeCM float64       // reported when the echo never ends; 0 = 400
}

// Ultrasonic is an HC-SR04 ranger polled through the GPIO driver.
type Ultrasonic struct {
	gpio gpio.Driver
	cfg  UltrasonicConfig
	now  func() time.Time
}

func NewUltrasonic(g gpio.Driver, cfg UltrasonicConfig) (*Ultrasonic, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 40 * time.Millisecond
	}
	if cfg.MaxRangeCM <= 0 {
		cfg.MaxRangeCM = 400
	}
	if err := g.SetupPin(cfg.TriggerPin, gpio.Output); err != nil {
		return nil, fmt.Errorf("ultrasonic %s: %w", cfg.Name, err)
	}
	if err := g.SetupPin(cfg.EchoPin, gpio.Input); err != nil {
		return nil, fmt.Errorf("ultrasonic %s: %w", cfg.Name, err)
	}
	if err := g.WritePin(cfg.TriggerPin, gpio.Low); err != nil {
		return nil, fmt.Errorf("ultrasonic %s: %w", cfg.Name, err)
	}
	return &Ultrasonic{gpio: g, cfg: cfg, now: time.Now}, nil
}

// EchoToCM converts a round-trip echo duration to a one-way distance.
func EchoToCM(d time.Duration) float64 {
	return d.Seconds() * speedOfSoundCMPerSec / 2
}

// Read fires a 10µs trigger pulse and times the echo.
func (u *Ultrasonic) Read() (float64, error) {
	if err := u.gpio.WritePin(u.cfg.TriggerPin, gpio.High); err != nil {
		return 0, err
	}
	time.Sleep(10 * time.Microsecond)
	if err := u.gpio.WritePin(u.cfg.TriggerPin, gpio.Low); err != nil {
		return 0, err
	}

	deadline := u.now().Add(u.cfg.Timeout)
	if _, err := u.waitFor(gpio.High, deadline); err != nil {
		return 0, fmt.Errorf("ultrasonic %s: %w", u.cfg.Name, err)
	}
	start := u.now()
	if _, err := u.waitFor(gpio.Low, start.Add(u.cfg.Timeout)); err != nil {
		if errors.Is(err, ErrEchoTimeout) {
			// Echo held high: nothing in range.
			return u.cfg.MaxRangeCM, nil
		}
		return 0, fmt.Errorf("ultrasonic %s: %w", u.cfg.Name, err)
	}

	cm := EchoToCM(u.now().Sub(start))
	if cm > u.cfg.MaxRangeCM {
		cm = u.cfg.MaxRangeCM
	}
	debug.Trace("Ultrasonic %s: %.1f cm", u.cfg.Name, cm)
	return cm, nil
}

func (u *Ultrasonic) waitFor(level gpio.Level, deadline time.Time) (time.Time, error) {
	for {
		l, err := u.gpio.ReadPin(u.cfg.EchoPin)
		if err != nil {
			return time.Time{}, err
		}
		now := u.now()
		if l == level {
			return now, nil
		}
		if now.After(deadline) {
			return time.Time{}, ErrEchoTimeout
		}
	}
}
