package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cjeanneret/MazeGo/internal/config"
	"github.com/cjeanneret/MazeGo/internal/debug"
	"github.com/cjeanneret/MazeGo/internal/hw/display"
	"github.com/cjeanneret/MazeGo/internal/hw/gpio"
	"github.com/cjeanneret/MazeGo/internal/hw/sensor"
	"github.com/cjeanneret/MazeGo/internal/hw/stepper"
	"github.com/cjeanneret/MazeGo/internal/hw/wheel"
	"github.com/cjeanneret/MazeGo/internal/logic/motion"
	"github.com/cjeanneret/MazeGo/internal/logic/navigation"
)

// Mock rig readings: a wall at the follow distance on the right, open
// road ahead and no hazards.
const (
	mockRightCM = 6
	mockFrontCM = 100
)

// hardware owns every device of the robot.
type hardware struct {
	gpio    gpio.Driver
	drive   *motion.Drive
	sensors navigation.Sensors
	label   display.Label
	hub     *sensor.Hub
}

// newHardware builds the robot from cfg. With mock_gpio the pins go to the
// mock driver and the rangers and sensor hub are replaced by static
// readings.
func newHardware(cfg *config.Config) (*hardware, error) {
	g, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return nil, fmt.Errorf("gpio: %w", err)
	}
	hw := &hardware{gpio: g}

	right, err := wheel.NewHBridge(g, wheelConfig("right", cfg.RightWheel))
	if err != nil {
		hw.Close()
		return nil, err
	}
	left, err := wheel.NewHBridge(g, wheelConfig("left", cfg.LeftWheel))
	if err != nil {
		hw.Close()
		return nil, err
	}
	hw.drive = motion.NewDrive(right, left, motion.Config{
		TurnSpeedDPS: cfg.Navigation.TurnSpeedDPS,
		QuarterTurn:  cfg.QuarterTurn(),
	}, nil)

	motor := stepper.NewStepper(g, stepper.Config{
		StepPin:       cfg.Carousel.StepPin,
		DirPin:        cfg.Carousel.DirPin,
		EnablePin:     cfg.Carousel.EnablePin,
		StepsPerRev:   cfg.Carousel.StepsPerRev,
		Microstepping: cfg.Carousel.Microstepping,
		StepDelay:     cfg.Carousel.StepDelay(),
	})
	hw.label = display.NewCarousel(motor, cfg.Carousel.DegreesPerLabel)

	if cfg.Defaults.MockGPIO {
		env := sensor.NewStaticEnvironment(sensor.Field{}, 0, 0)
		hw.sensors = navigation.Sensors{
			Front:  sensor.NewStaticDistance(mockFrontCM),
			Right:  sensor.NewStaticDistance(mockRightCM),
			Magnet: env,
			IR:     env,
		}
		return hw, nil
	}

	front, err := sensor.NewUltrasonic(g, rangerConfig("front", cfg.FrontSensor))
	if err != nil {
		hw.Close()
		return nil, err
	}
	rightRanger, err := sensor.NewUltrasonic(g, rangerConfig("right", cfg.RightSensor))
	if err != nil {
		hw.Close()
		return nil, err
	}
	hub, err := sensor.OpenHub(cfg.SensorHub.Port, cfg.SensorHub.BaudRate, cfg.SensorHub.ReadTimeout())
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("sensor hub: %w", err)
	}
	hw.hub = hub
	hw.sensors = navigation.Sensors{Front: front, Right: rightRanger, Magnet: hub, IR: hub}
	return hw, nil
}

func wheelConfig(name string, w config.WheelConfig) wheel.Config {
	return wheel.Config{
		Name:        name,
		PWMPin:      w.PWMPin,
		ForwardPin:  w.ForwardPin,
		BackwardPin: w.BackwardPin,
		MaxDPS:      w.MaxDPS,
		PWMFreqHz:   w.PWMFreqHz,
	}
}

func rangerConfig(name string, u config.UltrasonicConfig) sensor.UltrasonicConfig {
	return sensor.UltrasonicConfig{
		Name:       name,
		TriggerPin: u.TriggerPin,
		EchoPin:    u.EchoPin,
		Timeout:    u.EchoTimeout(),
		MaxRangeCM: u.MaxRangeCM,
	}
}

// Close stops the wheels and releases the serial line and the GPIO.
func (h *hardware) Close() error {
	var errs []error
	if h.drive != nil {
		errs = append(errs, h.drive.Stop())
	}
	if h.hub != nil {
		errs = append(errs, h.hub.Close())
	}
	if h.gpio != nil {
		errs = append(errs, h.gpio.Close())
	}
	return errors.Join(errs...)
}

// Sampling parameters of the -sample calibration mode.
const (
	sampleCount    = 20
	sampleInterval = 100 * time.Millisecond
)

// runSample averages readings of one sensor and prints the statistics.
func runSample(ctx context.Context, hw *hardware, which string, w io.Writer) error {
	var (
		stats sensor.Stats
		err   error
	)
	switch strings.ToLower(which) {
	case "mag", "magnetic":
		stats, err = sensor.SampleMagnitude(ctx, hw.sensors.Magnet, sampleCount, sampleInterval)
	case "ir":
		stats, err = sensor.SampleIR(ctx, hw.sensors.IR, sampleCount, sampleInterval)
	case "front":
		stats, err = sensor.SampleDistance(ctx, hw.sensors.Front, sampleCount, sampleInterval)
	case "right":
		stats, err = sensor.SampleDistance(ctx, hw.sensors.Right, sampleCount, sampleInterval)
	default:
		return fmt.Errorf("unknown sensor %q (want mag, ir, front or right)", which)
	}
	if err != nil {
		return err
	}
	debug.Info("Sampled %s: %d readings", which, stats.N)
	_, err = fmt.Fprintf(w, "%s: mean %.3f  stddev %.3f  min %.3f  max %.3f  (n=%d)\n",
		which, stats.Mean, stats.StdDev, stats.Min, stats.Max, stats.N)
	return err
}
