// Package navigation implements the right-wall-following control loop that
// explores the maze and produces the move log.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cjeanneret/MazeGo/internal/debug"
	"github.com/cjeanneret/MazeGo/internal/hw/sensor"
	"github.com/cjeanneret/MazeGo/internal/logic/motion"
	"github.com/cjeanneret/MazeGo/internal/logic/movelog"
)

// Driver is the differential drive used by the controller.
// *motion.Drive implements it.
type Driver interface {
	SetSpeeds(rightDPS, leftDPS float64) error
	Straight(dps float64) error
	Stop() error
	Hold(ctx context.Context, d time.Duration)
	TurnRight(ctx context.Context) error
	TurnLeft(ctx context.Context) error
	TurnRightFor(ctx context.Context, d time.Duration) error
}

// Sensors groups the inputs read every tick.
type Sensors struct {
	Front  sensor.Distance
	Right  sensor.Distance
	Magnet sensor.Magnetometer
	IR     sensor.IRPair
}

// RecordFunc observes the log. It is called with the index of a record
// each time one is appended or its distance is set.
type RecordFunc func(index int, rec movelog.Record)

// Controller runs the exploration loop.
type Controller struct {
	drive     Driver
	sensors   Sensors
	params    Params
	estimator DistanceEstimator
	sleep     motion.SleepFunc

	// OnRecord, if set, is called for every log update.
	OnRecord RecordFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithEstimator replaces the timed distance estimator.
func WithEstimator(e DistanceEstimator) Option {
	return func(c *Controller) { c.estimator = e }
}

// WithSleep replaces the tick sleep.
func WithSleep(fn motion.SleepFunc) Option {
	return func(c *Controller) { c.sleep = fn }
}

// NewController creates a controller over a drive and its sensors.
func NewController(drive Driver, sensors Sensors, params Params, opts ...Option) *Controller {
	c := &Controller{
		drive:     drive,
		sensors:   sensors,
		params:    params,
		estimator: DefaultEstimator(),
		sleep:     motion.ContextSleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sense reads all sensors once, in a fixed order.
func (c *Controller) Sense() (Reading, error) {
	var r Reading
	var err error

	if r.Front, err = c.sensors.Front.Read(); err != nil {
		return r, fmt.Errorf("front distance: %w", err)
	}
	if r.Right, err = c.sensors.Right.Read(); err != nil {
		return r, fmt.Errorf("right distance: %w", err)
	}
	field, err := c.sensors.Magnet.ReadField()
	if err != nil {
		return r, fmt.Errorf("magnetometer: %w", err)
	}
	r.Magnetic = field.Magnitude()
	ir1, ir2, err := c.sensors.IR.ReadPair()
	if err != nil {
		return r, fmt.Errorf("ir pair: %w", err)
	}
	r.IR = sensor.IRIntensity(ir1, ir2)
	return r, nil
}

// Run explores until ctx is cancelled and returns the finished log. A
// sensor or actuator failure also ends the run; the log is still closed
// and returned together with the error.
func (c *Controller) Run(ctx context.Context) (movelog.Log, error) {
	debug.Section("Navigation")
	s := NewState()
	c.notify(s.Log, 0)
	c.notify(s.Log, 1)

	var runErr error
	for ctx.Err() == nil {
		next, err := c.Step(ctx, s)
		s = next
		if err != nil {
			runErr = fmt.Errorf("tick %d: %w", s.Tick, err)
			debug.Error(runErr)
			break
		}
	}

	s = c.finish(s)
	if err := c.drive.Stop(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("stop: %w", err))
	}
	debug.Info("Run finished: %d records", len(s.Log))
	return s.Log, runErr
}

// Step reads the sensors, acts on one decision and waits one tick. Step
// takes ownership of s.Log.
func (c *Controller) Step(ctx context.Context, s State) (State, error) {
	s.Tick++
	r, err := c.Sense()
	if err != nil {
		return s, err
	}

	act := Decide(s, r, c.params)
	debug.Decision(s.Tick, act.String(), r.Front, r.Right)

	switch act {
	case ActMagneticHazard, ActIRHazard:
		s, err = c.hazard(ctx, s, act, r)
	case ActTurnLeft:
		s, err = c.turnLeft(ctx, s)
		s.JustTurned = r.Right >= c.params.NearWall
	case ActFollowWall:
		s, err = c.follow(s, r)
		s.JustTurned = r.Right >= c.params.NearWall
	case ActOpenCorner, ActBlockedCorner:
		s, err = c.corner(ctx, s, act)
	}
	if err != nil {
		return s, err
	}

	c.sleep(ctx, c.params.Tick)
	return s, nil
}

func (c *Controller) hazard(ctx context.Context, s State, act Action, r Reading) (State, error) {
	if err := c.drive.TurnRight(ctx); err != nil {
		return s, err
	}
	s.PID.Reset()
	s = c.closeLeg(s)
	s.Heading = s.Heading.Right()

	rec := movelog.Record{Code: movelog.Magnetic, Value: r.Magnetic}
	if act == ActIRHazard {
		rec = movelog.Record{Code: movelog.IR, Value: r.IR}
	}
	debug.Hazard(rec.Code.String(), rec.Value)
	s = c.appendRecord(s, rec)
	s = c.appendRecord(s, movelog.Record{Code: s.Heading.Code()})
	return s, nil
}

func (c *Controller) turnLeft(ctx context.Context, s State) (State, error) {
	if err := c.drive.TurnLeft(ctx); err != nil {
		return s, err
	}
	s.PID.Reset()
	s = c.closeLeg(s)
	s.Heading = s.Heading.Left()
	debug.Live("Turned left, heading %s", s.Heading)
	s = c.appendRecord(s, movelog.Record{Code: s.Heading.Code()})
	return s, nil
}

func (c *Controller) follow(s State, r Reading) (State, error) {
	rf, lf := c.params.Gains.Update(&s.PID, r.Right)
	debug.Trace("PID error=%.2f integral=%.3f factors=%.3f/%.3f", s.PID.PrevErr, s.PID.Integral, rf, lf)
	speed := c.params.SpeedDPS
	if err := c.drive.SetSpeeds(speed*rf, speed*lf); err != nil {
		return s, err
	}
	s.Leg += c.estimator.Tick()
	return s, nil
}

func (c *Controller) corner(ctx context.Context, s State, act Action) (State, error) {
	speed := c.params.SpeedDPS
	if act == ActOpenCorner {
		if err := c.drive.Straight(speed); err != nil {
			return s, err
		}
		c.drive.Hold(ctx, c.params.OpenCornerDrive)
		if err := c.drive.TurnRightFor(ctx, c.params.OpenCornerTurn); err != nil {
			return s, err
		}
		s.JustTurned = true
	} else if err := c.drive.TurnRight(ctx); err != nil {
		return s, err
	}
	s.PID.Reset()

	s.Leg += c.estimator.Corner()
	s = c.closeLeg(s)
	s.Heading = s.Heading.Right()
	debug.Live("%s, heading %s", act, s.Heading)
	s = c.appendRecord(s, movelog.Record{Code: s.Heading.Code()})

	if err := c.drive.Straight(speed); err != nil {
		return s, err
	}
	c.drive.Hold(ctx, c.params.Settle)
	s.Leg += c.estimator.Settle()
	return s, nil
}

// closeLeg stores the whole units of the current leg into the pending
// directional record.
func (c *Controller) closeLeg(s State) State {
	last := len(s.Log) - 1
	s.Log[last].Value = math.Floor(s.Leg)
	s.Leg = 0
	c.notify(s.Log, last)
	return s
}

func (c *Controller) appendRecord(s State, rec movelog.Record) State {
	s.Log = append(s.Log, rec)
	c.notify(s.Log, len(s.Log)-1)
	return s
}

func (c *Controller) finish(s State) State {
	s = c.closeLeg(s)
	return c.appendRecord(s, movelog.Record{Code: movelog.End})
}

func (c *Controller) notify(l movelog.Log, i int) {
	debug.Record(i, l[i].Code.String(), l[i].Value)
	if c.OnRecord != nil {
		c.OnRecord(i, l[i])
	}
}
