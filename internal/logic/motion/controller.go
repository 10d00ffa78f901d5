package motion

import (
	"context"
	"time"

	"github.com/cjeanneret/MazeGo/internal/debug"
	"github.com/cjeanneret/MazeGo/internal/hw/wheel"
)

// SleepFunc blocks for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration)

// ContextSleep is the default SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Config holds the open-loop turn calibration.
type Config struct {
	TurnSpeedDPS float64       // wheel speed while turning in place
	QuarterTurn  time.Duration // time for a 90° turn at TurnSpeedDPS
}

// Drive orchestrates the two wheels of a differential drive robot.
// It is the layer between the navigation logic and the wheel actuators.
// All turns are open loop and time based.
type Drive struct {
	right wheel.Wheel
	left  wheel.Wheel
	cfg   Config
	sleep SleepFunc
}

// NewDrive creates a drive over the right and left wheels. A nil sleep
// uses ContextSleep.
func NewDrive(right, left wheel.Wheel, cfg Config, sleep SleepFunc) *Drive {
	if sleep == nil {
		sleep = ContextSleep
	}
	return &Drive{
		right: right,
		left:  left,
		cfg:   cfg,
		sleep: sleep,
	}
}

// SetSpeeds commands both wheels independently.
func (d *Drive) SetSpeeds(rightDPS, leftDPS float64) error {
	if err := d.right.SetSpeed(rightDPS); err != nil {
		return err
	}
	return d.left.SetSpeed(leftDPS)
}

// Straight drives both wheels at the same speed (open loop).
func (d *Drive) Straight(dps float64) error {
	return d.SetSpeeds(dps, dps)
}

// Stop halts both wheels.
func (d *Drive) Stop() error {
	return d.SetSpeeds(0, 0)
}

// Hold keeps the current wheel commands for duration.
func (d *Drive) Hold(ctx context.Context, duration time.Duration) {
	d.sleep(ctx, duration)
}

// spin stops, runs the wheels in opposite directions for duration, then
// stops again. clockwise = right wheel reverse, left wheel forward.
// The final stop is issued even when ctx is cancelled mid-turn.
func (d *Drive) spin(ctx context.Context, clockwise bool, duration time.Duration) error {
	if err := d.Stop(); err != nil {
		return err
	}
	speed := d.cfg.TurnSpeedDPS
	if clockwise {
		if err := d.SetSpeeds(-speed, speed); err != nil {
			return err
		}
	} else {
		if err := d.SetSpeeds(speed, -speed); err != nil {
			return err
		}
	}
	d.sleep(ctx, duration)
	return d.Stop()
}

// TurnRight performs a calibrated quarter turn clockwise.
func (d *Drive) TurnRight(ctx context.Context) error {
	return d.TurnClockwise(ctx, 90)
}

// TurnLeft performs a calibrated quarter turn counter-clockwise.
func (d *Drive) TurnLeft(ctx context.Context) error {
	return d.TurnClockwise(ctx, -90)
}

// TurnRightFor turns clockwise for an explicit duration.
func (d *Drive) TurnRightFor(ctx context.Context, duration time.Duration) error {
	debug.Turn("right (timed)", duration)
	return d.spin(ctx, true, duration)
}

// TurnDuration scales the quarter turn time linearly by angle/90.
func (d *Drive) TurnDuration(angleDeg float64) time.Duration {
	return time.Duration(angleDeg / 90 * float64(d.cfg.QuarterTurn))
}

// TurnClockwise turns by an arbitrary angle; negative angles turn
// counter-clockwise.
func (d *Drive) TurnClockwise(ctx context.Context, angleDeg float64) error {
	if angleDeg < 0 {
		dur := d.TurnDuration(-angleDeg)
		debug.Turn("counter-clockwise", dur)
		return d.spin(ctx, false, dur)
	}
	dur := d.TurnDuration(angleDeg)
	debug.Turn("clockwise", dur)
	return d.spin(ctx, true, dur)
}
