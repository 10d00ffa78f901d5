package navigation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/MazeGo/internal/hw/sensor"
	"github.com/cjeanneret/MazeGo/internal/logic/movelog"
)

// recordingDriver logs every drive command.
type recordingDriver struct {
	calls   []string
	failOn  string
	stopped int
}

func (d *recordingDriver) do(call string) error {
	d.calls = append(d.calls, call)
	if d.failOn != "" && d.failOn == call {
		return errors.New("motor fault")
	}
	return nil
}

func (d *recordingDriver) SetSpeeds(r, l float64) error {
	return d.do(fmt.Sprintf("speeds %.3f %.3f", r, l))
}
func (d *recordingDriver) Straight(dps float64) error { return d.do(fmt.Sprintf("straight %g", dps)) }
func (d *recordingDriver) Stop() error {
	d.stopped++
	return d.do("stop")
}
func (d *recordingDriver) Hold(_ context.Context, dur time.Duration) {
	d.calls = append(d.calls, "hold "+dur.String())
}
func (d *recordingDriver) TurnRight(context.Context) error { return d.do("right") }
func (d *recordingDriver) TurnLeft(context.Context) error  { return d.do("left") }
func (d *recordingDriver) TurnRightFor(_ context.Context, dur time.Duration) error {
	return d.do("right " + dur.String())
}

type rig struct {
	drive  *recordingDriver
	front  *sensor.Static
	right  *sensor.Static
	env    *sensor.Static
	ctrl   *Controller
	ticks  int
	cancel context.CancelFunc
	limit  int
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		drive: &recordingDriver{},
		front: sensor.NewStaticDistance(100),
		right: sensor.NewStaticDistance(6),
		env:   sensor.NewStaticEnvironment(sensor.Field{}, 0, 0),
	}
	r.ctrl = NewController(r.drive, Sensors{
		Front:  r.front,
		Right:  r.right,
		Magnet: r.env,
		IR:     r.env,
	}, DefaultParams(), WithSleep(func(ctx context.Context, d time.Duration) {
		r.ticks++
		if r.cancel != nil && r.ticks >= r.limit {
			r.cancel()
		}
	}))
	return r
}

func (r *rig) set(front, right float64) {
	r.front.Set(front)
	r.right.Set(right)
}

func TestHeading_Wraparound(t *testing.T) {
	h := HeadingNorth
	var rights []Heading
	for i := 0; i < 5; i++ {
		h = h.Right()
		rights = append(rights, h)
	}
	assert.Equal(t, []Heading{1, 2, 3, 0, 1}, rights)

	h = HeadingNorth
	var lefts []Heading
	for i := 0; i < 5; i++ {
		h = h.Left()
		lefts = append(lefts, h)
	}
	assert.Equal(t, []Heading{3, 2, 1, 0, 3}, lefts)

	assert.Equal(t, movelog.West, HeadingWest.Code())
}

func TestGains_TargetDistanceHasNoKick(t *testing.T) {
	g := DefaultGains()
	var s PIDState
	right, left := g.Update(&s, 6)
	assert.Equal(t, 0.0, g.TrackingError(6))
	assert.Equal(t, 1.0, right)
	assert.Equal(t, 1.0, left)
	assert.Equal(t, 0.0, s.PrevErr)
	assert.Equal(t, 0.0, s.Integral)
}

func TestGains_TrackingError(t *testing.T) {
	g := DefaultGains()
	assert.Equal(t, 1.0, g.TrackingError(5))
	assert.Equal(t, -4.0, g.TrackingError(10))
	assert.Equal(t, -6.0, g.TrackingError(11))
	assert.Equal(t, -6.0, g.TrackingError(80))
}

func TestGains_Update(t *testing.T) {
	g := DefaultGains()
	var s PIDState

	// e=1: P=3, D=2*1/0.1=20, I=1.5*1*0.1/2=0.075
	right, left := g.Update(&s, 5)
	assert.InDelta(t, 1.23075, right, 1e-9)
	assert.InDelta(t, 0.76925, left, 1e-9)
	assert.Equal(t, 1.0, s.PrevErr)
	assert.InDelta(t, 0.075, s.Integral, 1e-12)

	// same error again: no derivative, integral unchanged
	right, _ = g.Update(&s, 5)
	assert.InDelta(t, 1.03075, right, 1e-9)
}

func TestGains_ComplementaryFactors(t *testing.T) {
	g := DefaultGains()
	var s PIDState
	for _, d := range []float64{0, 1.5, 5, 6, 7, 10.9, 11, 25, 400, 3, 8} {
		right, left := g.Update(&s, d)
		assert.InDelta(t, 2.0, right+left, 1e-12, "distance %v", d)
	}
}

func TestDecide(t *testing.T) {
	p := DefaultParams()
	cases := []struct {
		name       string
		justTurned bool
		r          Reading
		want       Action
	}{
		{"magnetic", false, Reading{Front: 100, Right: 6, Magnetic: 150}, ActMagneticHazard},
		{"ir", false, Reading{Front: 100, Right: 6, IR: 12}, ActIRHazard},
		{"magnetic before ir", false, Reading{Magnetic: 150, IR: 12}, ActMagneticHazard},
		{"thresholds are exclusive", false, Reading{Front: 100, Right: 6, Magnetic: 100, IR: 9}, ActFollowWall},
		{"near wall blocked", false, Reading{Front: 10, Right: 6}, ActTurnLeft},
		{"near wall clear", false, Reading{Front: 100, Right: 6}, ActFollowWall},
		{"front at clearance follows", false, Reading{Front: 15, Right: 6}, ActFollowWall},
		{"just turned keeps following", true, Reading{Front: 100, Right: 40}, ActFollowWall},
		{"just turned blocked", true, Reading{Front: 5, Right: 40}, ActTurnLeft},
		{"open corner", false, Reading{Front: 100, Right: 40}, ActOpenCorner},
		{"blocked corner", false, Reading{Front: 10, Right: 40}, ActBlockedCorner},
		{"front at clearance is blocked", false, Reading{Front: 15, Right: 20}, ActBlockedCorner},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewState()
			s.JustTurned = tc.justTurned
			assert.Equal(t, tc.want, Decide(s, tc.r, p))
		})
	}
}

func TestStep_MagneticHazard(t *testing.T) {
	r := newRig(t)
	r.env.SetField(sensor.Field{Z: 150})
	r.env.SetIR(20, 20)

	s := NewState()
	s.Leg = 3.7
	s.PID = PIDState{PrevErr: 2, Integral: 1}

	s, err := r.ctrl.Step(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, movelog.Log{
		{Code: movelog.Start},
		{Code: movelog.North, Value: 3},
		{Code: movelog.Magnetic, Value: 150},
		{Code: movelog.East},
	}, s.Log)
	assert.Equal(t, HeadingEast, s.Heading)
	assert.Equal(t, PIDState{}, s.PID)
	assert.Zero(t, s.Leg)
	assert.Equal(t, []string{"right"}, r.drive.calls)
}

func TestStep_IRHazard(t *testing.T) {
	r := newRig(t)
	r.env.SetIR(10, 14)

	s, err := r.ctrl.Step(context.Background(), NewState())
	require.NoError(t, err)
	require.Len(t, s.Log, 4)
	assert.Equal(t, movelog.Record{Code: movelog.IR, Value: 12}, s.Log[2])
}

func TestStep_TurnLeft(t *testing.T) {
	r := newRig(t)
	r.set(5, 5)

	s := NewState()
	s.Leg = 2.5
	s.PID = PIDState{PrevErr: 1, Integral: 0.3}
	s, err := r.ctrl.Step(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, movelog.Log{
		{Code: movelog.Start},
		{Code: movelog.North, Value: 2},
		{Code: movelog.West},
	}, s.Log)
	assert.Equal(t, HeadingWest, s.Heading)
	assert.Equal(t, PIDState{}, s.PID)
	assert.False(t, s.JustTurned)
	assert.Equal(t, []string{"left"}, r.drive.calls)
}

func TestStep_FollowWall(t *testing.T) {
	r := newRig(t)
	r.set(100, 5)

	s, err := r.ctrl.Step(context.Background(), NewState())
	require.NoError(t, err)

	assert.Equal(t, []string{"speeds 221.535 138.465"}, r.drive.calls)
	assert.InDelta(t, 0.25641, s.Leg, 1e-12)
	assert.Len(t, s.Log, 2)
	assert.Equal(t, 1.0, s.PID.PrevErr)
	assert.Equal(t, 1, r.ticks)
}

func TestStep_FollowWallAfterTurnTracksJustTurned(t *testing.T) {
	r := newRig(t)
	r.set(100, 30)

	s := NewState()
	s.JustTurned = true
	s, err := r.ctrl.Step(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, s.JustTurned, "wall still out of reach")

	r.set(100, 8)
	s, err = r.ctrl.Step(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, s.JustTurned)
}

func TestStep_OpenCorner(t *testing.T) {
	r := newRig(t)
	r.set(100, 40)

	s := NewState()
	s.PID = PIDState{PrevErr: -6, Integral: 2}
	s, err := r.ctrl.Step(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"straight 180",
		"hold 1.4s",
		"right 1.2s",
		"straight 180",
		"hold 500ms",
	}, r.drive.calls)
	assert.Equal(t, movelog.Log{
		{Code: movelog.Start},
		{Code: movelog.North, Value: 4},
		{Code: movelog.East},
	}, s.Log)
	assert.True(t, s.JustTurned)
	assert.Equal(t, PIDState{}, s.PID)
	assert.InDelta(t, 1.28205, s.Leg, 1e-12)
}

func TestStep_BlockedCorner(t *testing.T) {
	r := newRig(t)
	r.set(10, 40)

	s, err := r.ctrl.Step(context.Background(), NewState())
	require.NoError(t, err)

	assert.Equal(t, []string{"right", "straight 180", "hold 500ms"}, r.drive.calls)
	assert.False(t, s.JustTurned)
	assert.Equal(t, HeadingEast, s.Heading)
}

func TestStep_ActuatorError(t *testing.T) {
	r := newRig(t)
	r.set(5, 5)
	r.drive.failOn = "left"

	_, err := r.ctrl.Step(context.Background(), NewState())
	assert.Error(t, err)
}

func TestRun_CancellationClosesLog(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.cancel, r.limit = cancel, 8

	log, err := r.ctrl.Run(ctx)
	require.NoError(t, err)

	// 8 ticks of 0.25641 floor to 2
	assert.Equal(t, movelog.Log{
		{Code: movelog.Start},
		{Code: movelog.North, Value: 2},
		{Code: movelog.End},
	}, log)
	assert.Equal(t, 1, r.drive.stopped)
	assert.NoError(t, movelog.Validate(log))
}

func TestRun_AlreadyCancelled(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log, err := r.ctrl.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, movelog.Log{{Code: movelog.Start}, {Code: movelog.North}, {Code: movelog.End}}, log)
}

type failingDistance struct{}

var errEcho = errors.New("echo lost")

func (failingDistance) Read() (float64, error) { return 0, errEcho }

func TestRun_SensorErrorEndsRun(t *testing.T) {
	r := newRig(t)
	r.ctrl.sensors.Front = failingDistance{}

	log, err := r.ctrl.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errEcho)
	assert.Contains(t, err.Error(), "front distance")
	assert.NoError(t, movelog.Validate(log))
	assert.Equal(t, movelog.End, log[len(log)-1].Code)
	assert.Equal(t, 1, r.drive.stopped)
}

func TestRun_OnRecord(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.cancel, r.limit = cancel, 4

	var seen []int
	r.ctrl.OnRecord = func(i int, rec movelog.Record) { seen = append(seen, i) }

	_, err := r.ctrl.Run(ctx)
	require.NoError(t, err)
	// start, north, leg close, end
	assert.Equal(t, []int{0, 1, 1, 2}, seen)
}

// TestStep_ScriptedMaze replays a mixed sequence of readings and checks
// the loop invariants after every tick.
func TestStep_ScriptedMaze(t *testing.T) {
	type tick struct {
		front, right float64
		mag, ir      float64
	}
	script := []tick{
		{100, 6, 0, 0},
		{100, 7, 0, 0},
		{100, 5, 0, 0},
		{10, 6, 0, 0},   // left
		{100, 40, 0, 0}, // just turned, keep following
		{100, 8, 0, 0},
		{100, 40, 0, 0}, // open corner
		{100, 40, 0, 0}, // just turned
		{100, 6, 150, 0},
		{100, 6, 0, 20},
		{100, 6, 150, 20},
		{10, 40, 0, 0}, // still just turned, so left
		{100, 6, 0, 0},
	}

	r := newRig(t)
	s := NewState()
	for i, tc := range script {
		r.set(tc.front, tc.right)
		r.env.SetField(sensor.Field{Z: tc.mag})
		r.env.SetIR(tc.ir, tc.ir)

		act := Decide(s, Reading{Front: tc.front, Right: tc.right, Magnetic: tc.mag, IR: tc.ir}, r.ctrl.params)
		before := len(s.Log)

		var err error
		s, err = r.ctrl.Step(context.Background(), s)
		require.NoError(t, err, "tick %d", i)

		if act != ActFollowWall {
			assert.Equal(t, PIDState{}, s.PID, "tick %d (%s): PID not reset", i, act)
		}
		if act == ActMagneticHazard || act == ActIRHazard {
			assert.Equal(t, before+2, len(s.Log), "tick %d: one hazard and one leg", i)
		}
		last := s.Log[len(s.Log)-1]
		require.True(t, last.Code.Directional(), "tick %d", i)
		assert.Equal(t, s.Heading.Code(), last.Code, "tick %d", i)
	}

	s = r.ctrl.finish(s)
	require.NoError(t, movelog.Validate(s.Log))
	for i, rec := range s.Log {
		if rec.Code.Hazard() {
			assert.True(t, s.Log[i-1].Code.Directional(), "record %d preceded by a leg", i)
			assert.True(t, s.Log[i+1].Code.Directional(), "record %d followed by a leg", i)
		}
	}
}
