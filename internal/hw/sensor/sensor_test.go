package sensor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/MazeGo/internal/hw/gpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField_Magnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Field{X: 3, Y: 4}.Magnitude(), 1e-12)
	assert.InDelta(t, 13.0, Field{X: 3, Y: 4, Z: 12}.Magnitude(), 1e-12)
	assert.Zero(t, Field{}.Magnitude())
}

func TestIRIntensity(t *testing.T) {
	assert.Equal(t, 9.5, IRIntensity(9, 10))
}

func TestStatic(t *testing.T) {
	d := NewStaticDistance(12)
	v, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	d.Set(30)
	v, _ = d.Read()
	assert.Equal(t, 30.0, v)

	env := NewStaticEnvironment(Field{X: 1}, 2, 4)
	f, err := env.ReadField()
	require.NoError(t, err)
	assert.Equal(t, Field{X: 1}, f)
	a, b, err := env.ReadPair()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, []float64{a, b})
}

// fakePort answers hub queries from a canned reply script.
type fakePort struct {
	written bytes.Buffer
	replies *strings.Reader
	closed  bool
}

func newFakePort(replies string) *fakePort {
	return &fakePort{replies: strings.NewReader(replies)}
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.replies.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }

func TestHub_ReadField(t *testing.T) {
	port := newFakePort("MAG 30 40 0\n")
	h := NewHub(port)

	f, err := h.ReadField()
	require.NoError(t, err)
	assert.Equal(t, Field{X: 30, Y: 40, Z: 0}, f)
	assert.Equal(t, "MAG?\n", port.written.String())
}

func TestHub_ReadPair(t *testing.T) {
	port := newFakePort("IR 8.5 11\r\n")
	h := NewHub(port)

	a, b, err := h.ReadPair()
	require.NoError(t, err)
	assert.Equal(t, 8.5, a)
	assert.Equal(t, 11.0, b)
	assert.Equal(t, "IR?\n", port.written.String())
}

func TestHub_SequentialQueries(t *testing.T) {
	h := NewHub(newFakePort("MAG 1 2 2\nIR 3 5\n"))

	f, err := h.ReadField()
	require.NoError(t, err)
	assert.InDelta(t, 3.0, f.Magnitude(), 1e-12)

	a, b, err := h.ReadPair()
	require.NoError(t, err)
	assert.Equal(t, 4.0, IRIntensity(a, b))
}

func TestHub_MalformedReplies(t *testing.T) {
	cases := []struct {
		name  string
		reply string
	}{
		{"wrong_tag", "IR 1 2 3\n"},
		{"too_few_fields", "MAG 1 2\n"},
		{"not_a_number", "MAG 1 x 2\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewHub(newFakePort(tc.reply)).ReadField()
			assert.ErrorIs(t, err, ErrMalformedReply)
		})
	}
}

func TestHub_ReadErrorOnEOF(t *testing.T) {
	_, _, err := NewHub(newFakePort("")).ReadPair()
	assert.Error(t, err)
}

func TestHub_Close(t *testing.T) {
	port := newFakePort("")
	require.NoError(t, NewHub(port).Close())
	assert.True(t, port.closed)
}

// echoDriver reports the echo pin HIGH for highReads reads after lowReads LOW reads.
type echoDriver struct {
	gpio.MockDriver
	reads     int
	lowReads  int
	highReads int
}

func (d *echoDriver) ReadPin(pin int) (gpio.Level, error) {
	d.reads++
	if d.reads > d.lowReads && d.reads <= d.lowReads+d.highReads {
		return gpio.High, nil
	}
	return gpio.Low, nil
}

func TestUltrasonic_NoEchoTimesOut(t *testing.T) {
	u, err := NewUltrasonic(&gpio.MockDriver{}, UltrasonicConfig{
		Name: "front", TriggerPin: 23, EchoPin: 24, Timeout: time.Millisecond,
	})
	require.NoError(t, err)

	_, err = u.Read()
	assert.ErrorIs(t, err, ErrEchoTimeout)
}

func TestUltrasonic_MeasuresEcho(t *testing.T) {
	drv := &echoDriver{lowReads: 2, highReads: 3}
	u, err := NewUltrasonic(drv, UltrasonicConfig{
		Name: "right", TriggerPin: 17, EchoPin: 27, Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	// Fake clock: 1ms per call.
	clock := time.Unix(0, 0)
	u.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}

	cm, err := u.Read()
	require.NoError(t, err)
	assert.Greater(t, cm, 0.0)
	assert.LessOrEqual(t, cm, 400.0)
}

func TestUltrasonic_EchoHeldHighIsMaxRange(t *testing.T) {
	drv := &echoDriver{lowReads: 0, highReads: 1 << 30}
	u, err := NewUltrasonic(drv, UltrasonicConfig{
		Name: "front", TriggerPin: 23, EchoPin: 24,
		Timeout: time.Millisecond, MaxRangeCM: 250,
	})
	require.NoError(t, err)

	cm, err := u.Read()
	require.NoError(t, err)
	assert.Equal(t, 250.0, cm)
}

func TestEchoToCM(t *testing.T) {
	assert.InDelta(t, 17.15, EchoToCM(time.Millisecond), 1e-9)
	assert.Zero(t, EchoToCM(0))
}

type failingMagnetometer struct{}

func (failingMagnetometer) ReadField() (Field, error) { return Field{}, errors.New("i2c") }

func TestSampleMagnitude(t *testing.T) {
	env := NewStaticEnvironment(Field{X: 60, Y: 80}, 0, 0)
	st, err := SampleMagnitude(context.Background(), env, 5, time.Microsecond)
	require.NoError(t, err)
	assert.Equal(t, 5, st.N)
	assert.InDelta(t, 100.0, st.Mean, 1e-9)
	assert.InDelta(t, 0.0, st.StdDev, 1e-9)
	assert.Equal(t, st.Min, st.Max)
}

func TestSampleIR(t *testing.T) {
	env := NewStaticEnvironment(Field{}, 6, 8)
	st, err := SampleIR(context.Background(), env, 3, time.Microsecond)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, st.Mean, 1e-9)
}

func TestSample_Errors(t *testing.T) {
	_, err := SampleMagnitude(context.Background(), failingMagnetometer{}, 3, time.Microsecond)
	assert.Error(t, err)

	_, err = SampleDistance(context.Background(), NewStaticDistance(1), 0, time.Microsecond)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = SampleDistance(ctx, NewStaticDistance(1), 5, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
