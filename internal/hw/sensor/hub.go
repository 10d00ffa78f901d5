package sensor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/MazeGo/internal/debug"
	"go.bug.st/serial"
)

// Port is the minimal serial port surface the hub needs, so the protocol
// can be tested without hardware.
type Port interface {
	io.ReadWriter
	io.Closer
}

// ErrMalformedReply is returned when the hub answers with an unexpected line.
var ErrMalformedReply = errors.New("sensor hub: malformed reply")

// Hub talks to the microcontroller that samples the magnetometer and the
// IR pair. The protocol is line based:
//
//	> MAG?           < MAG <x> <y> <z>
//	> IR?            < IR <a> <b>
type Hub struct {
	mu     sync.Mutex
	port   Port
	reader *bufio.Reader
}

// NewHub wraps an already opened port.
func NewHub(p Port) *Hub {
	return &Hub{port: p, reader: bufio.NewReader(p)}
}

// OpenHub opens the serial port at path (8N1) and returns a Hub.
func OpenHub(path string, baudRate int, readTimeout time.Duration) (*Hub, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open sensor hub %s: %w", path, err)
	}
	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	debug.Info("Sensor hub opened on %s (%d baud)", path, baudRate)
	return NewHub(port), nil
}

// query sends cmd and returns the numeric fields of a reply tagged tag.
func (h *Hub) query(cmd, tag string, want int) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	debug.Trace("Hub > %s", cmd)
	if _, err := io.WriteString(h.port, cmd+"\n"); err != nil {
		return nil, fmt.Errorf("sensor hub write: %w", err)
	}
	line, err := h.reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("sensor hub read: %w", err)
	}
	line = strings.TrimSpace(line)
	debug.Trace("Hub < %s", line)

	fields := strings.Fields(line)
	if len(fields) != want+1 || fields[0] != tag {
		return nil, fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}
	out := make([]float64, want)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedReply, line, err)
		}
		out[i] = v
	}
	return out, nil
}

func (h *Hub) ReadField() (Field, error) {
	v, err := h.query("MAG?", "MAG", 3)
	if err != nil {
		return Field{}, err
	}
	return Field{X: v[0], Y: v[1], Z: v[2]}, nil
}

func (h *Hub) ReadPair() (float64, float64, error) {
	v, err := h.query("IR?", "IR", 2)
	if err != nil {
		return 0, 0, err
	}
	return v[0], v[1], nil
}

// Close closes the serial port.
func (h *Hub) Close() error {
	return h.port.Close()
}
