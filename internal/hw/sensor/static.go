package sensor

import "sync"

// Static returns fixed readings. It backs mock mode on a development PC;
// values can be changed while a run is in progress.
type Static struct {
	mu    sync.Mutex
	value float64
	field Field
	ir    [2]float64
}

// NewStaticDistance returns a Distance that always reads cm.
func NewStaticDistance(cm float64) *Static {
	return &Static{value: cm}
}

// NewStaticEnvironment returns a Magnetometer and IRPair with fixed values.
func NewStaticEnvironment(field Field, ir1, ir2 float64) *Static {
	return &Static{field: field, ir: [2]float64{ir1, ir2}}
}

func (s *Static) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

func (s *Static) ReadField() (Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.field, nil
}

func (s *Static) ReadPair() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ir[0], s.ir[1], nil
}

// Set changes the distance reading.
func (s *Static) Set(cm float64) {
	s.mu.Lock()
	s.value = cm
	s.mu.Unlock()
}

// SetField changes the magnetometer reading.
func (s *Static) SetField(f Field) {
	s.mu.Lock()
	s.field = f
	s.mu.Unlock()
}

// SetIR changes the IR pair reading.
func (s *Static) SetIR(a, b float64) {
	s.mu.Lock()
	s.ir = [2]float64{a, b}
	s.mu.Unlock()
}
