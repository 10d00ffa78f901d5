package gpio

import (
	"math"
	"testing"
)

func TestNewDriver_Mock(t *testing.T) {
	drv, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(true): %v", err)
	}
	if _, ok := drv.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) returned %T, want *MockDriver", drv)
	}
}

func TestMockDriver_RecordsLastLevel(t *testing.T) {
	m := &MockDriver{}
	if got := m.LastLevel(5); got != Low {
		t.Errorf("LastLevel before write = %v, want LOW", got)
	}
	if err := m.WritePin(5, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	if got := m.LastLevel(5); got != High {
		t.Errorf("LastLevel = %v, want HIGH", got)
	}
}

func TestMockDriver_SetPWM(t *testing.T) {
	m := &MockDriver{}
	if err := m.SetPWM(12, 1000, 0.5); err != nil {
		t.Fatalf("SetPWM: %v", err)
	}
	if got := m.LastDuty(12); got != 0.5 {
		t.Errorf("LastDuty = %v, want 0.5", got)
	}
}

func TestValidateDuty(t *testing.T) {
	cases := []struct {
		name    string
		duty    float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"half", 0.5, false},
		{"full", 1, false},
		{"negative", -0.1, true},
		{"over", 1.01, true},
		{"nan", math.NaN(), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDuty(tc.duty)
			if tc.wantErr && err == nil {
				t.Errorf("expected error for duty %v, got nil", tc.duty)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error for duty %v: %v", tc.duty, err)
			}
		})
	}
}

func TestLevel_String(t *testing.T) {
	if High.String() != "HIGH" || Low.String() != "LOW" {
		t.Errorf("Level strings = %q/%q, want HIGH/LOW", High.String(), Low.String())
	}
}
