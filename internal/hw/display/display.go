package display

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cjeanneret/MazeGo/internal/debug"
)

// Cargo identifies the label shown on the robot's carousel.
type Cargo int

const (
	MedicalSupplies Cargo = iota
	EmergencyShelter
	Fuel
	FoodAndWater
)

// NoCargo disables the label display for a run.
const NoCargo Cargo = -1

var cargoNames = [...]string{
	MedicalSupplies:  "Medical supplies",
	EmergencyShelter: "Emergency shelter",
	Fuel:             "Fuel",
	FoodAndWater:     "Food and Water",
}

// AllCargo returns every cargo type in label order.
func AllCargo() []Cargo {
	return []Cargo{MedicalSupplies, EmergencyShelter, Fuel, FoodAndWater}
}

// Valid returns true if c is a known cargo label.
func (c Cargo) Valid() bool {
	return c >= MedicalSupplies && c <= FoodAndWater
}

func (c Cargo) String() string {
	if !c.Valid() {
		return "Cargo(" + strconv.Itoa(int(c)) + ")"
	}
	return cargoNames[c]
}

// Menu returns the operator prompt listing the cargo labels.
func Menu() string {
	var b strings.Builder
	for _, c := range AllCargo() {
		fmt.Fprintf(&b, "%d: %s\n", int(c), c)
	}
	return b.String()
}

// ParseCargo parses a label index as typed by the operator.
func ParseCargo(s string) (Cargo, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return NoCargo, fmt.Errorf("cargo must be a label index: %w", err)
	}
	c := Cargo(n)
	if !c.Valid() {
		return NoCargo, fmt.Errorf("cargo must be between 0 and %d, got %d", int(FoodAndWater), n)
	}
	return c, nil
}

// Label is the high-level interface for the cargo label display.
type Label interface {
	Show(ctx context.Context, c Cargo) error
}

// Rotator is the motor behind the carousel.
type Rotator interface {
	MoveTo(ctx context.Context, deg float64) error
	Enable() error
	Disable() error
}

// Carousel shows a label by rotating a stepper-driven carousel so that
// label i faces forward at i*DegreesPerLabel from the power-up position.
type Carousel struct {
	motor           Rotator
	degreesPerLabel float64
}

func NewCarousel(motor Rotator, degreesPerLabel float64) *Carousel {
	return &Carousel{motor: motor, degreesPerLabel: degreesPerLabel}
}

// Angle returns the carousel angle for c.
func (c *Carousel) Angle(cargo Cargo) float64 {
	return float64(cargo) * c.degreesPerLabel
}

func (c *Carousel) Show(ctx context.Context, cargo Cargo) error {
	if !cargo.Valid() {
		return fmt.Errorf("show label: unknown cargo %d", int(cargo))
	}
	debug.Info("Showing cargo label %d (%s)", int(cargo), cargo)

	if err := c.motor.Enable(); err != nil {
		return fmt.Errorf("enable carousel: %w", err)
	}
	if err := c.motor.MoveTo(ctx, c.Angle(cargo)); err != nil {
		_ = c.motor.Disable()
		return fmt.Errorf("rotate carousel: %w", err)
	}
	return c.motor.Disable()
}
