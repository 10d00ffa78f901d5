// Package mapping rebuilds the maze map from a finished move log.
//
// The map is a grid of cells. Row 0 is the southernmost visited row and
// the origin column is the column of the maze entrance; the path may
// extend west of it.
package mapping

import (
	"errors"
	"fmt"
	"math"

	"github.com/cjeanneret/MazeGo/internal/logic/movelog"
)

// Cell is the content of one grid cell. The numeric values are the codes
// written to the grid export.
type Cell int

const (
	Empty Cell = iota
	Path
	IRHazard
	MagneticHazard
	EndCell
	StartCell
)

func (c Cell) String() string {
	switch c {
	case Empty:
		return "EMPTY"
	case Path:
		return "PATH"
	case IRHazard:
		return "IR_HAZARD"
	case MagneticHazard:
		return "MAGNETIC_HAZARD"
	case EndCell:
		return "END"
	case StartCell:
		return "START"
	default:
		return fmt.Sprintf("Cell(%d)", int(c))
	}
}

// Map errors.
var (
	ErrEmptyPath   = errors.New("move log never leaves the start row")
	ErrOutOfBounds = errors.New("path leaves the map bounds")
)

// Dimensions is the bounding box of a move log.
type Dimensions struct {
	Width        int
	Height       int
	OriginColumn int
	EndX         int // final displacement east of the start
	EndY         int // final displacement north of the start
}

// steps is the number of whole cells a directional record covers.
func steps(rec movelog.Record) int {
	return int(math.Floor(rec.Value))
}

// delta returns the unit displacement of a directional code.
func delta(c movelog.Code) (dx, dy int) {
	switch c {
	case movelog.North:
		return 0, 1
	case movelog.East:
		return 1, 0
	case movelog.South:
		return 0, -1
	case movelog.West:
		return -1, 0
	}
	return 0, 0
}

// CalculateDimensions walks the log once and returns its bounding box.
// Height is the furthest north the path reached, so it never shrinks as
// the log is replayed.
func CalculateDimensions(l movelog.Log) Dimensions {
	var x, y, minX, maxX, height int
	for _, rec := range l {
		if !rec.Code.Directional() {
			continue
		}
		dx, dy := delta(rec.Code)
		n := steps(rec)
		x += dx * n
		y += dy * n
		if y > height {
			height = y
		}
		if x > maxX {
			maxX = x
		}
		if x < minX {
			minX = x
		}
	}
	return Dimensions{
		Width:        maxX - minX + 1,
		Height:       height,
		OriginColumn: -minX,
		EndX:         x,
		EndY:         y,
	}
}

// Hazard is a hazard located on the map.
type Hazard struct {
	Kind  movelog.Code // movelog.Magnetic or movelog.IR
	Value float64      // raw sensor value
	Row   int
	Col   int
	X     float64 // world coordinates, in units
	Y     float64
}

// Map is a rasterized move log. It is immutable once built.
type Map struct {
	dims    Dimensions
	unit    float64
	cells   [][]Cell // cells[row][col], row 0 south
	hazards []Hazard
}

// Build validates l and rasterizes it. unitLength scales cell coordinates
// to world coordinates for the hazard list. l is not modified.
func Build(l movelog.Log, unitLength float64) (*Map, error) {
	if err := movelog.Validate(l); err != nil {
		return nil, fmt.Errorf("invalid move log: %w", err)
	}
	dims := CalculateDimensions(l)
	if dims.Height == 0 {
		return nil, ErrEmptyPath
	}
	cells, hazards, err := Rasterize(l, dims, unitLength)
	if err != nil {
		return nil, err
	}
	return &Map{dims: dims, unit: unitLength, cells: cells, hazards: hazards}, nil
}

// Rasterize marks every cell visited by l on a grid of the given
// dimensions and collects the hazards. The cursor starts one row south of
// the grid so the first northward step lands on row 0.
func Rasterize(l movelog.Log, dims Dimensions, unitLength float64) ([][]Cell, []Hazard, error) {
	cells := make([][]Cell, dims.Height)
	for row := range cells {
		cells[row] = make([]Cell, dims.Width)
	}
	var hazards []Hazard

	x, y := 0, -1
	mark := func(i int, c Cell) error {
		col := dims.OriginColumn + x
		if y < 0 || y >= dims.Height || col < 0 || col >= dims.Width {
			return fmt.Errorf("record %d: %w: cell (%d,%d) outside %dx%d", i, ErrOutOfBounds, col, y, dims.Width, dims.Height)
		}
		cells[y][col] = c
		return nil
	}

	startPending := false
	for i, rec := range l {
		switch {
		case rec.Code == movelog.Start:
			startPending = true
			continue
		case rec.Code.Directional():
			dx, dy := delta(rec.Code)
			for s := 0; s < steps(rec); s++ {
				x += dx
				y += dy
				c := Path
				if startPending && s == 0 {
					c = StartCell
				}
				if err := mark(i, c); err != nil {
					return nil, nil, err
				}
			}
		case rec.Code == movelog.End:
			if err := mark(i, EndCell); err != nil {
				return nil, nil, err
			}
		case rec.Code == movelog.Magnetic, rec.Code == movelog.IR:
			c := MagneticHazard
			if rec.Code == movelog.IR {
				c = IRHazard
			}
			if err := mark(i, c); err != nil {
				return nil, nil, err
			}
			col := dims.OriginColumn + x
			hazards = append(hazards, Hazard{
				Kind:  rec.Code,
				Value: rec.Value,
				Row:   y,
				Col:   col,
				X:     float64(col) * unitLength,
				Y:     float64(y) * unitLength,
			})
		default:
			return nil, nil, fmt.Errorf("record %d: %w: %d", i, movelog.ErrUnknownCode, int(rec.Code))
		}
		startPending = false
	}
	return cells, hazards, nil
}

// Width returns the number of columns.
func (m *Map) Width() int { return m.dims.Width }

// Height returns the number of rows.
func (m *Map) Height() int { return m.dims.Height }

// OriginColumn returns the column of the maze entrance.
func (m *Map) OriginColumn() int { return m.dims.OriginColumn }

// Dimensions returns the bounding box the map was built from.
func (m *Map) Dimensions() Dimensions { return m.dims }

// UnitLength returns the world length of one cell.
func (m *Map) UnitLength() float64 { return m.unit }

// At returns the cell at row, col (row 0 south).
func (m *Map) At(row, col int) Cell { return m.cells[row][col] }

// Cells returns a copy of the grid, row 0 south.
func (m *Map) Cells() [][]Cell {
	out := make([][]Cell, len(m.cells))
	for i, row := range m.cells {
		out[i] = append([]Cell(nil), row...)
	}
	return out
}

// Hazards returns a copy of the hazard list in log order.
func (m *Map) Hazards() []Hazard {
	return append([]Hazard(nil), m.hazards...)
}

// Count returns how many cells hold c.
func (m *Map) Count(c Cell) int {
	n := 0
	for _, row := range m.cells {
		for _, v := range row {
			if v == c {
				n++
			}
		}
	}
	return n
}
