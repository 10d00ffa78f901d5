package mapping

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cjeanneret/MazeGo/internal/logic/movelog"
)

// Header identifies a run in the exported files.
type Header struct {
	Team      string
	MapNumber int
	Unit      string // unit name, e.g. "cm"
	Notes     string
}

// GridFileName returns the grid export file name for a team.
func GridFileName(team string) string {
	return fmt.Sprintf("team%s_map.csv", team)
}

// HazardFileName returns the hazard export file name for a team.
func HazardFileName(team string) string {
	return fmt.Sprintf("team%s_hazards.csv", team)
}

// WriteGrid writes the header block followed by the grid, north row
// first, every cell followed by a comma.
func WriteGrid(w io.Writer, m *Map, h Header) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Team: %s\n", h.Team)
	fmt.Fprintf(bw, "Map: %d\n", h.MapNumber)
	fmt.Fprintf(bw, "Unit Length: %g\n", m.unit)
	fmt.Fprintf(bw, "Unit: %s\n", h.Unit)
	fmt.Fprintf(bw, "Origin: (%d,0)\n", m.dims.OriginColumn)
	fmt.Fprintf(bw, "Notes: %s\n", h.Notes)

	for row := len(m.cells) - 1; row >= 0; row-- {
		for _, c := range m.cells[row] {
			fmt.Fprintf(bw, "%d,", int(c))
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// hazardLabels are the type and parameter columns of each hazard kind.
var hazardLabels = map[movelog.Code][2]string{
	movelog.Magnetic: {"Magnetic Source", "Field strength (uT)"},
	movelog.IR:       {"Heat source", "IR Sensor Units (u)"},
}

// WriteHazards writes the hazard list with its header block. Parameter
// values are floored.
func WriteHazards(w io.Writer, m *Map, h Header) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Team: %s\n", h.Team)
	fmt.Fprintf(bw, "Map: %d\n", h.MapNumber)
	bw.WriteString("Notes: NONE\n")
	bw.WriteString("Hazard Type, Parameter of Interest, Parameter value, Hazard X Coordinate, Hazard Y Coordinate\n")

	for _, hz := range m.hazards {
		labels := hazardLabels[hz.Kind]
		fmt.Fprintf(bw, "%s, %s, %d, %g, %g\n", labels[0], labels[1], int(math.Floor(hz.Value)), hz.X, hz.Y)
	}
	return bw.Flush()
}

func writeFile(path string, m *Map, h Header, write func(io.Writer, *Map, Header) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, m, h); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// SaveGrid writes the grid export to path.
func SaveGrid(path string, m *Map, h Header) error {
	return writeFile(path, m, h, WriteGrid)
}

// SaveHazards writes the hazard export to path.
func SaveHazards(path string, m *Map, h Header) error {
	return writeFile(path, m, h, WriteHazards)
}
