package mapping

import "strings"

var glyphs = map[Cell]string{
	Empty:          "  ",
	Path:           " X",
	IRHazard:       " I",
	MagneticHazard: " M",
	EndCell:        " E",
	StartCell:      " S",
}

// Glyph returns the two-character console glyph of c.
func (c Cell) Glyph() string {
	if g, ok := glyphs[c]; ok {
		return g
	}
	return " ?"
}

// Render draws the map with a # border, north row first.
func (m *Map) Render() string {
	var b strings.Builder
	border := "#" + strings.Repeat(" #", m.dims.Width+1) + "\n"

	b.WriteString(border)
	for row := len(m.cells) - 1; row >= 0; row-- {
		b.WriteString("#")
		for _, c := range m.cells[row] {
			b.WriteString(c.Glyph())
		}
		b.WriteString(" #\n")
	}
	b.WriteString(border)
	return b.String()
}

func (m *Map) String() string {
	return m.Render()
}
