package mapping

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var cellStyles = []struct {
	cell  Cell
	label string
	color color.Color
	shape draw.GlyphDrawer
}{
	{Path, "path", color.RGBA{R: 90, G: 90, B: 90, A: 255}, draw.BoxGlyph{}},
	{StartCell, "start", color.RGBA{G: 160, A: 255}, draw.TriangleGlyph{}},
	{EndCell, "end", color.RGBA{B: 200, A: 255}, draw.SquareGlyph{}},
	{MagneticHazard, "magnetic", color.RGBA{R: 200, B: 200, A: 255}, draw.CrossGlyph{}},
	{IRHazard, "ir", color.RGBA{R: 220, G: 60, A: 255}, draw.CircleGlyph{}},
}

// Points returns the column/row coordinates of every cell holding c.
func (m *Map) Points(c Cell) plotter.XYs {
	var pts plotter.XYs
	for row, cells := range m.cells {
		for col, v := range cells {
			if v == c {
				pts = append(pts, plotter.XY{X: float64(col), Y: float64(row)})
			}
		}
	}
	return pts
}

// Plot builds a scatter plot of the map in grid coordinates.
func (m *Map) Plot(title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = fmt.Sprintf("Column (origin %d)", m.dims.OriginColumn)
	p.Y.Label.Text = "Row"
	p.X.Min, p.X.Max = -1, float64(m.dims.Width)
	p.Y.Min, p.Y.Max = -1, float64(m.dims.Height)
	p.Add(plotter.NewGrid())

	for _, st := range cellStyles {
		pts := m.Points(st.cell)
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("%s scatter: %w", st.label, err)
		}
		sc.GlyphStyle.Color = st.color
		sc.GlyphStyle.Shape = st.shape
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add(st.label, sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// SavePlot renders the map to an image file; the format follows the
// extension of path.
func (m *Map) SavePlot(path, title string) error {
	p, err := m.Plot(title)
	if err != nil {
		return err
	}
	w := vg.Length(m.dims.Width+2) * vg.Centimeter
	h := vg.Length(m.dims.Height+2) * vg.Centimeter
	if w < 10*vg.Centimeter {
		w = 10 * vg.Centimeter
	}
	if h < 10*vg.Centimeter {
		h = 10 * vg.Centimeter
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
