package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/kernels"
)

// CellKind classifies a rendered cell.
type CellKind uint8

const (
	KindAir CellKind = iota
	KindFluid
	KindSurface
	KindSolid
	KindArrow
)

// MinArrowSpeed is the slowest mean velocity, in m/s, drawn as an arrow.
const MinArrowSpeed = 0.05

var glyphs = [...]rune{
	KindAir:     ' ',
	KindFluid:   '█',
	KindSurface: '▄',
	KindSolid:   '▓',
}

// Classify returns the kind of cell (i, j). Fluid cells within one cell of
// the interface are surface cells.
func Classify(f *fluid.Fields, i, j int) CellKind {
	k := f.Cell(i, j)
	switch {
	case f.LevelsetSolid[k] < 0:
		return KindSolid
	case f.LevelsetAir[k] >= 0:
		return KindAir
	case f.LevelsetAir[k] > -1:
		return KindSurface
	default:
		return KindFluid
	}
}

// sampleCell maps character (col, row), row 0 at the top, to the grid cell
// at the centre of its block.
func sampleCell(f *fluid.Fields, col, row, cols, rows int) (int, int) {
	i := (2*col + 1) * f.Width / (2 * cols)
	j := f.Height - 1 - (2*row+1)*f.Height/(2*rows)
	return min(max(i, 0), f.Width-1), min(max(j, 0), f.Height-1)
}

// Layer is a cols×rows character view of a field, row 0 at the top.
type Layer struct {
	Cols, Rows int
	Kinds      [][]CellKind
	Glyphs     [][]rune
}

// NewLayer samples f onto a character grid.
func NewLayer(f *fluid.Fields, cols, rows int) *Layer {
	l := &Layer{Cols: cols, Rows: rows, Kinds: make([][]CellKind, rows), Glyphs: make([][]rune, rows)}
	for r := 0; r < rows; r++ {
		l.Kinds[r] = make([]CellKind, cols)
		l.Glyphs[r] = make([]rune, cols)
		for c := 0; c < cols; c++ {
			i, j := sampleCell(f, c, r, cols, rows)
			kind := Classify(f, i, j)
			l.Kinds[r][c] = kind
			l.Glyphs[r][c] = glyphs[kind]
		}
	}
	return l
}

// ArrowGlyph returns the arrow closest to the direction of v.
func ArrowGlyph(v mgl32.Vec2) rune {
	const arrows = "→↗↑↖←↙↓↘"
	angle := math.Atan2(float64(v.Y()), float64(v.X()))
	octant := int(math.Round(angle/(math.Pi/4))+8) % 8
	return []rune(arrows)[octant]
}

// Overlay draws the velocity arrows of a VelocityArrows readback over the
// non-solid cells of the layer.
func (l *Layer) Overlay(f *fluid.Fields, arrows []kernels.Arrow, binSize int) {
	nx, ny := kernels.ArrowGrid(f.Width, f.Height, binSize)
	for k, a := range arrows {
		if k >= nx*ny || a.Velocity.Len() < MinArrowSpeed {
			continue
		}
		bx, by := k%nx, k/nx
		gx := float64(bx*binSize) + float64(binSize)/2
		gy := float64(by*binSize) + float64(binSize)/2
		c := int(gx * float64(l.Cols) / float64(f.Width))
		r := l.Rows - 1 - int(gy*float64(l.Rows)/float64(f.Height))
		if c < 0 || c >= l.Cols || r < 0 || r >= l.Rows || l.Kinds[r][c] == KindSolid {
			continue
		}
		l.Kinds[r][c] = KindArrow
		l.Glyphs[r][c] = ArrowGlyph(a.Velocity)
	}
}

func (l *Layer) String() string {
	var b strings.Builder
	for _, row := range l.Glyphs {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func kindStyle(k CellKind) lipgloss.Style {
	t := CurrentTheme
	switch k {
	case KindFluid:
		return lipgloss.NewStyle().Foreground(t.Fluid)
	case KindSurface:
		return lipgloss.NewStyle().Foreground(t.Surface)
	case KindSolid:
		return lipgloss.NewStyle().Foreground(t.Solid)
	case KindArrow:
		return lipgloss.NewStyle().Foreground(t.Arrow).Background(t.Fluid)
	default:
		return lipgloss.NewStyle()
	}
}

// Render colors the layer with the current theme, one style per run of
// equal kinds.
func (l *Layer) Render() string {
	var b strings.Builder
	for r, row := range l.Glyphs {
		start := 0
		for c := 1; c <= len(row); c++ {
			if c < len(row) && l.Kinds[r][c] == l.Kinds[r][start] {
				continue
			}
			b.WriteString(kindStyle(l.Kinds[r][start]).Render(string(row[start:c])))
			start = c
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderField renders f with optional arrows in one call.
func RenderField(f *fluid.Fields, arrows []kernels.Arrow, binSize, cols, rows int) string {
	l := NewLayer(f, cols, rows)
	if len(arrows) > 0 {
		l.Overlay(f, arrows, binSize)
	}
	return l.Render()
}
