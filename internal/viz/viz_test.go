package viz

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/config"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/sim"
)

// tank is a w×h field filled to surface cells with a solid column at x=0.
func tank(w, h int, surface float32) *fluid.Fields {
	f := &fluid.Fields{
		Width:         w,
		Height:        h,
		Dx:            0.1,
		U:             make([]float32, (w+1)*h),
		V:             make([]float32, w*(h+1)),
		LevelsetAir:   make([]float32, w*h),
		LevelsetSolid: make([]float32, w*h),
	}
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			k := f.Cell(i, j)
			f.LevelsetAir[k] = float32(j) + 0.5 - surface
			f.LevelsetSolid[k] = float32(i) - 0.5
		}
	}
	return f
}

func TestClassify(t *testing.T) {
	f := tank(4, 4, 2)
	tests := []struct {
		i, j     int
		expected CellKind
	}{
		{0, 0, KindSolid},
		{1, 0, KindFluid},
		{1, 1, KindSurface},
		{1, 2, KindAir},
		{3, 3, KindAir},
	}
	for _, tt := range tests {
		if got := Classify(f, tt.i, tt.j); got != tt.expected {
			t.Errorf("cell (%d, %d): expected %d, got %d", tt.i, tt.j, tt.expected, got)
		}
	}
}

func TestLayerIsUpsideUp(t *testing.T) {
	f := tank(4, 4, 2)
	got := NewLayer(f, 4, 4).String()
	expected := "▓   \n▓   \n▓▄▄▄\n▓███\n"
	if got != expected {
		t.Errorf("expected\n%s\ngot\n%s", expected, got)
	}
}

func TestArrowGlyph(t *testing.T) {
	tests := []struct {
		v        mgl32.Vec2
		expected rune
	}{
		{mgl32.Vec2{1, 0}, '→'},
		{mgl32.Vec2{1, 1}, '↗'},
		{mgl32.Vec2{0, 1}, '↑'},
		{mgl32.Vec2{-1, 0.1}, '←'},
		{mgl32.Vec2{-1, -0.1}, '←'},
		{mgl32.Vec2{0, -2}, '↓'},
		{mgl32.Vec2{1, -1}, '↘'},
	}
	for _, tt := range tests {
		if got := ArrowGlyph(tt.v); got != tt.expected {
			t.Errorf("%v: expected %c, got %c", tt.v, tt.expected, got)
		}
	}
}

func TestOverlay(t *testing.T) {
	f := tank(4, 4, 4)
	arrows := make([]kernels.Arrow, 4)
	arrows[0].Velocity = mgl32.Vec2{1, 0}
	arrows[1].Velocity = mgl32.Vec2{0, 1}
	arrows[3].Velocity = mgl32.Vec2{0.001, 0}

	l := NewLayer(f, 4, 4)
	l.Overlay(f, arrows, 2)
	if l.Glyphs[2][1] != '→' {
		t.Errorf("expected → at row 2 col 1, got %c", l.Glyphs[2][1])
	}
	if l.Glyphs[2][3] != '↑' {
		t.Errorf("expected ↑ at row 2 col 3, got %c", l.Glyphs[2][3])
	}
	if l.Kinds[0][3] == KindArrow {
		t.Error("expected slow bins to be skipped")
	}

	fine := make([]kernels.Arrow, 16)
	fine[0].Velocity = mgl32.Vec2{1, 0}
	l = NewLayer(f, 4, 4)
	l.Overlay(f, fine, 1)
	if l.Glyphs[3][0] != '▓' {
		t.Errorf("expected no arrow over the solid column, got %c", l.Glyphs[3][0])
	}
}

func TestCanvas(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	if !c.IsSet(0, 0) || !c.IsSet(3, 3) {
		t.Error("expected dots set")
	}
	if got := c.String(); got != "⠁⢀\n" {
		t.Errorf("expected ⠁⢀, got %q", got)
	}
	c.Unset(0, 0)
	if c.IsSet(0, 0) {
		t.Error("expected dot cleared")
	}
	c.Set(-1, 9)
	if w, h := c.Dots(); w != 4 || h != 4 {
		t.Errorf("expected 4x4 dots, got %dx%d", w, h)
	}
}

func TestWritePNG(t *testing.T) {
	SetTheme("ocean")
	f := tank(8, 4, 2)

	var buf bytes.Buffer
	if err := WritePNG(&buf, f, 3); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 12 {
		t.Errorf("expected 24x12, got %v", b)
	}

	r, g, b, _ := img.At(23, 11).RGBA()
	want := RGBA(ThemeOcean.Fluid)
	if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
		t.Errorf("expected fluid color at the bottom right, got %d %d %d", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = img.At(0, 0).RGBA()
	want = RGBA(ThemeOcean.Solid)
	if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
		t.Errorf("expected solid color at the top left, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestFrameUsesPalette(t *testing.T) {
	f := tank(4, 4, 2)
	frame := Frame(f, 1)
	if frame.ColorIndexAt(0, 0) != uint8(KindSolid) {
		t.Errorf("expected solid index, got %d", frame.ColorIndexAt(0, 0))
	}
	if frame.ColorIndexAt(3, 3) != uint8(KindFluid) {
		t.Errorf("expected fluid index, got %d", frame.ColorIndexAt(3, 3))
	}
}

func TestPlot(t *testing.T) {
	if got := Plot(nil, "fy", 20, 5); !strings.Contains(got, "no data") {
		t.Errorf("expected placeholder, got %q", got)
	}
	got := Plot([]float64{1, 2, 3, 2, 1}, "fy", 20, 5)
	if !strings.Contains(got, "fy") {
		t.Errorf("expected caption in plot, got %q", got)
	}
}

func TestThemes(t *testing.T) {
	SetTheme("retro")
	NextTheme()
	if CurrentTheme.Name != "minimal" {
		t.Errorf("expected minimal, got %s", CurrentTheme.Name)
	}
	if GetTheme("missing").Name != "ocean" {
		t.Error("expected ocean fallback")
	}
	SetTheme("ocean")
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestLiveModel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Domains[0].Width = 16
	cfg.Domains[0].Height = 16
	cfg.Solver.JacobiIterations = 4
	cfg.Solver.Backend = "serial"

	s, err := sim.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.Prepare()

	var m tea.Model = NewLiveModel(context.Background(), s)
	m, _ = m.Update(TickMsg{})
	live := m.(LiveModel)
	if live.fields == nil {
		t.Fatal("expected fields after the first tick")
	}
	if live.info.LastTick != 1 {
		t.Errorf("expected tick 1, got %d", live.info.LastTick)
	}
	if len(live.lift) != 1 {
		t.Errorf("expected one lift sample, got %d", len(live.lift))
	}

	m, _ = m.Update(key('a'))
	if m.(LiveModel).arrows {
		t.Error("expected arrows toggled off")
	}
	m, _ = m.Update(key('b'))
	if !m.(LiveModel).braille {
		t.Error("expected braille view")
	}
	if !strings.Contains(m.View(), "RUNNING") {
		t.Error("expected running status")
	}

	pos, ok := live.worldAt(2, 1)
	if !ok {
		t.Fatal("expected the top-left field cell to map to the domain")
	}
	if pos.X() >= 0 || pos.Y() <= 0 {
		t.Errorf("expected top-left world position, got %v", pos)
	}
	if _, ok := live.worldAt(0, 0); ok {
		t.Error("expected padding to be outside the domain")
	}
}
