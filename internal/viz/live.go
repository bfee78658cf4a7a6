package viz

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/sim"
)

const (
	historyCapacity = 600
	defaultBinSize  = 4
	// DragGain converts a mouse drag in metres to a point force in newtons.
	DragGain = 4000
	// GIFPath is where recordings are written.
	GIFPath = "eulerfluid.gif"
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(44)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// LiveModel is a bubbletea model stepping a simulator at its physics rate
// and drawing one domain with a velocity overlay. Dragging with the left
// mouse button pushes the fluid.
type LiveModel struct {
	sim    *sim.Simulator
	ctx    context.Context
	period time.Duration

	domain     int
	cols, rows int
	binSize    int
	running    bool
	arrows     bool
	braille    bool
	showHelp   bool

	fields   *fluid.Fields
	overlay  []kernels.Arrow
	info     fluid.DomainInfo
	lift     []float64
	volume   []float64
	maxDiv   float64
	stepTime float64
	err      error

	dragging bool
	dragFrom mgl32.Vec2

	recording bool
	frames    []*image.Paletted
}

func NewLiveModel(ctx context.Context, s *sim.Simulator) LiveModel {
	hz := s.Config().Run.PhysicsHz
	if hz <= 0 {
		hz = 60
	}
	m := LiveModel{
		sim:     s,
		ctx:     ctx,
		period:  time.Duration(float64(time.Second) / hz),
		cols:    64,
		rows:    24,
		binSize: defaultBinSize,
		running: true,
		arrows:  true,
		lift:    make([]float64, 0, historyCapacity),
		volume:  make([]float64, 0, historyCapacity),
	}
	m.fit()
	return m
}

func (m LiveModel) tick() tea.Cmd {
	return tea.Tick(m.period, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m LiveModel) Init() tea.Cmd { return m.tick() }

func (m LiveModel) id() fluid.DomainID { return m.sim.Domains()[m.domain] }

// fit keeps the character grid at the aspect ratio of the domain, two
// columns per row.
func (m *LiveModel) fit() {
	d := m.sim.Config().Domains[m.domain]
	m.rows = max(int(float64(m.cols)*float64(d.Height)/float64(d.Width)/2), 4)
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.recording {
				m.saveGIF()
			}
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case ".":
			if !m.running {
				m.advance()
				m.refresh()
			}
		case "r":
			m.reset()
		case "tab":
			m.domain = (m.domain + 1) % len(m.sim.Domains())
			m.lift, m.volume = m.lift[:0], m.volume[:0]
			m.fit()
			m.refresh()
		case "a":
			m.arrows = !m.arrows
		case "b":
			m.braille = !m.braille
		case "+", "=":
			m.binSize = min(m.binSize*2, 32)
		case "-", "_":
			m.binSize = max(m.binSize/2, 1)
		case "t":
			NextTheme()
		case "g":
			if m.recording {
				m.saveGIF()
				m.recording = false
				m.frames = nil
			} else {
				m.recording = true
				m.frames = make([]*image.Paletted, 0)
			}
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.WindowSizeMsg:
		m.cols = max(min(msg.Width-52, 128), 16)
		m.fit()
	case tea.MouseMsg:
		m.mouse(msg)
	case TickMsg:
		if m.running && m.err == nil {
			m.advance()
		}
		m.refresh()
		if m.recording && m.fields != nil {
			m.frames = append(m.frames, Frame(m.fields, 2))
		}
		return m, m.tick()
	}
	return m, nil
}

// advance steps every domain once and records the telemetry of the shown
// one.
func (m *LiveModel) advance() {
	t, err := m.sim.Step(m.ctx)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	samples, err := m.sim.Sample(t)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	for _, s := range samples {
		if s.Domain != uint32(m.id()) {
			continue
		}
		m.lift = appendCapped(m.lift, s.Fy)
		m.volume = appendCapped(m.volume, s.FluidVolume)
		m.maxDiv = s.MaxDivergence
		m.stepTime = s.StepMillis
	}
}

func appendCapped(values []float64, v float64) []float64 {
	values = append(values, v)
	if len(values) > historyCapacity {
		values = values[1:]
	}
	return values
}

func (m *LiveModel) refresh() {
	id := m.id()
	if f, err := m.sim.Fluid().Snapshot(id); err == nil {
		m.fields = &f
	}
	if info, err := m.sim.Fluid().Info(id); err == nil {
		m.info = info
	}
	m.overlay = nil
	if m.arrows {
		// Not ready until the domain has initialized.
		if arrows, err := m.sim.Fluid().VelocityArrows(m.ctx, id, m.binSize); err == nil {
			m.overlay = arrows
		}
	}
}

func (m *LiveModel) reset() {
	for _, id := range m.sim.Domains() {
		_ = m.sim.Fluid().Reset(id)
	}
	m.lift, m.volume = m.lift[:0], m.volume[:0]
	m.err = nil
	m.running = true
}

// worldAt maps a screen cell inside the field view to world metres.
func (m *LiveModel) worldAt(x, y int) (mgl32.Vec2, bool) {
	c, r := x-2, y-1
	if c < 0 || r < 0 || c >= m.cols || r >= m.rows {
		return mgl32.Vec2{}, false
	}
	d := m.sim.Config().Domains[m.domain]
	fw, fh := float32(d.Width), float32(d.Height)
	dx := m.sim.Fluid().Options().GridLength()
	gx := (float32(c) + 0.5) * fw / float32(m.cols)
	gy := fh - (float32(r)+0.5)*fh/float32(m.rows)
	local := mgl32.Vec4{(gx - fw/2) * dx, (gy - fh/2) * dx, 0, 1}
	w4 := d.Transform().Mul4x1(local)
	return mgl32.Vec2{w4.X(), w4.Y()}, true
}

func (m *LiveModel) mouse(msg tea.MouseMsg) {
	if msg.Action == tea.MouseActionRelease {
		m.dragging = false
		return
	}
	if msg.Button != tea.MouseButtonLeft {
		return
	}
	p, ok := m.worldAt(msg.X, msg.Y)
	switch msg.Action {
	case tea.MouseActionPress:
		m.dragging, m.dragFrom = ok, p
	case tea.MouseActionMotion:
		if !m.dragging || !ok {
			return
		}
		force := kernels.LocalForce{Force: p.Sub(m.dragFrom).Mul(DragGain), Position: p}
		_ = m.sim.Fluid().AddForce(m.id(), force)
		m.dragFrom = p
	}
}

func (m *LiveModel) saveGIF() {
	if len(m.frames) == 0 {
		return
	}
	f, err := os.Create(GIFPath)
	if err != nil {
		m.err = err
		return
	}
	defer f.Close()
	if err := WriteGIF(f, m.frames, 2); err != nil {
		m.err = err
	}
}

func (m LiveModel) fieldView() string {
	if m.fields == nil {
		return strings.Repeat("\n", m.rows)
	}
	if m.braille {
		c := NewCanvas(m.cols, m.rows)
		c.DrawField(m.fields, m.overlay, m.binSize, 4)
		return lipgloss.NewStyle().Foreground(CurrentTheme.Fluid).Render(c.String())
	}
	return RenderField(m.fields, m.overlay, m.binSize, m.cols, m.rows)
}

func (m LiveModel) status() string {
	switch {
	case m.err != nil:
		return StatusFailed.Render("FAILED")
	case m.info.State == fluid.StateLoading:
		return StatusPaused.Render("LOADING")
	case m.recording:
		return StatusRecording.Render("● REC")
	case !m.running:
		return StatusPaused.Render("PAUSED")
	default:
		return StatusRunning.Render("RUNNING")
	}
}

func (m LiveModel) View() string {
	var s strings.Builder
	title := m.sim.Config().Preset
	if title == "" {
		title = "custom"
	}
	s.WriteString(HeaderStyle.Render(strings.ToUpper(title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	s.WriteString(Metric("Domain", "%d/%d", m.domain+1, len(m.sim.Domains())) + "\n")
	s.WriteString(Metric("State", "%s", m.info.State) + "\n")
	s.WriteString(Metric("Tick", "%d", m.info.LastTick) + "\n")
	s.WriteString(Metric("Time", "%.2fs", m.sim.Clock().Elapsed().Seconds()) + "\n")
	s.WriteString(Metric("Step", "%.2fms", m.stepTime) + "\n")
	s.WriteString(Metric("Backend", "%s", m.sim.Device().BackendName()) + "\n")
	s.WriteString(Metric("Bodies", "%d", m.sim.World().Len()) + "\n")
	s.WriteString(Metric("Max div", "%.2e", m.maxDiv) + "\n")
	if n := len(m.volume); n > 0 {
		s.WriteString(Metric("Volume", "%.3f m²", m.volume[n-1]) + "\n")
	}
	if n := len(m.lift); n > 0 {
		s.WriteString(Metric("Lift", "%.1f N", m.lift[n-1]) + "\n")
		s.WriteString(SparklineChart(m.lift, 36) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(CurrentTheme.Error).Width(38).Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render(Separator(36) + "\nSP:Pause R:Reset Q:Quit\nA:Arrows B:Braille T:Theme\nTAB:Domain G:Record ?:Help"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, canvasStyle.Render(m.fieldView()), statsStyle.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  .        - Single step when paused  ║
║  R        - Reset every domain       ║
║  Tab      - Next domain              ║
║  A        - Toggle velocity arrows   ║
║  +/-      - Arrow bin size           ║
║  B        - Toggle braille view      ║
║  T        - Cycle themes             ║
║  G        - Toggle GIF recording     ║
║  Drag     - Push the fluid           ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝
` + "\n\n" + main
	}
	return main
}

// RunLive runs the live view until the user quits.
func RunLive(ctx context.Context, s *sim.Simulator) error {
	s.Prepare()
	p := tea.NewProgram(NewLiveModel(ctx, s), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(LiveModel); ok && m.err != nil {
		return fmt.Errorf("live view: %w", m.err)
	}
	return nil
}
