package viz

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/eulerfluid/internal/config"
	"github.com/san-kum/eulerfluid/internal/sim"
)

var presetInfo = map[string]string{
	"water_surface":  "waves from scripted pushes",
	"solid_body":     "static ball, moving wall",
	"rigid_body":     "floating dynamic bodies",
	"various_shapes": "every collider in a tank",
	"multiple":       "eight zero-gravity domains",
}

const (
	stateMenu = iota
	stateConfig
	stateSim
)

type param struct {
	name  string
	step  float64
	lo    float64
	hi    float64
	value float64
}

// model picks a preset, tunes a few settings and hands over to LiveModel.
type model struct {
	ctx           context.Context
	state, cursor int
	presets       []string
	selected      string
	params        []param
	paramCursor   int
	live          LiveModel
	sim           *sim.Simulator
	err           error
}

func NewInteractiveApp(ctx context.Context) *model {
	return &model{ctx: ctx, state: stateMenu, presets: config.ListPresets()}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateSim {
		next, cmd := m.live.Update(msg)
		m.live = next.(LiveModel)
		return m, cmd
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case stateMenu:
			return m.menuKey(key)
		case stateConfig:
			return m.configKey(key)
		}
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selected = m.presets[m.cursor]
		m.state, m.paramCursor = stateConfig, 0
		m.setParams()
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(m.params)-1 {
			m.paramCursor++
		}
	case "left", "h":
		p := &m.params[m.paramCursor]
		p.value = max(p.value-p.step, p.lo)
	case "right", "l":
		p := &m.params[m.paramCursor]
		p.value = min(p.value+p.step, p.hi)
	case "s", "enter":
		return m.start()
	}
	return m, nil
}

func (m *model) setParams() {
	cfg := config.GetPreset(m.selected)
	d := cfg.Domains[0]
	m.params = []param{
		{"fill level", 0.05, 0, 1, float64(d.InitialFluidLevel)},
		{"density", 50, 50, 5000, float64(d.Rho)},
		{"jacobi", 5, 0, 400, float64(cfg.Solver.JacobiIterations)},
		{"physics hz", 10, 10, 240, cfg.Run.PhysicsHz},
	}
}

func (m model) start() (model, tea.Cmd) {
	cfg := config.GetPreset(m.selected)
	for i := range cfg.Domains {
		cfg.Domains[i].InitialFluidLevel = float32(m.params[0].value)
		cfg.Domains[i].Rho = float32(m.params[1].value)
	}
	cfg.Solver.JacobiIterations = int(m.params[2].value)
	cfg.Run.PhysicsHz = m.params[3].value

	s, err := sim.New(cfg)
	if err != nil {
		m.err = err
		return m, nil
	}
	s.Prepare()
	m.sim = s
	m.live = NewLiveModel(m.ctx, s)
	m.state = stateSim
	return m, m.live.Init()
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.live.View()
	}
	return ""
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	subStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	descStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
)

func hints(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(keyStyle.Render(pairs[i]) + idleStyle.Render(" "+pairs[i+1]+"  "))
	}
	return b.String()
}

func (m model) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle.Render("EULERFLUID") + "\n    " + subStyle.Render("2d free-surface fluid") + "\n    " + subStyle.Render("─────────────────────────") + "\n\n")
	for i, name := range m.presets {
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cursorStyle.Render("▸"), activeStyle.Render(fmt.Sprintf("%-16s", name)), descStyle.Render(presetInfo[name])))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", idleStyle.Render(fmt.Sprintf("  %-16s", name)), idleStyle.Render(presetInfo[name])))
		}
	}
	b.WriteString("\n    " + hints("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle.Render(strings.ToUpper(m.selected)) + "\n    " + subStyle.Render(presetInfo[m.selected]) + "\n    " + subStyle.Render("─────────────────────────") + "\n\n")
	for i, p := range m.params {
		val := fmt.Sprintf("%8.2f", p.value)
		if i == m.paramCursor {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", cursorStyle.Render("▸"), activeStyle.Render(fmt.Sprintf("%-12s", p.name)), descStyle.Render(val)))
		} else {
			b.WriteString(fmt.Sprintf("    %s %s\n", idleStyle.Render(fmt.Sprintf("  %-12s", p.name)), idleStyle.Render(val)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + StatusFailed.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + hints("j/k", "select", "h/l", "adjust", "s", "start", "esc", "back") + "\n")
	return b.String()
}

// RunInteractive shows the preset picker and the live view of the chosen
// scene.
func RunInteractive(ctx context.Context) error {
	p := tea.NewProgram(NewInteractiveApp(ctx), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	final, err := p.Run()
	if m, ok := final.(model); ok && m.sim != nil {
		m.sim.Close()
	}
	return err
}
