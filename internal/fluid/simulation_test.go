package fluid

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/obstacle"
)

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Settings)
		err      error
		expected float32
	}{
		{"defaults", func(*Settings) {}, nil, 0.5},
		{"zero width", func(s *Settings) { s.Width = 0 }, ErrInvalidSize, 0},
		{"zero height", func(s *Settings) { s.Height = 0 }, ErrInvalidSize, 0},
		{"zero density", func(s *Settings) { s.Rho = 0 }, ErrInvalidDensity, 0},
		{"negative density", func(s *Settings) { s.Rho = -1 }, ErrInvalidDensity, 0},
		{"unaligned size", func(s *Settings) { s.Width = 100 }, nil, 0.5},
		{"level above one", func(s *Settings) { s.InitialFluidLevel = 1.5 }, nil, 1},
		{"level below zero", func(s *Settings) { s.InitialFluidLevel = -0.2 }, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			got, err := s.Validate()
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected error %v, got %v", tt.err, err)
			}
			if err == nil && got.InitialFluidLevel != tt.expected {
				t.Errorf("expected level %f, got %f", tt.expected, got.InitialFluidLevel)
			}
		})
	}
}

func TestSettingsZeroTransform(t *testing.T) {
	s := DefaultSettings()
	s.Transform = mgl32.Mat4{}
	got, err := s.Validate()
	if err != nil {
		t.Fatal(err)
	}
	if got.Transform != mgl32.Ident4() {
		t.Errorf("expected identity transform, got %v", got.Transform)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		err  error
	}{
		{"defaults", DefaultOptions(), nil},
		{"zero length unit", Options{LengthUnit: 0, JacobiIterations: 1}, ErrInvalidLengthUnit},
		{"negative iterations", Options{LengthUnit: 10, JacobiIterations: -1}, ErrInvalidSolver},
		{"negative passes", Options{LengthUnit: 10, ExtrapolationPasses: -1}, ErrInvalidSolver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSimulation(compute.NewDevice(compute.NewSerialBackend()), tt.opts)
			if !errors.Is(err, tt.err) {
				t.Errorf("expected error %v, got %v", tt.err, err)
			}
		})
	}
}

func TestGridLength(t *testing.T) {
	opts := DefaultOptions()
	if got := opts.GridLength(); math.Abs(float64(got-0.1)) > 1e-7 {
		t.Errorf("expected dx 0.1, got %f", got)
	}
}

func TestReadbackNewtons(t *testing.T) {
	r := ForceReadback{
		Dt:     0.5,
		Dx:     0.1,
		Forces: []kernels.SolidForce{{Force: mgl32.Vec2{1, -2}, Torque: 4}},
	}
	f, torque := r.Newtons(0)
	if !f.ApproxEqual(mgl32.Vec2{0.2, -0.4}) {
		t.Errorf("expected force (0.2, -0.4), got %v", f)
	}
	if math.Abs(float64(torque-0.8)) > 1e-6 {
		t.Errorf("expected torque 0.8, got %f", torque)
	}

	if f, _ := r.Newtons(3); f != (mgl32.Vec2{}) {
		t.Errorf("expected zero force out of range, got %v", f)
	}
	r.Dt = 0
	if f, _ := r.Newtons(0); f != (mgl32.Vec2{}) {
		t.Errorf("expected zero force for dt 0, got %v", f)
	}
}

type harness struct {
	t   *testing.T
	sim *Simulation
	id  DomainID

	mu        sync.Mutex
	readbacks []ForceReadback
}

func newHarness(t *testing.T, s Settings, opts Options) *harness {
	t.Helper()
	sim, err := NewSimulation(compute.NewDevice(compute.NewSerialBackend()), opts)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{t: t, sim: sim}
	sim.OnReadback(func(r ForceReadback) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.readbacks = append(h.readbacks, r)
	})
	h.id, err = sim.Add(s)
	if err != nil {
		t.Fatal(err)
	}
	sim.LoadShaders()
	sim.WaitPipelines()
	t.Cleanup(sim.Close)
	return h
}

func (h *harness) run(ticks int, dt float32) {
	h.t.Helper()
	for n := 1; n <= ticks; n++ {
		if err := h.sim.Poll(context.Background(), h.id, Tick{Number: uint64(n), Dt: dt}); err != nil {
			h.t.Fatalf("tick %d: %v", n, err)
		}
	}
	h.sim.Close()
}

func (h *harness) fields() Fields {
	h.t.Helper()
	f, err := h.sim.Snapshot(h.id)
	if err != nil {
		h.t.Fatal(err)
	}
	return f
}

func (h *harness) latest() ForceReadback {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out ForceReadback
	for _, r := range h.readbacks {
		if r.Tick > out.Tick {
			out = r
		}
	}
	return out
}

func finite(values []float32) bool {
	for _, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

func TestStillFluidStaysStill(t *testing.T) {
	s := DefaultSettings()
	s.Gravity = mgl32.Vec2{}
	h := newHarness(t, s, DefaultOptions())
	h.run(1, 1.0/60)
	f := h.fields()

	for k, v := range f.U {
		if v != 0 {
			t.Fatalf("expected u = 0 at face %d, got %f", k, v)
		}
	}
	for k, v := range f.V {
		if v != 0 {
			t.Fatalf("expected v = 0 at face %d, got %f", k, v)
		}
	}
	for k, p := range f.Pressure {
		if p != 0 {
			t.Fatalf("expected p = 0 at cell %d, got %f", k, p)
		}
	}
	surface := float32(s.Height) * s.InitialFluidLevel
	for j := 0; j < f.Height; j++ {
		for i := 0; i < f.Width; i++ {
			initial := float32(j) + 0.5 - surface
			got := f.LevelsetAir[f.Cell(i, j)]
			if (initial < 0) != (got < 0) {
				t.Fatalf("expected cell (%d, %d) to keep its side of the surface, got %f", i, j, got)
			}
		}
	}
}

func TestVolumeStableWithoutGravity(t *testing.T) {
	s := DefaultSettings()
	s.Width, s.Height = 32, 32
	s.Gravity = mgl32.Vec2{}
	h := newHarness(t, s, DefaultOptions())
	h.run(100, 1.0/60)

	initial := int(s.Width) * int(float32(s.Height)*s.InitialFluidLevel)
	got := 0
	for _, v := range h.fields().LevelsetAir {
		if v < 0 {
			got++
		}
	}
	if diff := got - initial; diff > int(s.Width) || diff < -int(s.Width) {
		t.Errorf("expected fluid cell count to stay near %d, got %d", initial, got)
	}
}

func TestHydrostaticColumn(t *testing.T) {
	const dt = 1.0 / 60
	s := DefaultSettings()
	h := newHarness(t, s, DefaultOptions())
	h.run(50, dt)
	f := h.fields()

	for name, values := range map[string][]float32{
		"u": f.U, "v": f.V, "pressure": f.Pressure, "levelset": f.LevelsetAir,
	} {
		if !finite(values) {
			t.Fatalf("expected finite %s field", name)
		}
	}

	lo, hi := f.Height, 0
	for i := 0; i < f.Width; i++ {
		depth := 0
		for j := 0; j < f.Height; j++ {
			if f.LevelsetAir[f.Cell(i, j)] < 0 {
				depth++
			}
		}
		lo, hi = min(lo, depth), max(hi, depth)
	}
	if hi-lo > 1 {
		t.Errorf("expected a flat surface, column depths range %d..%d", lo, hi)
	}
	if lo < 62 || hi > 66 {
		t.Errorf("expected the surface near row 64, got depths %d..%d", lo, hi)
	}

	var worst float32
	for j := 0; j < f.Height; j++ {
		for i := 0; i < f.Width; i++ {
			if f.LevelsetAir[f.Cell(i, j)] > -1.5 {
				continue
			}
			// grid units: cells per step
			div := (f.UAt(i+1, j) - f.UAt(i, j) + f.VAt(i, j+1) - f.VAt(i, j)) * dt / f.Dx
			worst = max(worst, float32(math.Abs(float64(div))))
		}
	}
	if worst >= 1e-3 {
		t.Errorf("expected divergence-free interior, max |div| %g", worst)
	}
}

func TestBuoyancyOnSubmergedBall(t *testing.T) {
	const (
		radius = 0.4
		dt     = 1.0 / 60
	)
	s := DefaultSettings()
	s.Width, s.Height = 32, 32
	s.InitialFluidLevel = 0.75
	h := newHarness(t, s, Options{LengthUnit: 10, JacobiIterations: 1000, ExtrapolationPasses: 4})
	h.sim.SetBodies([]obstacle.Body{{
		Collider:  obstacle.Ball{Radius: radius},
		Transform: obstacle.Transform2D(mgl32.Vec2{0, -0.6}, 0),
		Type:      obstacle.Static,
	}})
	h.run(8, dt)

	r := h.latest()
	if r.Tick != 8 {
		t.Fatalf("expected the last readback for tick 8, got %d", r.Tick)
	}
	force, _ := r.Newtons(0)
	expected := s.Rho * 9.81 * math.Pi * radius * radius
	if force.Y() < 0.5*expected || force.Y() > 2*expected {
		t.Errorf("expected buoyancy near %f N, got %f", expected, force.Y())
	}
	if math.Abs(float64(force.X())) > 0.05*float64(force.Y()) {
		t.Errorf("expected negligible horizontal force, got %f against %f", force.X(), force.Y())
	}
	for id := 1; id < len(r.Forces); id++ {
		if r.Forces[id] != (kernels.SolidForce{}) {
			t.Fatalf("expected no force on unused solid %d, got %v", id, r.Forces[id])
		}
	}
}

func TestPointForceMovesFluid(t *testing.T) {
	s := DefaultSettings()
	s.Width, s.Height = 32, 32
	s.Gravity = mgl32.Vec2{}
	h := newHarness(t, s, DefaultOptions())
	if err := h.sim.AddForce(h.id, kernels.LocalForce{
		Force:    mgl32.Vec2{5000, 0},
		Position: mgl32.Vec2{0, -0.8},
	}); err != nil {
		t.Fatal(err)
	}
	h.run(1, 1.0/60)
	f := h.fields()

	var moving bool
	for _, v := range f.U {
		if v != 0 {
			moving = true
			break
		}
	}
	if !moving {
		t.Error("expected the point force to move the fluid")
	}
}
