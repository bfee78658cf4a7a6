package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/san-kum/eulerfluid/internal/config"
	"github.com/san-kum/eulerfluid/internal/storage"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Domains[0].Width = 16
	cfg.Domains[0].Height = 16
	cfg.Domains[0].InitialFluidLevel = 0.75
	cfg.Solver.JacobiIterations = 4
	cfg.Solver.Backend = "serial"
	return cfg
}

type memRecorder struct {
	rows []storage.Sample
}

func (m *memRecorder) Append(samples ...storage.Sample) error {
	m.rows = append(m.rows, samples...)
	return nil
}

func TestSimulatorRun(t *testing.T) {
	cfg := smallConfig()
	cfg.Bodies = []config.BodyConfig{
		{Shape: "ball", Radius: 0.3, Position: [2]float32{0, -0.4}, Type: "static", Density: 500},
	}

	rec := &memRecorder{}
	frames := 0
	sim, err := New(cfg, WithRecorder(rec), WithObserver(ObserverFunc(func(f Frame) {
		if f.Fields == nil || f.Fields.Width != 16 {
			t.Errorf("expected 16 wide fields, got %+v", f.Fields)
		}
		frames++
	})))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	defer sim.Close()

	result, err := sim.Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Ticks != 3 {
		t.Errorf("expected 3 ticks, got %d", result.Ticks)
	}
	if len(result.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(result.Samples))
	}
	if len(rec.rows) != 3 {
		t.Errorf("expected 3 recorded rows, got %d", len(rec.rows))
	}
	if frames != 3 {
		t.Errorf("expected 3 frames, got %d", frames)
	}
	for i, s := range result.Samples {
		if s.Tick != uint64(i+1) {
			t.Errorf("expected tick %d, got %d", i+1, s.Tick)
		}
		if s.FluidVolume <= 0 {
			t.Errorf("tick %d: expected fluid, got volume %f", s.Tick, s.FluidVolume)
		}
		if math.IsNaN(s.Fy) || math.IsInf(s.Fy, 0) {
			t.Errorf("tick %d: expected finite force, got %f", s.Tick, s.Fy)
		}
	}

	rb := result.Readbacks
	if rb.Applied == 0 || rb.Applied+rb.Stale != 3 {
		t.Errorf("expected 3 readbacks with at least one applied, got %+v", rb)
	}

	found := false
	for _, timing := range result.Timings {
		if timing.Scope == "solve_pressure" {
			found = true
		}
	}
	if !found {
		t.Error("expected solve_pressure timing")
	}
	for _, name := range []string{"max_divergence", "volume_drift", "surface_roughness", "sdf_error"} {
		if _, ok := result.Metrics[name]; !ok {
			t.Errorf("expected metric %s", name)
		}
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*config.Config)
		expected error
	}{
		{"no domains", func(c *config.Config) { c.Domains = nil }, config.ErrInvalidConfig},
		{"force on missing domain", func(c *config.Config) {
			c.Events = []config.Event{{AtTick: 1, Force: &config.ForceEvent{Domain: 3}}}
		}, ErrEventDomain},
		{"ambiguous event", func(c *config.Config) { c.Events = []config.Event{{AtTick: 1}} }, config.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.modify(cfg)
			if _, err := New(cfg); !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestSimulatorInvalidTicks(t *testing.T) {
	sim, err := New(smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	if _, err := sim.Run(context.Background(), 0); !errors.Is(err, ErrInvalidTicks) {
		t.Errorf("expected ErrInvalidTicks, got %v", err)
	}
}

func TestSimulatorCancelled(t *testing.T) {
	sim, err := New(smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := sim.Run(ctx, 10)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.Ticks != 0 {
		t.Errorf("expected no ticks, got %+v", result)
	}
}

func TestScenarioEventsApplied(t *testing.T) {
	cfg := smallConfig()
	cfg.Events = []config.Event{
		{AtTick: 2, Spawn: &config.BodyConfig{Shape: "ball", Radius: 0.2, Position: [2]float32{0, 0.5}, Type: "dynamic", Density: 500}},
		{AtTick: 1, Force: &config.ForceEvent{Force: [2]float32{2000, 0}, Position: [2]float32{0, -0.4}, Duration: 2}},
	}

	sim, err := New(cfg, WithSampleEvery(2))
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	result, err := sim.Run(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if n := sim.World().Len(); n != 1 {
		t.Errorf("expected 1 spawned body, got %d", n)
	}
	if len(result.Samples) != 2 {
		t.Errorf("expected samples on ticks 2 and 4, got %d", len(result.Samples))
	}
}

func TestSplit(t *testing.T) {
	cfg := config.GetPreset("multiple")
	cfgs, err := Split(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfgs) != 8 {
		t.Fatalf("expected 8 configs, got %d", len(cfgs))
	}
	for i, c := range cfgs {
		if len(c.Domains) != 1 {
			t.Errorf("config %d: expected 1 domain, got %d", i, len(c.Domains))
		}
		if len(c.Events) != 1 || c.Events[0].Force.Domain != 0 {
			t.Errorf("config %d: expected its own pulse on domain 0, got %+v", i, c.Events)
		}
		if c.Domains[0].Position != cfg.Domains[i].Position {
			t.Errorf("config %d: expected position %v, got %v", i, cfg.Domains[i].Position, c.Domains[0].Position)
		}
	}
	if cfgs[3].Events[0].AtTick != cfg.Events[3].AtTick {
		t.Errorf("expected pulse tick %d, got %d", cfg.Events[3].AtTick, cfgs[3].Events[0].AtTick)
	}
}

func TestRunDomains(t *testing.T) {
	cfg := smallConfig()
	cfg.Domains = append(cfg.Domains, cfg.Domains[0])
	cfg.Domains[1].InitialFluidLevel = 0.5

	var mu sync.Mutex
	frames := 0
	results, err := RunDomains(context.Background(), cfg, 2, WithObserver(ObserverFunc(func(Frame) {
		mu.Lock()
		frames++
		mu.Unlock()
	})))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if len(r.Samples) != 2 {
			t.Fatalf("domain %d: expected 2 samples, got %d", i, len(r.Samples))
		}
		if r.Samples[0].Domain != uint32(i) {
			t.Errorf("expected domain %d, got %d", i, r.Samples[0].Domain)
		}
	}
	if results[1].Samples[0].FluidVolume >= results[0].Samples[0].FluidVolume {
		t.Error("expected the half-full domain to hold less fluid")
	}
	if frames != 4 {
		t.Errorf("expected 4 frames, got %d", frames)
	}
}
