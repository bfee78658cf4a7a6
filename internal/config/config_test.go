package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/eulerfluid/internal/obstacle"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Domains) != 1 {
		t.Fatalf("expected 1 domain, got %d", len(cfg.Domains))
	}
	if cfg.Domains[0].Rho != DefaultRho {
		t.Errorf("expected rho %f, got %f", DefaultRho, cfg.Domains[0].Rho)
	}
	if cfg.Solver.LengthUnit <= 0 {
		t.Error("length unit should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("rigid_body")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Domains[0].InitialFluidLevel != 0.7 {
		t.Errorf("expected level 0.7, got %f", cfg.Domains[0].InitialFluidLevel)
	}
	if len(cfg.Bodies) != 3 {
		t.Errorf("expected 3 bodies, got %d", len(cfg.Bodies))
	}

	cfg.Bodies = nil
	if again := GetPreset("rigid_body"); len(again.Bodies) != 3 {
		t.Error("expected presets to be independent copies")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsValid(t *testing.T) {
	names := ListPresets()
	expected := []string{"multiple", "rigid_body", "solid_body", "various_shapes", "water_surface"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d presets, got %v", len(expected), names)
	}
	for i, name := range names {
		if name != expected[i] {
			t.Errorf("expected preset %s, got %s", expected[i], name)
		}
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if err := cfg.Validate(); err != nil {
				t.Fatal(err)
			}
			if _, err := cfg.Scenario(); err != nil {
				t.Fatal(err)
			}
		})
	}

	if n := len(GetPreset("multiple").Domains); n != 8 {
		t.Errorf("expected 8 domains in multiple, got %d", n)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	cfg := GetPreset("various_shapes")
	cfg.Run.Ticks = 42

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Run.Ticks != 42 {
		t.Errorf("expected 42 ticks, got %d", loaded.Run.Ticks)
	}
	if len(loaded.Bodies) != len(cfg.Bodies) {
		t.Fatalf("expected %d bodies, got %d", len(cfg.Bodies), len(loaded.Bodies))
	}
	if loaded.Bodies[4] != cfg.Bodies[4] {
		t.Errorf("expected body %v, got %v", cfg.Bodies[4], loaded.Bodies[4])
	}
}

func TestLoadFillsListDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte(`
domains:
  - initial_fluid_level: 0.4
bodies:
  - shape: ball
    radius: 0.5
solver:
  jacobi_iterations: 10
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	d := cfg.Domains[0]
	if d.Width != DefaultWidth || d.Height != DefaultHeight || d.Rho != DefaultRho {
		t.Errorf("expected default size and density, got %dx%d rho %f", d.Width, d.Height, d.Rho)
	}
	if cfg.Solver.JacobiIterations != 10 || cfg.Solver.LengthUnit != DefaultLengthUnit {
		t.Errorf("expected merged solver section, got %+v", cfg.Solver)
	}
	if cfg.Bodies[0].Density != DefaultDensity {
		t.Errorf("expected default density, got %f", cfg.Bodies[0].Density)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no domains", func(c *Config) { c.Domains = nil }},
		{"zero density", func(c *Config) { c.Domains[0].Rho = -1 }},
		{"zero length unit", func(c *Config) { c.Solver.LengthUnit = 0 }},
		{"zero physics rate", func(c *Config) { c.Run.PhysicsHz = 0 }},
		{"unknown shape", func(c *Config) { c.Bodies = []BodyConfig{{Shape: "star"}} }},
		{"bad body type", func(c *Config) { c.Bodies = []BodyConfig{ball(1, 0, 0, 1)}; c.Bodies[0].Type = "floating" }},
		{"flat triangle", func(c *Config) { c.Bodies = []BodyConfig{{Shape: "triangle"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestBodySpec(t *testing.T) {
	tests := []struct {
		body     BodyConfig
		expected string
	}{
		{ball(0.5, 0, 0, 1), "ball"},
		{cuboid(1, 2, 0, 0, 1), "cuboid"},
		{triangle(1, 0, 0, 1), "triangle"},
		{BodyConfig{Shape: "capsule", HalfHeight: 1, Radius: 0.5}, "capsule"},
	}

	for _, tt := range tests {
		spec, err := tt.body.Spec()
		if err != nil {
			t.Errorf("%s: %v", tt.expected, err)
			continue
		}
		if spec.Collider.ColliderName() != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, spec.Collider.ColliderName())
		}
		if spec.Type != obstacle.Dynamic {
			t.Errorf("%s: expected dynamic body, got %s", tt.expected, spec.Type)
		}
	}
}

func TestScenarioEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	data := []byte(`
name: splash
events:
  - at_tick: 20
    spawn:
      shape: ball
      radius: 0.3
      position: [0, 2]
      type: dynamic
  - at_tick: 5
    force:
      domain: 0
      force: [0, -100]
      position: [1, 0]
      duration: 3
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Events[0].AtTick != 5 {
		t.Errorf("expected events sorted by tick, got first at %d", s.Events[0].AtTick)
	}

	active := map[uint64]int{4: 0, 5: 1, 7: 1, 8: 0}
	for tick, expected := range active {
		if got := len(s.Forces(tick)); got != expected {
			t.Errorf("tick %d: expected %d forces, got %d", tick, expected, got)
		}
	}
	spawns := s.Spawns(20)
	if len(spawns) != 1 || spawns[0].Density != DefaultDensity {
		t.Errorf("expected one spawn with default density, got %+v", spawns)
	}

	cfg := DefaultConfig()
	cfg.Events = []Event{pulse(1, 0, 1, 0, 0, 0, 1)}
	cfg.Run.Scenario = path
	merged, err := cfg.Scenario()
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Events) != 3 || merged.Events[0].AtTick != 1 {
		t.Errorf("expected inline and file events merged in tick order, got %+v", merged.Events)
	}
}

func TestScenarioRejectsAmbiguousEvents(t *testing.T) {
	s := &Scenario{Events: []Event{{AtTick: 1}}}
	if err := s.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	s = &Scenario{Events: []Event{pulse(0, 0, 1, 0, 0, 0, 1)}}
	if err := s.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for tick 0, got %v", err)
	}
}
