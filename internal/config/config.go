package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/host"
	"github.com/san-kum/eulerfluid/internal/obstacle"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWidth      = 128
	DefaultHeight     = 64
	DefaultRho        = 1000.0
	DefaultGravity    = -9.81
	DefaultFluidLevel = 0.6
	DefaultLengthUnit = fluid.DefaultLengthUnit
	DefaultJacobi     = fluid.DefaultJacobiIterations
	DefaultBands      = fluid.DefaultExtrapolationPasses
	DefaultBackend    = "auto"
	DefaultTicks      = 300
	DefaultPhysicsHz  = 60.0
	DefaultDensity    = 500.0
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Preset  string        `yaml:"preset,omitempty"`
	Domains []FluidConfig `yaml:"domains"`
	Solver  SolverConfig  `yaml:"solver"`
	Run     RunConfig     `yaml:"run"`
	Bodies  []BodyConfig  `yaml:"bodies,omitempty"`
	Events  []Event       `yaml:"events,omitempty"`
}

// FluidConfig describes one fluid domain. Position and Rotation place the
// grid centre in the world.
type FluidConfig struct {
	Width             uint32     `yaml:"width"`
	Height            uint32     `yaml:"height"`
	Rho               float32    `yaml:"rho"`
	Gravity           [2]float32 `yaml:"gravity"`
	InitialFluidLevel float32    `yaml:"initial_fluid_level"`
	Position          [2]float32 `yaml:"position"`
	Rotation          float32    `yaml:"rotation"`
}

type SolverConfig struct {
	LengthUnit          float32 `yaml:"length_unit"`
	JacobiIterations    int     `yaml:"jacobi_iterations"`
	ExtrapolationPasses int     `yaml:"extrapolation_passes"`
	Backend             string  `yaml:"backend"`
}

type RunConfig struct {
	Ticks     int     `yaml:"ticks"`
	PhysicsHz float64 `yaml:"physics_hz"`
	// Scenario is an optional path to a scenario file.
	Scenario string `yaml:"scenario,omitempty"`
}

// BodyConfig describes a rigid body. Shape selects which dimension fields
// apply: ball uses Radius, cuboid HalfExtents, triangle Vertices and capsule
// HalfHeight and Radius.
type BodyConfig struct {
	Shape           string        `yaml:"shape"`
	Radius          float32       `yaml:"radius,omitempty"`
	HalfExtents     [2]float32    `yaml:"half_extents,omitempty"`
	Vertices        [3][2]float32 `yaml:"vertices,omitempty"`
	HalfHeight      float32       `yaml:"half_height,omitempty"`
	Position        [2]float32    `yaml:"position"`
	Rotation        float32       `yaml:"rotation,omitempty"`
	Velocity        [2]float32    `yaml:"velocity,omitempty"`
	AngularVelocity float32       `yaml:"angular_velocity,omitempty"`
	Type            string        `yaml:"type"`
	Density         float32       `yaml:"density,omitempty"`
}

func DefaultFluid() FluidConfig {
	return FluidConfig{
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		Rho:               DefaultRho,
		Gravity:           [2]float32{0, DefaultGravity},
		InitialFluidLevel: DefaultFluidLevel,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Domains: []FluidConfig{DefaultFluid()},
		Solver: SolverConfig{
			LengthUnit:          DefaultLengthUnit,
			JacobiIterations:    DefaultJacobi,
			ExtrapolationPasses: DefaultBands,
			Backend:             DefaultBackend,
		},
		Run: RunConfig{
			Ticks:     DefaultTicks,
			PhysicsHz: DefaultPhysicsHz,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// fillDefaults completes list entries, which yaml decodes from zero values.
func (c *Config) fillDefaults() {
	for i := range c.Domains {
		d := &c.Domains[i]
		if d.Width == 0 {
			d.Width = DefaultWidth
		}
		if d.Height == 0 {
			d.Height = DefaultHeight
		}
		if d.Rho == 0 {
			d.Rho = DefaultRho
		}
	}
	for i := range c.Bodies {
		if c.Bodies[i].Density == 0 {
			c.Bodies[i].Density = DefaultDensity
		}
	}
	for _, e := range c.Events {
		if e.Spawn != nil && e.Spawn.Density == 0 {
			e.Spawn.Density = DefaultDensity
		}
	}
}

// Validate checks the fields that fluid and host would otherwise reject
// later with less context.
func (c *Config) Validate() error {
	if len(c.Domains) == 0 {
		return fmt.Errorf("%w: no fluid domains", ErrInvalidConfig)
	}
	for i, d := range c.Domains {
		if _, err := d.Settings().Validate(); err != nil {
			return fmt.Errorf("%w: domain %d: %v", ErrInvalidConfig, i, err)
		}
	}
	if c.Solver.LengthUnit <= 0 {
		return fmt.Errorf("%w: length_unit %g", ErrInvalidConfig, c.Solver.LengthUnit)
	}
	if c.Run.PhysicsHz <= 0 {
		return fmt.Errorf("%w: physics_hz %g", ErrInvalidConfig, c.Run.PhysicsHz)
	}
	for i, b := range c.Bodies {
		if _, err := b.Collider(); err != nil {
			return fmt.Errorf("%w: body %d: %v", ErrInvalidConfig, i, err)
		}
		if _, err := obstacle.ParseBodyType(b.Type); err != nil {
			return fmt.Errorf("%w: body %d: %v", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

// Options returns the solver options shared by every domain.
func (s SolverConfig) Options() fluid.Options {
	return fluid.Options{
		LengthUnit:          s.LengthUnit,
		JacobiIterations:    s.JacobiIterations,
		ExtrapolationPasses: s.ExtrapolationPasses,
	}
}

// Transform places the grid centre at Position (metres) rotated by Rotation.
func (f FluidConfig) Transform() mgl32.Mat4 {
	return obstacle.Transform2D(mgl32.Vec2(f.Position), f.Rotation)
}

// Settings converts f to domain settings. Sizes are in cells.
func (f FluidConfig) Settings() fluid.Settings {
	return fluid.Settings{
		Width:             f.Width,
		Height:            f.Height,
		Rho:               f.Rho,
		Gravity:           mgl32.Vec2(f.Gravity),
		InitialFluidLevel: f.InitialFluidLevel,
		Transform:         f.Transform(),
	}
}

// Collider builds the collision shape of b.
func (b BodyConfig) Collider() (obstacle.Collider, error) {
	switch b.Shape {
	case "ball", "circle":
		if b.Radius <= 0 {
			return nil, fmt.Errorf("ball radius %g", b.Radius)
		}
		return obstacle.Ball{Radius: b.Radius}, nil
	case "cuboid", "rectangle":
		if b.HalfExtents[0] <= 0 || b.HalfExtents[1] <= 0 {
			return nil, fmt.Errorf("cuboid half extents %v", b.HalfExtents)
		}
		return obstacle.Cuboid{HalfExtents: mgl32.Vec2(b.HalfExtents)}, nil
	case "triangle":
		t := obstacle.Triangle{
			A: mgl32.Vec2(b.Vertices[0]),
			B: mgl32.Vec2(b.Vertices[1]),
			C: mgl32.Vec2(b.Vertices[2]),
		}
		if t.Area() == 0 {
			return nil, errors.New("degenerate triangle")
		}
		return t, nil
	case "capsule":
		return obstacle.Capsule{HalfHeight: b.HalfHeight, Radius: b.Radius}, nil
	default:
		return nil, fmt.Errorf("unknown shape %q", b.Shape)
	}
}

// Spec converts b to a host body.
func (b BodyConfig) Spec() (host.BodySpec, error) {
	collider, err := b.Collider()
	if err != nil {
		return host.BodySpec{}, err
	}
	typ, err := obstacle.ParseBodyType(b.Type)
	if err != nil {
		return host.BodySpec{}, err
	}
	return host.BodySpec{
		Collider:        collider,
		Position:        mgl32.Vec2(b.Position),
		Angle:           b.Rotation,
		LinearVelocity:  mgl32.Vec2(b.Velocity),
		AngularVelocity: b.AngularVelocity,
		Type:            typ,
		Density:         b.Density,
	}, nil
}
