package fluid

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultLengthUnit is the number of grid cells per metre.
	DefaultLengthUnit = 10

	DefaultJacobiIterations    = 50
	DefaultExtrapolationPasses = 4

	// MaxLocalForces is the capacity of the per-tick point force list.
	MaxLocalForces = 256

	// preferredAlignment is the grid size multiple the face dispatches cover
	// without partial workgroups.
	preferredAlignment = 64
)

// Settings describe one fluid domain. They are fixed when the domain is
// added; only the transform may change afterwards.
type Settings struct {
	Width             uint32
	Height            uint32
	Rho               float32
	Gravity           mgl32.Vec2
	InitialFluidLevel float32
	Transform         mgl32.Mat4
}

func DefaultSettings() Settings {
	return Settings{
		Width:             128,
		Height:            128,
		Rho:               1000,
		Gravity:           mgl32.Vec2{0, -9.81},
		InitialFluidLevel: 0.5,
		Transform:         mgl32.Ident4(),
	}
}

// Validate checks s and returns the normalized settings. A size that is not
// a multiple of 64 and a fill level outside [0, 1] are corrected or
// tolerated with a warning.
func (s Settings) Validate() (Settings, error) {
	if s.Width == 0 || s.Height == 0 {
		return s, fmt.Errorf("%w: %dx%d", ErrInvalidSize, s.Width, s.Height)
	}
	if s.Rho <= 0 {
		return s, fmt.Errorf("%w: %g", ErrInvalidDensity, s.Rho)
	}
	if s.Width%preferredAlignment != 0 || s.Height%preferredAlignment != 0 {
		Logger().Warn("fluid grid size is not a multiple of 64",
			"width", s.Width, "height", s.Height)
	}
	if s.InitialFluidLevel < 0 || s.InitialFluidLevel > 1 {
		Logger().Warn("initial fluid level clamped to [0, 1]", "level", s.InitialFluidLevel)
		s.InitialFluidLevel = min(max(s.InitialFluidLevel, 0), 1)
	}
	if s.Transform == (mgl32.Mat4{}) {
		s.Transform = mgl32.Ident4()
	}
	return s, nil
}

// Options configure the solver shared by every domain of a Simulation.
type Options struct {
	// LengthUnit is the number of grid cells per metre; dx = 1/LengthUnit.
	LengthUnit float32
	// JacobiIterations counts forward+reverse sweep pairs per step.
	JacobiIterations int
	// ExtrapolationPasses is the width, in cells, of the velocity band
	// extended into the air.
	ExtrapolationPasses int
}

func DefaultOptions() Options {
	return Options{
		LengthUnit:          DefaultLengthUnit,
		JacobiIterations:    DefaultJacobiIterations,
		ExtrapolationPasses: DefaultExtrapolationPasses,
	}
}

func (o Options) validate() error {
	if o.LengthUnit <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidLengthUnit, o.LengthUnit)
	}
	if o.JacobiIterations < 0 || o.ExtrapolationPasses < 0 {
		return fmt.Errorf("%w: %d jacobi iterations, %d extrapolation passes",
			ErrInvalidSolver, o.JacobiIterations, o.ExtrapolationPasses)
	}
	return nil
}

// GridLength is the world size of one cell.
func (o Options) GridLength() float32 { return 1 / o.LengthUnit }
