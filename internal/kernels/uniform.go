package kernels

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SimulationUniform is the per-domain parameter block every kernel reads.
// FluidTransform maps domain-local metres (origin at the grid centre, y up)
// to world space.
type SimulationUniform struct {
	Dx                float32
	Dt                float32
	Rho               float32
	Gravity           mgl32.Vec2
	InitialFluidLevel float32
	FluidTransform    mgl32.Mat4
	FluidInverse      mgl32.Mat4
	Width             uint32
	Height            uint32
}

// NewSimulationUniform fills the derived fields.
func NewSimulationUniform(dx, dt, rho float32, gravity mgl32.Vec2, level float32, transform mgl32.Mat4, width, height uint32) SimulationUniform {
	return SimulationUniform{
		Dx:                dx,
		Dt:                dt,
		Rho:               rho,
		Gravity:           gravity,
		InitialFluidLevel: level,
		FluidTransform:    transform,
		FluidInverse:      transform.Inv(),
		Width:             width,
		Height:            height,
	}
}

// GridToWorld maps a grid coordinate (cell units, origin at the lower-left
// corner) to world space.
func (u *SimulationUniform) GridToWorld(g mgl32.Vec2) mgl32.Vec2 {
	lx := (g.X() - float32(u.Width)/2) * u.Dx
	ly := (g.Y() - float32(u.Height)/2) * u.Dx
	w := u.FluidTransform.Mul4x1(mgl32.Vec4{lx, ly, 0, 1})
	return mgl32.Vec2{w.X(), w.Y()}
}

// WorldToGrid is the inverse of GridToWorld.
func (u *SimulationUniform) WorldToGrid(p mgl32.Vec2) mgl32.Vec2 {
	l := u.FluidInverse.Mul4x1(mgl32.Vec4{p.X(), p.Y(), 0, 1})
	return mgl32.Vec2{
		l.X()/u.Dx + float32(u.Width)/2,
		l.Y()/u.Dx + float32(u.Height)/2,
	}
}

// WorldDirToGrid rotates a world-space vector into the grid frame. The
// magnitude is unchanged.
func (u *SimulationUniform) WorldDirToGrid(v mgl32.Vec2) mgl32.Vec2 {
	l := u.FluidInverse.Mul4x1(mgl32.Vec4{v.X(), v.Y(), 0, 0})
	return mgl32.Vec2{l.X(), l.Y()}
}

// GridDirToWorld rotates a grid-frame vector into world space.
func (u *SimulationUniform) GridDirToWorld(v mgl32.Vec2) mgl32.Vec2 {
	w := u.FluidTransform.Mul4x1(mgl32.Vec4{v.X(), v.Y(), 0, 0})
	return mgl32.Vec2{w.X(), w.Y()}
}

// JumpFloodingUniform carries the offset of one jump flooding pass.
type JumpFloodingUniform struct {
	Step uint32
}

// ExtrapolationUniform selects the distance band one extrapolation pass
// fills. Faces beyond the band of the last pass are zeroed.
type ExtrapolationUniform struct {
	Band uint32
	Last bool
}

// ArrowUniform is the block size of the velocity overlay.
type ArrowUniform struct {
	BinSize uint32
}

// LocalForce is a point force injected by the host, in world units.
type LocalForce struct {
	Force    mgl32.Vec2
	Position mgl32.Vec2
}

// SolidForce is the force and torque accumulated for one solid id.
type SolidForce struct {
	Force  mgl32.Vec2
	Torque float32
}

// Arrow is one cell of the velocity overlay: the mean velocity of a bin of
// cells, both vectors in world space.
type Arrow struct {
	Position mgl32.Vec2
	Velocity mgl32.Vec2
}
