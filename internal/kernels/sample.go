package kernels

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
)

// FarDistance is the solid levelset value of cells with no solid nearby.
const FarDistance = 1e4

// grid indexes the cell-centred (W×H), x-face ((W+1)×H) and y-face
// (W×(H+1)) arrays of one domain.
type grid struct {
	w, h int
}

func gridOf(u *SimulationUniform) grid { return grid{w: int(u.Width), h: int(u.Height)} }

func (g grid) c(i, j int) int  { return j*g.w + i }
func (g grid) fu(i, j int) int { return j*(g.w+1) + i }
func (g grid) fv(i, j int) int { return j*g.w + i }

func (g grid) inside(i, j int) bool { return i >= 0 && i < g.w && j >= 0 && j < g.h }

// cells holds the classification inputs shared by most kernels.
type cells struct {
	grid
	air   []float32
	solid []float32
}

func (c cells) isSolid(i, j int) bool { return c.solid[c.c(i, j)] < 0 }

func (c cells) isFluid(i, j int) bool {
	k := c.c(i, j)
	return c.solid[k] >= 0 && c.air[k] < 0
}

func (c cells) isAir(i, j int) bool {
	k := c.c(i, j)
	return c.solid[k] >= 0 && c.air[k] >= 0
}

// solidFaceU reports whether x-face (i, j) borders a solid cell or the
// domain wall.
func (c cells) solidFaceU(i, j int) bool {
	return i == 0 || i == c.w || c.isSolid(i-1, j) || c.isSolid(i, j)
}

func (c cells) solidFaceV(i, j int) bool {
	return j == 0 || j == c.h || c.isSolid(i, j-1) || c.isSolid(i, j)
}

// fluidFaceU reports whether a non-solid x-face touches a fluid cell.
func (c cells) fluidFaceU(i, j int) bool {
	return c.isFluid(i-1, j) || c.isFluid(i, j)
}

func (c cells) fluidFaceV(i, j int) bool {
	return c.isFluid(i, j-1) || c.isFluid(i, j)
}

// bilinear samples a w×h array at fractional index (fx, fy), clamped to the
// array bounds.
func bilinear(data []float32, w, h int, fx, fy float32) float32 {
	fx = clamp(fx, 0, float32(w-1))
	fy = clamp(fy, 0, float32(h-1))
	i0 := int(fx)
	j0 := int(fy)
	i1 := min(i0+1, w-1)
	j1 := min(j0+1, h-1)
	tx := fx - float32(i0)
	ty := fy - float32(j0)

	a := data[j0*w+i0]*(1-tx) + data[j0*w+i1]*tx
	b := data[j1*w+i0]*(1-tx) + data[j1*w+i1]*tx
	return a*(1-ty) + b*ty
}

// sampleU samples the x-velocity at grid coordinate p.
func (g grid) sampleU(u []float32, p mgl32.Vec2) float32 {
	return bilinear(u, g.w+1, g.h, p.X(), p.Y()-0.5)
}

func (g grid) sampleV(v []float32, p mgl32.Vec2) float32 {
	return bilinear(v, g.w, g.h+1, p.X()-0.5, p.Y())
}

func (g grid) sampleCenter(data []float32, p mgl32.Vec2) float32 {
	return bilinear(data, g.w, g.h, p.X()-0.5, p.Y()-0.5)
}

func (g grid) velocityAt(u, v []float32, p mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{g.sampleU(u, p), g.sampleV(v, p)}
}

// centerGradient is the central-difference gradient of a cell-centred
// field at p.
func (g grid) centerGradient(data []float32, p mgl32.Vec2) mgl32.Vec2 {
	const h = 0.5
	dx := g.sampleCenter(data, p.Add(mgl32.Vec2{h, 0})) - g.sampleCenter(data, p.Sub(mgl32.Vec2{h, 0}))
	dy := g.sampleCenter(data, p.Add(mgl32.Vec2{0, h})) - g.sampleCenter(data, p.Sub(mgl32.Vec2{0, h}))
	return mgl32.Vec2{dx, dy}.Mul(1 / (2 * h))
}

// pushOutOfSolid moves a backtraced point that landed inside a solid onto
// the solid surface.
func (g grid) pushOutOfSolid(solid []float32, p mgl32.Vec2) mgl32.Vec2 {
	phi := g.sampleCenter(solid, p)
	if phi >= 0 {
		return p
	}
	n := g.centerGradient(solid, p)
	l := n.Len()
	if l < 1e-6 {
		return p
	}
	return p.Sub(n.Mul(phi / l))
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sqrt32(v float32) float32 { return float32(math.Sqrt(float64(v))) }

func ceilDiv(a, b int) uint32 { return uint32((a + b - 1) / b) }

// binder resolves the textures of one bind group and checks their sizes.
type binder struct {
	g   *compute.BindGroup
	err error
}

func (b *binder) texture(binding uint32, w, h int) *compute.Texture {
	if b.err != nil {
		return nil
	}
	t, err := b.g.Texture(binding)
	if err != nil {
		b.err = err
		return nil
	}
	if tw, th := t.Size(); tw != w || th != h {
		b.err = fmt.Errorf("%s: expected %dx%d, got %dx%d: %w", t.Label(), w, h, tw, th, compute.ErrBindingMismatch)
		return nil
	}
	return t
}

func (b *binder) f32(binding uint32, w, h int) []float32 {
	t := b.texture(binding, w, h)
	if t == nil {
		return nil
	}
	return t.Float32()
}

func (b *binder) i32(binding uint32, w, h int) []int32 {
	t := b.texture(binding, w, h)
	if t == nil {
		return nil
	}
	return t.Int32()
}

func (b *binder) bins(binding uint32) *compute.AtomicBins {
	if b.err != nil {
		return nil
	}
	bins, err := b.g.Bins(binding)
	if err != nil {
		b.err = err
	}
	return bins
}

func bufferOf[T any](b *binder, binding uint32) *compute.StorageBuffer[T] {
	if b.err != nil {
		return nil
	}
	buf, err := compute.BufferBinding[T](b.g, binding)
	if err != nil {
		b.err = err
	}
	return buf
}

func uniformOf[T any](g *compute.BindGroup, binding uint32) (T, error) {
	u, err := compute.UniformBinding[T](g, binding)
	if err != nil {
		var zero T
		return zero, err
	}
	return u.Get(), nil
}

// simulation returns the simulation uniform bound at group 1.
func simulation(groups []*compute.BindGroup) (SimulationUniform, error) {
	if len(groups) < 2 {
		return SimulationUniform{}, fmt.Errorf("simulation uniform group missing: %w", compute.ErrMissingBinding)
	}
	u, err := uniformOf[SimulationUniform](groups[1], 0)
	if err != nil {
		return u, err
	}
	if u.Width == 0 || u.Height == 0 {
		return u, fmt.Errorf("grid size %dx%d: %w", u.Width, u.Height, compute.ErrBindingMismatch)
	}
	return u, nil
}
