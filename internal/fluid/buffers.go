package fluid

import (
	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/obstacle"
)

// Buffers is the grid buffer set of one domain. Every buffer is allocated
// once when the domain is added and mutated in place by the step passes.
type Buffers struct {
	Width, Height int

	U0, V0 *compute.Texture
	U1, V1 *compute.Texture

	USolid, VSolid *compute.Texture
	LevelsetSolid  *compute.Texture
	SolidID        *compute.Texture

	P0, P1     *compute.Texture
	Divergence *compute.Texture

	LevelsetAir0 *compute.Texture
	LevelsetAir1 *compute.Texture

	SeedsX [2]*compute.Texture
	SeedsY [2]*compute.Texture

	ForceX, ForceY, Torque *compute.AtomicBins
	ForcesToSolid          *compute.StorageBuffer[kernels.SolidForce]

	Obstacles   *compute.StorageBuffer[obstacle.SolidObstacle]
	LocalForces *compute.StorageBuffer[kernels.LocalForce]
}

func NewBuffers(w, h int) *Buffers {
	f32 := func(label string, tw, th int) *compute.Texture {
		return compute.NewTexture(label, compute.R32Float, tw, th)
	}
	b := &Buffers{
		Width:  w,
		Height: h,

		U0: f32("u0", w+1, h),
		V0: f32("v0", w, h+1),
		U1: f32("u1", w+1, h),
		V1: f32("v1", w, h+1),

		USolid:        f32("u_solid", w+1, h),
		VSolid:        f32("v_solid", w, h+1),
		LevelsetSolid: f32("levelset_solid", w, h),
		SolidID:       compute.NewTexture("solid_id", compute.R32Sint, w, h),

		P0:         f32("p0", w, h),
		P1:         f32("p1", w, h),
		Divergence: f32("divergence", w, h),

		LevelsetAir0: f32("levelset_air0", w, h),
		LevelsetAir1: f32("levelset_air1", w, h),

		SeedsX: [2]*compute.Texture{f32("seeds_x0", w, h), f32("seeds_x1", w, h)},
		SeedsY: [2]*compute.Texture{f32("seeds_y0", w, h), f32("seeds_y1", w, h)},

		ForceX: compute.NewAtomicBins("force_x", obstacle.MaxSolids),
		ForceY: compute.NewAtomicBins("force_y", obstacle.MaxSolids),
		Torque: compute.NewAtomicBins("torque", obstacle.MaxSolids),

		ForcesToSolid: compute.NewStorageBuffer[kernels.SolidForce]("forces_to_solid", obstacle.MaxSolids),
		Obstacles:     compute.NewStorageBuffer[obstacle.SolidObstacle]("obstacles", obstacle.MaxSolids),
		LocalForces:   compute.NewStorageBuffer[kernels.LocalForce]("local_forces", MaxLocalForces),
	}
	b.LevelsetSolid.Fill(kernels.FarDistance)
	b.SolidID.Fill(-1)
	b.ForcesToSolid.Write(make([]kernels.SolidForce, obstacle.MaxSolids))
	return b
}

// Fields is a copy of the outputs of one domain.
type Fields struct {
	Width, Height int
	Dx            float32

	U, V          []float32
	Pressure      []float32
	Divergence    []float32
	LevelsetAir   []float32
	LevelsetSolid []float32
	SolidID       []int32
}

func (b *Buffers) snapshot(dx float32) Fields {
	ids := make([]int32, len(b.SolidID.Int32()))
	copy(ids, b.SolidID.Int32())
	return Fields{
		Width:         b.Width,
		Height:        b.Height,
		Dx:            dx,
		U:             b.U0.Snapshot(),
		V:             b.V0.Snapshot(),
		Pressure:      b.P1.Snapshot(),
		Divergence:    b.Divergence.Snapshot(),
		LevelsetAir:   b.LevelsetAir0.Snapshot(),
		LevelsetSolid: b.LevelsetSolid.Snapshot(),
		SolidID:       ids,
	}
}

// Cell returns the index of cell (i, j) in the cell-centred fields.
func (f *Fields) Cell(i, j int) int { return j*f.Width + i }

// UAt is the x-velocity on the left face of cell (i, j).
func (f *Fields) UAt(i, j int) float32 { return f.U[j*(f.Width+1)+i] }

// VAt is the y-velocity on the bottom face of cell (i, j).
func (f *Fields) VAt(i, j int) float32 { return f.V[j*f.Width+i] }
