// Package kernels holds the euler_fluid shader module: the grid kernels of
// one simulation step, their bind group layouts and dispatch geometry.
package kernels

import (
	"math"

	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/obstacle"
)

// ModuleName is the shader module every fluid pipeline is compiled from.
const ModuleName = "euler_fluid"

const (
	EntryInitialize          = "initialize"
	EntryUpdateSolid         = "update_solid"
	EntryUpdateSolidPressure = "update_solid_pressure"
	EntryAdvectU             = "advect_u"
	EntryAdvectV             = "advect_v"
	EntryApplyForceU         = "apply_force_u"
	EntryApplyForceV         = "apply_force_v"
	EntryDivergence          = "divergence"
	EntryJacobiIteration     = "jacobi_iteration"
	EntrySolveVelocityU      = "solve_velocity_u"
	EntrySolveVelocityV      = "solve_velocity_v"
	EntryExtrapolateU        = "extrapolate_u"
	EntryExtrapolateV        = "extrapolate_v"
	EntryAdvectLevelset      = "advect_levelset"
	EntryInitializeSeeds     = "initialize_seeds"
	EntryJumpFlooding        = "jump_flooding"
	EntryCalculateSDF        = "calculate_sdf"
	EntrySampleForces        = "sample_forces"
	EntryAccumulateForces    = "accumulate_forces"
	EntryVelocityArrows      = "construct_velocity_arrows"
)

var (
	// CenterWorkgroup covers one cell per invocation.
	CenterWorkgroup = compute.D2(8, 8)
	// XMajorWorkgroup walks x-faces in columns of 64.
	XMajorWorkgroup = compute.D2(1, 64)
	// YMajorWorkgroup walks y-faces in rows of 64.
	YMajorWorkgroup = compute.D2(64, 1)
	BinWorkgroup    = compute.D2(64, 1)
)

// Module returns the euler_fluid shader module.
func Module() *compute.ShaderModule {
	return compute.NewShaderModule(ModuleName).
		AddEntryPoint(EntryInitialize, initialize).
		AddEntryPoint(EntryUpdateSolid, updateSolid).
		AddEntryPoint(EntryUpdateSolidPressure, updateSolidPressure).
		AddEntryPoint(EntryAdvectU, advectU).
		AddEntryPoint(EntryAdvectV, advectV).
		AddEntryPoint(EntryApplyForceU, applyForceU).
		AddEntryPoint(EntryApplyForceV, applyForceV).
		AddEntryPoint(EntryDivergence, divergence).
		AddEntryPoint(EntryJacobiIteration, jacobiIteration).
		AddEntryPoint(EntrySolveVelocityU, solveVelocityU).
		AddEntryPoint(EntrySolveVelocityV, solveVelocityV).
		AddEntryPoint(EntryExtrapolateU, extrapolateU).
		AddEntryPoint(EntryExtrapolateV, extrapolateV).
		AddEntryPoint(EntryAdvectLevelset, advectLevelset).
		AddEntryPoint(EntryInitializeSeeds, initializeSeeds).
		AddEntryPoint(EntryJumpFlooding, jumpFlooding).
		AddEntryPoint(EntryCalculateSDF, calculateSDF).
		AddEntryPoint(EntrySampleForces, sampleForces).
		AddEntryPoint(EntryAccumulateForces, accumulateForces).
		AddEntryPoint(EntryVelocityArrows, velocityArrows)
}

func floatTex(b uint32, a compute.Access) compute.BindGroupLayoutEntry {
	return compute.StorageTextureEntry(b, compute.R32Float, a)
}

func intTex(b uint32, a compute.Access) compute.BindGroupLayoutEntry {
	return compute.StorageTextureEntry(b, compute.R32Sint, a)
}

// Layouts are the bind group layouts of the module. Group 1 of every
// pipeline is Uniform; group 2, where present, carries per-dispatch
// parameters.
type Layouts struct {
	Uniform         *compute.BindGroupLayout
	Initialize      *compute.BindGroupLayout
	UpdateSolid     *compute.BindGroupLayout
	SolidPressure   *compute.BindGroupLayout
	Advection       *compute.BindGroupLayout
	ApplyForces     *compute.BindGroupLayout
	Divergence      *compute.BindGroupLayout
	Jacobi          *compute.BindGroupLayout
	SolveVelocity   *compute.BindGroupLayout
	Extrapolate     *compute.BindGroupLayout
	ExtrapolateBand *compute.BindGroupLayout
	AdvectLevelset  *compute.BindGroupLayout
	InitializeSeeds *compute.BindGroupLayout
	JumpFlooding    *compute.BindGroupLayout
	JumpStep        *compute.BindGroupLayout
	CalculateSDF    *compute.BindGroupLayout
	SampleForces    *compute.BindGroupLayout
	AccumulateForce *compute.BindGroupLayout
	Arrows          *compute.BindGroupLayout
	ArrowParams     *compute.BindGroupLayout
}

func NewLayouts() *Layouts {
	r, w, rw := compute.ReadOnly, compute.WriteOnly, compute.ReadWrite
	return &Layouts{
		Uniform: compute.NewBindGroupLayout("simulation_uniform", compute.UniformEntry(0)),
		Initialize: compute.NewBindGroupLayout("initialize",
			floatTex(0, w), floatTex(1, w), floatTex(2, w), floatTex(3, w),
			floatTex(4, w), floatTex(5, w), floatTex(6, w), floatTex(7, w), floatTex(8, w)),
		UpdateSolid: compute.NewBindGroupLayout("update_solid",
			compute.StorageBufferEntry(0, r), floatTex(1, w), floatTex(2, w), floatTex(3, w), intTex(4, w)),
		SolidPressure: compute.NewBindGroupLayout("update_solid_pressure",
			floatTex(0, rw), floatTex(1, rw), floatTex(2, r), floatTex(3, r)),
		Advection: compute.NewBindGroupLayout("advection",
			floatTex(0, r), floatTex(1, r), floatTex(2, w), floatTex(3, w),
			floatTex(4, r), floatTex(5, r), floatTex(6, r)),
		ApplyForces: compute.NewBindGroupLayout("apply_forces",
			compute.StorageBufferEntry(0, r), floatTex(1, rw), floatTex(2, rw), floatTex(3, r), floatTex(4, r)),
		Divergence: compute.NewBindGroupLayout("divergence",
			floatTex(0, r), floatTex(1, r), floatTex(2, r), floatTex(3, r),
			floatTex(4, r), floatTex(5, r), floatTex(6, w)),
		Jacobi: compute.NewBindGroupLayout("jacobi_iteration",
			floatTex(0, r), floatTex(1, w), floatTex(2, r), floatTex(3, r), floatTex(4, r)),
		SolveVelocity: compute.NewBindGroupLayout("solve_velocity",
			floatTex(0, r), floatTex(1, r), floatTex(2, r), floatTex(3, r), floatTex(4, r),
			floatTex(5, r), floatTex(6, r), floatTex(7, w), floatTex(8, w)),
		Extrapolate: compute.NewBindGroupLayout("extrapolate_velocity",
			floatTex(0, rw), floatTex(1, rw), floatTex(2, r), floatTex(3, r)),
		ExtrapolateBand: compute.NewBindGroupLayout("extrapolation_band", compute.UniformEntry(0)),
		AdvectLevelset: compute.NewBindGroupLayout("advect_levelset",
			floatTex(0, r), floatTex(1, r), floatTex(2, r), floatTex(3, w)),
		InitializeSeeds: compute.NewBindGroupLayout("initialize_seeds",
			floatTex(0, r), floatTex(1, w), floatTex(2, w)),
		JumpFlooding: compute.NewBindGroupLayout("jump_flooding",
			floatTex(0, r), floatTex(1, r), floatTex(2, w), floatTex(3, w)),
		JumpStep: compute.NewBindGroupLayout("jump_flooding_step", compute.UniformEntry(0)),
		CalculateSDF: compute.NewBindGroupLayout("calculate_sdf",
			floatTex(0, r), floatTex(1, r), floatTex(2, r), floatTex(3, w)),
		SampleForces: compute.NewBindGroupLayout("sample_forces",
			floatTex(0, r), floatTex(1, r), intTex(2, r), compute.StorageBufferEntry(3, r),
			compute.AtomicBinsEntry(4), compute.AtomicBinsEntry(5), compute.AtomicBinsEntry(6)),
		AccumulateForce: compute.NewBindGroupLayout("accumulate_forces",
			compute.AtomicBinsEntry(0), compute.AtomicBinsEntry(1), compute.AtomicBinsEntry(2),
			compute.StorageBufferEntry(3, w)),
		Arrows: compute.NewBindGroupLayout("velocity_arrows",
			floatTex(0, r), floatTex(1, r), compute.StorageBufferEntry(2, w)),
		ArrowParams: compute.NewBindGroupLayout("velocity_arrow_params", compute.UniformEntry(0)),
	}
}

// Pipelines are the cache ids of every fluid pipeline.
type Pipelines struct {
	Initialize          compute.PipelineID
	UpdateSolid         compute.PipelineID
	UpdateSolidPressure compute.PipelineID
	AdvectU             compute.PipelineID
	AdvectV             compute.PipelineID
	ApplyForceU         compute.PipelineID
	ApplyForceV         compute.PipelineID
	Divergence          compute.PipelineID
	JacobiIteration     compute.PipelineID
	SolveVelocityU      compute.PipelineID
	SolveVelocityV      compute.PipelineID
	ExtrapolateU        compute.PipelineID
	ExtrapolateV        compute.PipelineID
	AdvectLevelset      compute.PipelineID
	InitializeSeeds     compute.PipelineID
	JumpFlooding        compute.PipelineID
	CalculateSDF        compute.PipelineID
	SampleForces        compute.PipelineID
	AccumulateForces    compute.PipelineID
	VelocityArrows      compute.PipelineID
}

// IDs lists every pipeline in dispatch order.
func (p *Pipelines) IDs() []compute.PipelineID {
	return []compute.PipelineID{
		p.Initialize, p.UpdateSolid, p.UpdateSolidPressure,
		p.AdvectU, p.AdvectV, p.ApplyForceU, p.ApplyForceV,
		p.Divergence, p.JacobiIteration, p.SolveVelocityU, p.SolveVelocityV,
		p.ExtrapolateU, p.ExtrapolateV, p.AdvectLevelset,
		p.InitializeSeeds, p.JumpFlooding, p.CalculateSDF,
		p.SampleForces, p.AccumulateForces, p.VelocityArrows,
	}
}

// QueuePipelines queues every fluid pipeline on cache. The pipelines become
// ready once the module is loaded into the cache's shader library.
func QueuePipelines(cache *compute.PipelineCache, l *Layouts) *Pipelines {
	queue := func(entry string, size compute.Dim3, layout ...*compute.BindGroupLayout) compute.PipelineID {
		return cache.QueueComputePipeline(compute.ComputePipelineDescriptor{
			Label:         entry + "_pipeline",
			Layout:        layout,
			Shader:        ModuleName,
			EntryPoint:    entry,
			WorkgroupSize: size,
		})
	}

	return &Pipelines{
		Initialize:          queue(EntryInitialize, CenterWorkgroup, l.Initialize, l.Uniform),
		UpdateSolid:         queue(EntryUpdateSolid, CenterWorkgroup, l.UpdateSolid, l.Uniform),
		UpdateSolidPressure: queue(EntryUpdateSolidPressure, CenterWorkgroup, l.SolidPressure, l.Uniform),
		AdvectU:             queue(EntryAdvectU, XMajorWorkgroup, l.Advection, l.Uniform),
		AdvectV:             queue(EntryAdvectV, YMajorWorkgroup, l.Advection, l.Uniform),
		ApplyForceU:         queue(EntryApplyForceU, XMajorWorkgroup, l.ApplyForces, l.Uniform),
		ApplyForceV:         queue(EntryApplyForceV, YMajorWorkgroup, l.ApplyForces, l.Uniform),
		Divergence:          queue(EntryDivergence, CenterWorkgroup, l.Divergence, l.Uniform),
		JacobiIteration:     queue(EntryJacobiIteration, CenterWorkgroup, l.Jacobi, l.Uniform),
		SolveVelocityU:      queue(EntrySolveVelocityU, XMajorWorkgroup, l.SolveVelocity, l.Uniform),
		SolveVelocityV:      queue(EntrySolveVelocityV, YMajorWorkgroup, l.SolveVelocity, l.Uniform),
		ExtrapolateU:        queue(EntryExtrapolateU, XMajorWorkgroup, l.Extrapolate, l.Uniform, l.ExtrapolateBand),
		ExtrapolateV:        queue(EntryExtrapolateV, YMajorWorkgroup, l.Extrapolate, l.Uniform, l.ExtrapolateBand),
		AdvectLevelset:      queue(EntryAdvectLevelset, CenterWorkgroup, l.AdvectLevelset, l.Uniform),
		InitializeSeeds:     queue(EntryInitializeSeeds, CenterWorkgroup, l.InitializeSeeds, l.Uniform),
		JumpFlooding:        queue(EntryJumpFlooding, CenterWorkgroup, l.JumpFlooding, l.Uniform, l.JumpStep),
		CalculateSDF:        queue(EntryCalculateSDF, CenterWorkgroup, l.CalculateSDF, l.Uniform),
		SampleForces:        queue(EntrySampleForces, CenterWorkgroup, l.SampleForces, l.Uniform),
		AccumulateForces:    queue(EntryAccumulateForces, BinWorkgroup, l.AccumulateForce, l.Uniform),
		VelocityArrows:      queue(EntryVelocityArrows, CenterWorkgroup, l.Arrows, l.Uniform, l.ArrowParams),
	}
}

// CenterDispatch covers the W×H cells with 8×8 workgroups.
func CenterDispatch(w, h int) compute.Dim3 {
	return compute.D2(ceilDiv(w, 8), ceilDiv(h, 8))
}

// FaceDispatch covers (W+1)×(H+1) with 8×8 workgroups, enough for every
// cell and both face arrays.
func FaceDispatch(w, h int) compute.Dim3 {
	return compute.D2(ceilDiv(w+1, 8), ceilDiv(h+1, 8))
}

// XMajorDispatch covers the (W+1)×H x-faces with 1×64 workgroups.
func XMajorDispatch(w, h int) compute.Dim3 {
	return compute.D2(uint32(w+1), ceilDiv(h, 64))
}

// YMajorDispatch covers the W×(H+1) y-faces with 64×1 workgroups.
func YMajorDispatch(w, h int) compute.Dim3 {
	return compute.D2(ceilDiv(w, 64), uint32(h+1))
}

// BinDispatch covers every force bin.
func BinDispatch() compute.Dim3 {
	return compute.D2(ceilDiv(obstacle.MaxSolids, 64), 1)
}

// ArrowDispatch covers the arrow bins of a W×H grid.
func ArrowDispatch(w, h, binSize int) compute.Dim3 {
	nx, ny := ArrowGrid(w, h, binSize)
	return compute.D2(ceilDiv(nx, 8), ceilDiv(ny, 8))
}

// ArrowGrid is the number of arrow bins along each axis.
func ArrowGrid(w, h, binSize int) (int, int) {
	if binSize < 1 {
		binSize = 1
	}
	return (w + binSize - 1) / binSize, (h + binSize - 1) / binSize
}

// JumpFloodSteps returns the jump offsets, largest first:
// 2^p, 2^(p-1), ..., 1 with p = floor(log2(max(w, h)) - 1).
func JumpFloodSteps(w, h int) []uint32 {
	p := int(math.Floor(math.Log2(float64(max(w, h))) - 1))
	if p < 0 {
		p = 0
	}
	steps := make([]uint32, 0, p+1)
	for s := p; s >= 0; s-- {
		steps = append(steps, 1<<s)
	}
	return steps
}
