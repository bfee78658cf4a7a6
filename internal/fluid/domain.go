package fluid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/obstacle"
)

// DomainID identifies a domain within its Simulation.
type DomainID uint32

// DomainInfo summarizes the scheduler state of a domain.
type DomainInfo struct {
	ID       DomainID
	State    State
	LastTick uint64
	Steps    int
	Width    int
	Height   int
}

type bindGroups struct {
	uniform        *compute.BindGroup
	initialize     *compute.BindGroup
	updateSolid    *compute.BindGroup
	solidPressure  *compute.BindGroup
	advection      *compute.BindGroup
	applyForces    *compute.BindGroup
	divergence     *compute.BindGroup
	jacobi         [2]*compute.BindGroup
	solveVelocity  *compute.BindGroup
	extrapolate    *compute.BindGroup
	bands          []*compute.BindGroup
	advectLevelset *compute.BindGroup
	seeds          *compute.BindGroup
	jumpFlood      [2]*compute.BindGroup
	jumpSteps      []*compute.BindGroup
	calculateSDF   [2]*compute.BindGroup
	sampleForces   *compute.BindGroup
	accumulate     *compute.BindGroup
}

// Domain is one fluid domain instance. Its buffers are owned exclusively
// and only touched by the goroutine polling it.
type Domain struct {
	id       DomainID
	sim      *Simulation
	settings Settings
	buffers  *Buffers
	uniform  *compute.UniformBuffer[kernels.SimulationUniform]
	groups   bindGroups
	jfaSteps []uint32

	mu        sync.Mutex
	state     State
	lastTick  uint64
	steps     int
	failure   *DomainError
	transform mgl32.Mat4
	pending   []kernels.LocalForce

	removed atomic.Bool
}

func newDomain(s *Simulation, id DomainID, settings Settings) (*Domain, error) {
	w, h := int(settings.Width), int(settings.Height)
	d := &Domain{
		id:        id,
		sim:       s,
		settings:  settings,
		buffers:   NewBuffers(w, h),
		jfaSteps:  kernels.JumpFloodSteps(w, h),
		transform: settings.Transform,
	}
	d.uniform = compute.NewUniformBuffer("simulation_uniform", d.buildUniform(Tick{}))
	if err := d.createBindGroups(); err != nil {
		return nil, fmt.Errorf("domain %d: %w", id, err)
	}
	return d, nil
}

func (d *Domain) buildUniform(t Tick) kernels.SimulationUniform {
	st := d.settings
	return kernels.NewSimulationUniform(d.sim.opts.GridLength(), t.Dt, st.Rho, st.Gravity,
		st.InitialFluidLevel, d.transform, st.Width, st.Height)
}

func (d *Domain) createBindGroups() error {
	l := d.sim.layouts
	b := d.buffers
	var err error
	bind := func(layout *compute.BindGroupLayout, resources ...compute.Resource) *compute.BindGroup {
		if err != nil {
			return nil
		}
		var g *compute.BindGroup
		g, err = compute.NewBindGroup(layout.Label(), layout, compute.Entries(resources...)...)
		return g
	}

	g := &d.groups
	g.uniform = bind(l.Uniform, d.uniform)
	g.initialize = bind(l.Initialize, b.U0, b.V0, b.U1, b.V1, b.P0, b.P1, b.LevelsetAir0, b.LevelsetAir1, b.Divergence)
	g.updateSolid = bind(l.UpdateSolid, b.Obstacles, b.USolid, b.VSolid, b.LevelsetSolid, b.SolidID)
	g.solidPressure = bind(l.SolidPressure, b.P0, b.P1, b.LevelsetSolid, b.LevelsetAir0)
	g.advection = bind(l.Advection, b.U0, b.V0, b.U1, b.V1, b.USolid, b.VSolid, b.LevelsetSolid)
	g.applyForces = bind(l.ApplyForces, b.LocalForces, b.U1, b.V1, b.LevelsetAir0, b.LevelsetSolid)
	g.divergence = bind(l.Divergence, b.U1, b.V1, b.USolid, b.VSolid, b.LevelsetAir0, b.LevelsetSolid, b.Divergence)
	g.jacobi[0] = bind(l.Jacobi, b.P1, b.P0, b.Divergence, b.LevelsetAir0, b.LevelsetSolid)
	g.jacobi[1] = bind(l.Jacobi, b.P0, b.P1, b.Divergence, b.LevelsetAir0, b.LevelsetSolid)
	g.solveVelocity = bind(l.SolveVelocity, b.U1, b.V1, b.P1, b.USolid, b.VSolid, b.LevelsetAir0, b.LevelsetSolid, b.U0, b.V0)
	g.extrapolate = bind(l.Extrapolate, b.U0, b.V0, b.LevelsetAir0, b.LevelsetSolid)
	passes := d.sim.opts.ExtrapolationPasses
	for n := 1; n <= passes; n++ {
		band := compute.NewUniformBuffer("extrapolation_band", kernels.ExtrapolationUniform{Band: uint32(n), Last: n == passes})
		g.bands = append(g.bands, bind(l.ExtrapolateBand, band))
	}
	g.advectLevelset = bind(l.AdvectLevelset, b.U0, b.V0, b.LevelsetAir0, b.LevelsetAir1)
	g.seeds = bind(l.InitializeSeeds, b.LevelsetAir1, b.SeedsX[0], b.SeedsY[0])
	g.jumpFlood[0] = bind(l.JumpFlooding, b.SeedsX[0], b.SeedsY[0], b.SeedsX[1], b.SeedsY[1])
	g.jumpFlood[1] = bind(l.JumpFlooding, b.SeedsX[1], b.SeedsY[1], b.SeedsX[0], b.SeedsY[0])
	for _, s := range d.jfaSteps {
		step := compute.NewUniformBuffer("jump_flooding_step", kernels.JumpFloodingUniform{Step: s})
		g.jumpSteps = append(g.jumpSteps, bind(l.JumpStep, step))
	}
	g.calculateSDF[0] = bind(l.CalculateSDF, b.LevelsetAir1, b.SeedsX[0], b.SeedsY[0], b.LevelsetAir0)
	g.calculateSDF[1] = bind(l.CalculateSDF, b.LevelsetAir1, b.SeedsX[1], b.SeedsY[1], b.LevelsetAir0)
	g.sampleForces = bind(l.SampleForces, b.P1, b.LevelsetSolid, b.SolidID, b.Obstacles, b.ForceX, b.ForceY, b.Torque)
	g.accumulate = bind(l.AccumulateForce, b.ForceX, b.ForceY, b.Torque, b.ForcesToSolid)
	return err
}

func (d *Domain) setState(s State) {
	if d.state == s {
		return
	}
	Logger().Debug("fluid domain state", "domain", d.id, "from", d.state, "to", s)
	d.state = s
}

func (d *Domain) fail(t Tick, err error) error {
	d.failure = &DomainError{Domain: d.id, Tick: t.Number, State: d.state, Wrapped: err}
	Logger().Error("fluid domain failed", "domain", d.id, "tick", t.Number, "state", d.state, "err", err)
	d.state = StateFailed
	return d.failure
}

// pipelinesReady reports whether every fluid pipeline compiled. A pipeline
// error other than a missing shader module is returned.
func (d *Domain) pipelinesReady() (bool, error) {
	cache := d.sim.device.Pipelines
	ready := true
	for _, id := range d.sim.pipelines.IDs() {
		ok, err := cache.IsReady(id)
		if err != nil {
			return false, err
		}
		ready = ready && ok
	}
	return ready, nil
}

// poll advances the state machine for tick t.
func (d *Domain) poll(ctx context.Context, t Tick) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateFailed:
		return d.failure

	case StateLoading:
		d.sim.device.Pipelines.ProcessQueue()
		ready, err := d.pipelinesReady()
		if err != nil {
			return d.fail(t, err)
		}
		if !ready {
			return nil
		}
		d.setState(StateInit)
		fallthrough

	case StateInit:
		if err := d.initialize(ctx, t); err != nil {
			return d.submitError(t, err)
		}
		d.setState(StateUpdate)
		fallthrough

	case StateUpdate, StateIdle:
		if t.Number == d.lastTick {
			d.setState(StateIdle)
			return nil
		}
		if err := d.step(ctx, t); err != nil {
			return d.submitError(t, err)
		}
		d.lastTick = t.Number
		d.steps++
		d.setState(StateUpdate)
	}
	return nil
}

// submitError leaves the domain untouched when ctx was cancelled and fails
// it otherwise.
func (d *Domain) submitError(t Tick, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return d.fail(t, err)
}

type stage struct {
	label  string
	record func(p *compute.ComputePass) error
}

func (d *Domain) dispatch(p *compute.ComputePass, id compute.PipelineID, n compute.Dim3, groups ...*compute.BindGroup) error {
	pipeline, ok := d.sim.device.Pipelines.GetComputePipeline(id)
	if !ok {
		return fmt.Errorf("pipeline %d: %w", id, compute.ErrPipelineNotReady)
	}
	if err := p.SetPipeline(pipeline); err != nil {
		return err
	}
	for i, g := range groups {
		if err := p.SetBindGroup(uint32(i), g); err != nil {
			return err
		}
	}
	return p.DispatchWorkgroups(n.X, n.Y, n.Z)
}

func (d *Domain) encode(label string, stages []stage) (*compute.CommandEncoder, error) {
	enc := compute.NewCommandEncoder(label)
	for _, s := range stages {
		pass := enc.BeginComputePass(s.label)
		if err := s.record(pass); err != nil {
			return nil, fmt.Errorf("%s: %w", s.label, err)
		}
		if err := pass.End(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.label, err)
		}
	}
	return enc, nil
}

func (d *Domain) submit(ctx context.Context, enc *compute.CommandEncoder) error {
	buf, err := enc.Finish()
	if err != nil {
		return err
	}
	return d.sim.device.Queue.Submit(ctx, buf)
}

func (d *Domain) initialize(ctx context.Context, t Tick) error {
	d.uniform.Set(d.buildUniform(t))
	d.buffers.ForceX.Reset()
	d.buffers.ForceY.Reset()
	d.buffers.Torque.Reset()

	p := d.sim.pipelines
	w, h := d.buffers.Width, d.buffers.Height
	enc, err := d.encode("initialize", []stage{{"initialize", func(pass *compute.ComputePass) error {
		return d.dispatch(pass, p.Initialize, kernels.FaceDispatch(w, h), d.groups.initialize, d.groups.uniform)
	}}})
	if err != nil {
		return err
	}
	return d.submit(ctx, enc)
}

// step records and submits the ten passes of one tick followed by the
// force readback copy.
func (d *Domain) step(ctx context.Context, t Tick) error {
	d.uniform.Set(d.buildUniform(t))
	d.uploadObstacles(d.sim.solids())
	d.uploadForces()

	enc, err := d.encode("step", d.stages())
	if err != nil {
		return err
	}

	staged := make([]kernels.SolidForce, obstacle.MaxSolids)
	enc.CopyToStaging("force_readback", func() {
		copy(staged, d.buffers.ForcesToSolid.Data)
	})
	if err := d.submit(ctx, enc); err != nil {
		return err
	}

	readback := ForceReadback{
		Domain: d.id,
		Tick:   t.Number,
		Dt:     t.Dt,
		Dx:     d.sim.opts.GridLength(),
		Forces: staged,
	}
	d.sim.device.Queue.OnSubmittedWorkDone(func() {
		if d.removed.Load() {
			return
		}
		d.sim.deliver(readback)
	})
	return nil
}

func (d *Domain) uploadObstacles(solids []obstacle.SolidObstacle) {
	d.buffers.Obstacles.Write(solids)
}

func (d *Domain) uploadForces() {
	if n := len(d.pending); n > MaxLocalForces {
		Logger().Warn("point forces dropped", "domain", d.id, "dropped", n-MaxLocalForces)
	}
	d.buffers.LocalForces.Write(d.pending)
	d.pending = d.pending[:0]
}

func (d *Domain) stages() []stage {
	p := d.sim.pipelines
	g := &d.groups
	w, h := d.buffers.Width, d.buffers.Height
	center := kernels.CenterDispatch(w, h)
	xMajor := kernels.XMajorDispatch(w, h)
	yMajor := kernels.YMajorDispatch(w, h)

	return []stage{
		{"update_solid", func(pass *compute.ComputePass) error {
			if err := d.dispatch(pass, p.UpdateSolid, kernels.FaceDispatch(w, h), g.updateSolid, g.uniform); err != nil {
				return err
			}
			return d.dispatch(pass, p.UpdateSolidPressure, center, g.solidPressure, g.uniform)
		}},
		{"advect_velocity", func(pass *compute.ComputePass) error {
			if err := d.dispatch(pass, p.AdvectU, xMajor, g.advection, g.uniform); err != nil {
				return err
			}
			return d.dispatch(pass, p.AdvectV, yMajor, g.advection, g.uniform)
		}},
		{"apply_forces", func(pass *compute.ComputePass) error {
			if err := d.dispatch(pass, p.ApplyForceU, xMajor, g.applyForces, g.uniform); err != nil {
				return err
			}
			return d.dispatch(pass, p.ApplyForceV, yMajor, g.applyForces, g.uniform)
		}},
		{"divergence", func(pass *compute.ComputePass) error {
			return d.dispatch(pass, p.Divergence, center, g.divergence, g.uniform)
		}},
		{"solve_pressure", func(pass *compute.ComputePass) error {
			for i := 0; i < d.sim.opts.JacobiIterations; i++ {
				if err := d.dispatch(pass, p.JacobiIteration, center, g.jacobi[0], g.uniform); err != nil {
					return err
				}
				if err := d.dispatch(pass, p.JacobiIteration, center, g.jacobi[1], g.uniform); err != nil {
					return err
				}
			}
			return nil
		}},
		{"solve_velocity", func(pass *compute.ComputePass) error {
			if err := d.dispatch(pass, p.SolveVelocityU, xMajor, g.solveVelocity, g.uniform); err != nil {
				return err
			}
			return d.dispatch(pass, p.SolveVelocityV, yMajor, g.solveVelocity, g.uniform)
		}},
		{"extrapolate_velocity", func(pass *compute.ComputePass) error {
			for _, band := range g.bands {
				if err := d.dispatch(pass, p.ExtrapolateU, xMajor, g.extrapolate, g.uniform, band); err != nil {
					return err
				}
				if err := d.dispatch(pass, p.ExtrapolateV, yMajor, g.extrapolate, g.uniform, band); err != nil {
					return err
				}
			}
			return nil
		}},
		{"advect_levelset", func(pass *compute.ComputePass) error {
			return d.dispatch(pass, p.AdvectLevelset, center, g.advectLevelset, g.uniform)
		}},
		{"reinitialize_levelset", func(pass *compute.ComputePass) error {
			if err := d.dispatch(pass, p.InitializeSeeds, center, g.seeds, g.uniform); err != nil {
				return err
			}
			for i, step := range g.jumpSteps {
				if err := d.dispatch(pass, p.JumpFlooding, center, g.jumpFlood[i%2], g.uniform, step); err != nil {
					return err
				}
			}
			return d.dispatch(pass, p.CalculateSDF, center, g.calculateSDF[len(g.jumpSteps)%2], g.uniform)
		}},
		{"fluid_to_solid", func(pass *compute.ComputePass) error {
			if err := d.dispatch(pass, p.SampleForces, center, g.sampleForces, g.uniform); err != nil {
				return err
			}
			return d.dispatch(pass, p.AccumulateForces, kernels.BinDispatch(), g.accumulate, g.uniform)
		}},
	}
}

// velocityArrows runs the overlay pass on the committed velocity.
func (d *Domain) velocityArrows(ctx context.Context, binSize int) ([]kernels.Arrow, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateFailed {
		return nil, d.failure
	}
	if d.state == StateLoading || d.state == StateInit {
		return nil, ErrNotReady
	}

	w, h := d.buffers.Width, d.buffers.Height
	binSize = max(binSize, 1)
	nx, ny := kernels.ArrowGrid(w, h, binSize)
	out := compute.NewStorageBuffer[kernels.Arrow]("velocity_arrows", nx*ny)
	params := compute.NewUniformBuffer("velocity_arrow_params", kernels.ArrowUniform{BinSize: uint32(binSize)})

	l := d.sim.layouts
	arrows, err := compute.NewBindGroup("velocity_arrows", l.Arrows, compute.Entries(d.buffers.U0, d.buffers.V0, out)...)
	if err != nil {
		return nil, err
	}
	paramGroup, err := compute.NewBindGroup("velocity_arrow_params", l.ArrowParams, compute.Entries(params)...)
	if err != nil {
		return nil, err
	}

	enc, err := d.encode("velocity_arrows", []stage{{"construct_velocity_arrows", func(pass *compute.ComputePass) error {
		return d.dispatch(pass, d.sim.pipelines.VelocityArrows, kernels.ArrowDispatch(w, h, binSize), arrows, d.groups.uniform, paramGroup)
	}}})
	if err != nil {
		return nil, err
	}
	if err := d.submit(ctx, enc); err != nil {
		return nil, err
	}
	return out.Snapshot(), nil
}

func (d *Domain) info() DomainInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DomainInfo{
		ID:       d.id,
		State:    d.state,
		LastTick: d.lastTick,
		Steps:    d.steps,
		Width:    d.buffers.Width,
		Height:   d.buffers.Height,
	}
}
