package fluid

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/obstacle"
	"golang.org/x/sync/errgroup"
)

// ForceReadback carries the per-solid force sums of one step. Forces are
// indexed by solid id and are in grid scaling; see Newtons.
type ForceReadback struct {
	Domain DomainID
	Tick   uint64
	Dt     float32
	Dx     float32
	Forces []kernels.SolidForce
}

// Newtons converts the sums of solid id to a force and torque in world
// units by dividing by dt/dx.
func (r *ForceReadback) Newtons(id int) (mgl32.Vec2, float32) {
	if id < 0 || id >= len(r.Forces) || r.Dt <= 0 {
		return mgl32.Vec2{}, 0
	}
	scale := r.Dx / r.Dt
	f := r.Forces[id]
	return f.Force.Mul(scale), f.Torque * scale
}

// ReadbackHandler receives force readbacks. It is called on a queue
// callback goroutine, possibly out of tick order.
type ReadbackHandler func(ForceReadback)

// Simulation is the arena of fluid domains sharing one device, one set of
// pipelines and one obstacle list.
type Simulation struct {
	device    *compute.Device
	opts      Options
	layouts   *kernels.Layouts
	pipelines *kernels.Pipelines

	mu      sync.Mutex
	domains map[DomainID]*Domain
	nextID  DomainID
	added   []DomainID
	obst    []obstacle.SolidObstacle
	handler ReadbackHandler
}

// NewSimulation queues the fluid pipelines on device. They compile once the
// shader module is loaded with LoadShaders.
func NewSimulation(device *compute.Device, opts Options) (*Simulation, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if device == nil {
		device = compute.NewDevice(nil)
	}
	layouts := kernels.NewLayouts()
	return &Simulation{
		device:    device,
		opts:      opts,
		layouts:   layouts,
		pipelines: kernels.QueuePipelines(device.Pipelines, layouts),
		domains:   make(map[DomainID]*Domain),
	}, nil
}

func (s *Simulation) Device() *compute.Device { return s.device }
func (s *Simulation) Options() Options        { return s.opts }

// LoadShaders registers the euler_fluid module and restarts compilation of
// the waiting pipelines.
func (s *Simulation) LoadShaders() {
	if !s.device.Library.Loaded(kernels.ModuleName) {
		s.device.Library.Load(kernels.Module())
	}
	s.device.Pipelines.ProcessQueue()
}

// WaitPipelines blocks until no pipeline compilation is in flight.
func (s *Simulation) WaitPipelines() {
	s.device.Pipelines.Wait()
	s.device.Pipelines.ProcessQueue()
	s.device.Pipelines.Wait()
}

// Add creates a domain. Its buffers are allocated immediately; simulation
// starts on the first poll after the pipelines are ready.
func (s *Simulation) Add(settings Settings) (DomainID, error) {
	st, err := settings.Validate()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	d, err := newDomain(s, id, st)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.domains[id] = d
	s.added = append(s.added, id)
	s.mu.Unlock()

	Logger().Info("fluid domain added", "domain", id, "width", st.Width, "height", st.Height)
	return id, nil
}

// Added returns the domains created since the last call.
func (s *Simulation) Added() []DomainID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.added
	s.added = nil
	return out
}

// Remove destroys a domain. Readbacks still in flight for it are dropped.
func (s *Simulation) Remove(id DomainID) error {
	s.mu.Lock()
	d, ok := s.domains[id]
	delete(s.domains, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDomain, id)
	}
	d.removed.Store(true)
	Logger().Info("fluid domain removed", "domain", id)
	return nil
}

func (s *Simulation) domain(id DomainID) (*Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDomain, id)
	}
	return d, nil
}

// IDs lists the live domains in creation order.
func (s *Simulation) IDs() []DomainID {
	s.mu.Lock()
	ids := make([]DomainID, 0, len(s.domains))
	for id := range s.domains {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reset makes the next poll re-run the initialize pass. Domains still
// loading or failed are unchanged.
func (s *Simulation) Reset(id DomainID) error {
	d, err := s.domain(id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateUpdate || d.state == StateIdle {
		d.setState(StateInit)
		d.lastTick = 0
	}
	return nil
}

// SetTransform moves a domain in the world. It takes effect on the next step.
func (s *Simulation) SetTransform(id DomainID, m mgl32.Mat4) error {
	d, err := s.domain(id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.transform = m
	d.mu.Unlock()
	return nil
}

// AddForce queues a point force for the next step of a domain.
func (s *Simulation) AddForce(id DomainID, f kernels.LocalForce) error {
	d, err := s.domain(id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.pending = append(d.pending, f)
	d.mu.Unlock()
	return nil
}

// SetBodies rebuilds the obstacle list from the host's rigid bodies. Bodies
// beyond capacity and unsupported colliders are dropped with a warning.
func (s *Simulation) SetBodies(bodies []obstacle.Body) obstacle.Report {
	solids, rep := obstacle.Build(bodies)
	for _, idx := range rep.Unsupported {
		Logger().Warn("unsupported collider skipped", "body", idx, "shape", bodies[idx].Collider.ColliderName())
	}
	if rep.Overflow > 0 {
		Logger().Warn("obstacle list full", "capacity", obstacle.MaxSolids, "dropped", rep.Overflow)
	}
	s.mu.Lock()
	s.obst = solids
	s.mu.Unlock()
	return rep
}

func (s *Simulation) solids() []obstacle.SolidObstacle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obst
}

// OnReadback installs the force readback handler.
func (s *Simulation) OnReadback(h ReadbackHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *Simulation) deliver(r ForceReadback) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(r)
	}
}

// Poll advances one domain for tick t. It returns nil while the domain is
// loading or idle and the domain's DomainError once it has failed.
func (s *Simulation) Poll(ctx context.Context, id DomainID, t Tick) error {
	d, err := s.domain(id)
	if err != nil {
		return err
	}
	return d.poll(ctx, t)
}

// PollAll polls every domain concurrently and returns the first error.
func (s *Simulation) PollAll(ctx context.Context, t Tick) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range s.IDs() {
		d, err := s.domain(id)
		if err != nil {
			continue
		}
		g.Go(func() error {
			return d.poll(ctx, t)
		})
	}
	return g.Wait()
}

func (s *Simulation) Info(id DomainID) (DomainInfo, error) {
	d, err := s.domain(id)
	if err != nil {
		return DomainInfo{}, err
	}
	return d.info(), nil
}

// Snapshot copies the current fields of a domain.
func (s *Simulation) Snapshot(id DomainID) (Fields, error) {
	d, err := s.domain(id)
	if err != nil {
		return Fields{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers.snapshot(s.opts.GridLength()), nil
}

// VelocityArrows averages the committed velocity over binSize×binSize cell
// blocks, row-major from the bottom-left block.
func (s *Simulation) VelocityArrows(ctx context.Context, id DomainID, binSize int) ([]kernels.Arrow, error) {
	d, err := s.domain(id)
	if err != nil {
		return nil, err
	}
	return d.velocityArrows(ctx, binSize)
}

// Uniform returns the parameters of the last submitted step.
func (s *Simulation) Uniform(id DomainID) (kernels.SimulationUniform, error) {
	d, err := s.domain(id)
	if err != nil {
		return kernels.SimulationUniform{}, err
	}
	return d.uniform.Get(), nil
}

// Close waits for pending readbacks.
func (s *Simulation) Close() {
	s.device.Queue.WaitCallbacks()
}
