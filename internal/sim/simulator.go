package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/config"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/host"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/metrics"
	"github.com/san-kum/eulerfluid/internal/storage"
)

// Recorder receives the telemetry rows of each sampled tick.
type Recorder interface {
	Append(samples ...storage.Sample) error
}

type Option func(*Simulator)

func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

func WithRecorder(r Recorder) Option { return func(s *Simulator) { s.recorder = r } }

// WithSampleEvery samples telemetry every n ticks instead of every tick.
func WithSampleEvery(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.sampleEvery = n
		}
	}
}

// Simulator runs a scene: the fluid domains of a config, the host rigid
// bodies coupled to them and the scripted scenario events.
type Simulator struct {
	cfg      *config.Config
	scenario *config.Scenario
	device   *compute.Device
	fluid    *fluid.Simulation
	world    *host.World
	clock    *host.Clock
	domains  []fluid.DomainID

	metrics     map[fluid.DomainID][]metrics.Metric
	observers   []Observer
	recorder    Recorder
	sampleEvery int
	stepTime    time.Duration

	mu     sync.Mutex
	latest map[fluid.DomainID]fluid.ForceReadback
}

func New(cfg *config.Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scenario, err := cfg.Scenario()
	if err != nil {
		return nil, err
	}
	for _, e := range scenario.Events {
		if e.Force != nil && (e.Force.Domain < 0 || e.Force.Domain >= len(cfg.Domains)) {
			return nil, fmt.Errorf("%w: %d", ErrEventDomain, e.Force.Domain)
		}
	}

	backend, err := compute.BackendByName(cfg.Solver.Backend)
	if err != nil {
		return nil, err
	}
	device := compute.NewDevice(backend)
	fs, err := fluid.NewSimulation(device, cfg.Solver.Options())
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:         cfg,
		scenario:    scenario,
		device:      device,
		fluid:       fs,
		world:       host.NewWorld(mgl32.Vec2(cfg.Domains[0].Gravity)),
		clock:       host.NewClock(cfg.Run.PhysicsHz),
		metrics:     make(map[fluid.DomainID][]metrics.Metric),
		sampleEvery: 1,
		latest:      make(map[fluid.DomainID]fluid.ForceReadback),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i, d := range cfg.Domains {
		id, err := fs.Add(d.Settings())
		if err != nil {
			return nil, fmt.Errorf("domain %d: %w", i, err)
		}
		s.domains = append(s.domains, id)
		s.metrics[id] = metrics.Default()
	}
	fs.Added()

	for i, b := range cfg.Bodies {
		spec, err := b.Spec()
		if err != nil {
			return nil, fmt.Errorf("body %d: %w", i, err)
		}
		s.world.Spawn(spec)
	}

	fs.OnReadback(s.onReadback)
	fs.LoadShaders()
	return s, nil
}

func (s *Simulator) Config() *config.Config   { return s.cfg }
func (s *Simulator) Fluid() *fluid.Simulation { return s.fluid }
func (s *Simulator) World() *host.World       { return s.world }
func (s *Simulator) Clock() *host.Clock       { return s.clock }
func (s *Simulator) Device() *compute.Device  { return s.device }

// Domains lists the fluid domains in config order.
func (s *Simulator) Domains() []fluid.DomainID { return s.domains }

func (s *Simulator) onReadback(r fluid.ForceReadback) {
	if !s.world.Apply(r) {
		return
	}
	s.mu.Lock()
	s.latest[r.Domain] = r
	s.mu.Unlock()
}

// Force is the total fluid force and torque on all solids of a domain from
// the latest applied readback.
func (s *Simulator) Force(id fluid.DomainID) (mgl32.Vec2, float32) {
	s.mu.Lock()
	r, ok := s.latest[id]
	s.mu.Unlock()
	if !ok {
		return mgl32.Vec2{}, 0
	}
	var total mgl32.Vec2
	var torque float32
	for k := range r.Forces {
		f, tq := r.Newtons(k)
		total = total.Add(f)
		torque += tq
	}
	return total, torque
}

// Prepare blocks until the fluid pipelines have compiled.
func (s *Simulator) Prepare() {
	s.fluid.WaitPipelines()
}

// Step advances the scene one physics tick: scenario events, obstacle
// upload, one fluid step per domain, then rigid-body integration.
func (s *Simulator) Step(ctx context.Context) (fluid.Tick, error) {
	t := s.clock.Next()

	for _, b := range s.scenario.Spawns(t.Number) {
		spec, err := b.Spec()
		if err != nil {
			return t, SimError{Tick: t.Number, Err: err}
		}
		s.world.Spawn(spec)
	}
	for _, f := range s.scenario.Forces(t.Number) {
		id := s.domains[f.Domain]
		force := kernels.LocalForce{Force: mgl32.Vec2(f.Force), Position: mgl32.Vec2(f.Position)}
		if err := s.fluid.AddForce(id, force); err != nil {
			return t, SimError{Tick: t.Number, Domain: id, Err: err}
		}
	}

	s.fluid.SetBodies(s.world.BodiesAt(t.Number))

	start := time.Now()
	if err := s.fluid.PollAll(ctx, t); err != nil {
		return t, err
	}
	s.stepTime = time.Since(start)

	s.world.Step(t.Dt)
	return t, nil
}

// Sample snapshots every domain, feeds the metrics and observers and
// returns one telemetry row per domain.
func (s *Simulator) Sample(t fluid.Tick) ([]storage.Sample, error) {
	now := s.clock.Elapsed().Seconds()
	out := make([]storage.Sample, 0, len(s.domains))

	for _, id := range s.domains {
		f, err := s.fluid.Snapshot(id)
		if err != nil {
			return out, SimError{Tick: t.Number, Domain: id, Err: err}
		}
		if !finite(f.U) || !finite(f.V) {
			return out, SimError{Tick: t.Number, Domain: id, Err: ErrNonFiniteField}
		}
		for _, m := range s.metrics[id] {
			m.Observe(&f, now)
		}

		force, torque := s.Force(id)
		mean, std := metrics.Surface(&f)
		smp := storage.Sample{
			Tick:          t.Number,
			Time:          now,
			Domain:        uint32(id),
			Fx:            float64(force.X()),
			Fy:            float64(force.Y()),
			Torque:        float64(torque),
			MaxDivergence: metrics.MaxDivergence(&f),
			FluidVolume:   metrics.FluidVolume(&f),
			SurfaceMean:   mean,
			SurfaceStd:    std,
			StepMillis:    float64(s.stepTime.Microseconds()) / 1000,
		}
		fluid.Logger().Debug("tick sampled", "sample", smp)

		for _, o := range s.observers {
			o.OnFrame(Frame{Tick: t, Domain: id, Fields: &f, Sample: smp})
		}
		out = append(out, smp)
	}
	return out, nil
}

// Run steps the scene for ticks physics ticks. On cancellation or error the
// partial result is returned with the error.
func (s *Simulator) Run(ctx context.Context, ticks int) (*Result, error) {
	if ticks <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidTicks, ticks)
	}
	s.Prepare()

	for _, ms := range s.metrics {
		for _, m := range ms {
			m.Reset()
		}
	}

	result := &Result{Samples: make([]storage.Sample, 0, ticks*len(s.domains))}
	finish := func() {
		s.fluid.Close()
		result.Metrics = s.Summary()
		result.Timings = s.device.Queue.Timings()
		result.Readbacks = s.world.Stats()
	}

	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			finish()
			return result, ctx.Err()
		default:
		}

		t, err := s.Step(ctx)
		if err != nil {
			finish()
			return result, err
		}
		result.Ticks++

		if t.Number%uint64(s.sampleEvery) != 0 {
			continue
		}
		samples, err := s.Sample(t)
		result.Samples = append(result.Samples, samples...)
		if err == nil && s.recorder != nil {
			err = s.recorder.Append(samples...)
		}
		if err != nil {
			finish()
			return result, err
		}
	}

	finish()
	fluid.Logger().Info("run finished",
		"ticks", result.Ticks,
		"domains", len(s.domains),
		"applied", result.Readbacks.Applied,
		"stale", result.Readbacks.Stale)
	return result, nil
}

// Summary merges the metrics of every domain, keeping the worst value of
// each.
func (s *Simulator) Summary() map[string]float64 {
	out := make(map[string]float64)
	for _, ms := range s.metrics {
		for name, v := range metrics.Summary(ms) {
			out[name] = math.Max(out[name], v)
		}
	}
	return out
}

// Close waits for in-flight work on the device.
func (s *Simulator) Close() {
	s.fluid.Close()
	s.device.Close()
}

func finite(values []float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
