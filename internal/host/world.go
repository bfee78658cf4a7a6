// Package host is a minimal rigid-body host for the fluid solver. Bodies
// live in an ark ECS world; the host feeds them to the solver as obstacles
// every tick and integrates the fluid forces it reads back.
package host

import (
	"math"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/obstacle"
)

// BodySpec describes a body to spawn.
type BodySpec struct {
	Collider        obstacle.Collider
	Position        mgl32.Vec2
	Angle           float32
	LinearVelocity  mgl32.Vec2
	AngularVelocity float32
	Type            obstacle.BodyType
	// Density in kg/m². Zero uses DefaultDensity.
	Density float32
}

const DefaultDensity = 500

// World owns the rigid bodies. All methods are safe for concurrent use;
// readbacks arrive on queue callback goroutines while the runner steps.
type World struct {
	mu      sync.Mutex
	world   *ecs.World
	mapper  *ecs.Map5[Pose, Velocity, Shape, Mass, ExternalForce]
	filter  *ecs.Filter4[Pose, Velocity, Mass, ExternalForce]
	poses   *ecs.Map1[Pose]
	forces  *ecs.Map1[ExternalForce]
	masses  *ecs.Map1[Mass]
	gravity mgl32.Vec2

	// order is the spawn order; the index of an entity is its solid id.
	order []ecs.Entity
	// layouts keeps the order handed to the solver for recent ticks, so a
	// late readback is attributed with the ids of its own tick.
	layouts map[uint64][]ecs.Entity

	applied map[fluid.DomainID]uint64
	stats   ReadbackStats
}

// ReadbackStats counts readbacks by outcome.
type ReadbackStats struct {
	Applied int
	Stale   int
}

func NewWorld(gravity mgl32.Vec2) *World {
	w := ecs.NewWorld()
	return &World{
		world:   w,
		mapper:  ecs.NewMap5[Pose, Velocity, Shape, Mass, ExternalForce](w),
		filter:  ecs.NewFilter4[Pose, Velocity, Mass, ExternalForce](w),
		poses:   ecs.NewMap1[Pose](w),
		forces:  ecs.NewMap1[ExternalForce](w),
		masses:  ecs.NewMap1[Mass](w),
		gravity: gravity,
		applied: make(map[fluid.DomainID]uint64),
		layouts: make(map[uint64][]ecs.Entity),
	}
}

// layoutHistory is how many ticks of solid id layouts are kept.
const layoutHistory = 16

// Spawn adds a body and returns its entity.
func (w *World) Spawn(spec BodySpec) ecs.Entity {
	density := spec.Density
	if density <= 0 {
		density = DefaultDensity
	}
	area := spec.Collider.Area()
	m := density * area

	pose := Pose{Position: spec.Position, Angle: spec.Angle}
	vel := Velocity{Linear: spec.LinearVelocity, Angular: spec.AngularVelocity}
	shape := Shape{Collider: spec.Collider}
	// Inertia of the disc with the same area.
	mass := Mass{Type: spec.Type, Mass: m, Inertia: m * area / (2 * math.Pi)}
	force := ExternalForce{}

	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.mapper.NewEntity(&pose, &vel, &shape, &mass, &force)
	w.order = append(w.order, e)
	return e
}

// Despawn removes a body. Solid ids of the bodies spawned after it shift
// down by one from the next tick on.
func (w *World) Despawn(e ecs.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.world.Alive(e) {
		return
	}
	w.world.RemoveEntity(e)
	for i, o := range w.order {
		if o == e {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

// Bodies returns the solver view of every body in spawn order.
func (w *World) Bodies() []obstacle.Body {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bodies()
}

// BodiesAt is Bodies for the step of tick. It records the id layout of the
// tick for Apply.
func (w *World) BodiesAt(tick uint64) []obstacle.Body {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.layouts[tick] = slices.Clone(w.order)
	for t := range w.layouts {
		if t+layoutHistory <= tick {
			delete(w.layouts, t)
		}
	}
	return w.bodies()
}

func (w *World) bodies() []obstacle.Body {
	out := make([]obstacle.Body, 0, len(w.order))
	for _, e := range w.order {
		pose, vel, shape, mass, _ := w.mapper.Get(e)
		out = append(out, obstacle.Body{
			Collider:        shape.Collider,
			Transform:       pose.Matrix(),
			LinearVelocity:  vel.Linear,
			AngularVelocity: vel.Angular,
			Type:            mass.Type,
		})
	}
	return out
}

// Pose returns the current placement of body e.
func (w *World) Pose(e ecs.Entity) (Pose, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.world.Alive(e) {
		return Pose{}, false
	}
	return *w.poses.Get(e), true
}

// PendingForce returns the force accumulated on e since the last Step.
func (w *World) PendingForce(e ecs.Entity) ExternalForce {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.world.Alive(e) {
		return ExternalForce{}
	}
	return *w.forces.Get(e)
}

// Apply adds the forces of a readback to the dynamic bodies. Readbacks for a
// tick not newer than the last one applied for the same domain are dropped,
// so each tick is applied at most once even when callbacks arrive late or
// out of order. Solid ids are resolved with the layout recorded by BodiesAt
// for the readback's tick, or the current order when none was recorded.
// It reports whether r was applied.
func (w *World) Apply(r fluid.ForceReadback) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r.Tick <= w.applied[r.Domain] {
		w.stats.Stale++
		return false
	}
	w.applied[r.Domain] = r.Tick
	w.stats.Applied++

	order, ok := w.layouts[r.Tick]
	if !ok {
		order = w.order
	}
	for id, e := range order {
		if id >= len(r.Forces) {
			break
		}
		if !w.world.Alive(e) || w.masses.Get(e).Type != obstacle.Dynamic {
			continue
		}
		f, torque := r.Newtons(id)
		ext := w.forces.Get(e)
		ext.Force = ext.Force.Add(f)
		ext.Torque += torque
	}
	return true
}

func (w *World) Stats() ReadbackStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Step integrates the dynamic bodies over dt with semi-implicit Euler and
// clears the accumulated external forces. Kinematic bodies keep their
// velocity; static bodies do not move.
func (w *World) Step(dt float32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	query := w.filter.Query()
	for query.Next() {
		pose, vel, mass, ext := query.Get()
		switch mass.Type {
		case obstacle.Dynamic:
			if mass.Mass > 0 {
				acc := w.gravity.Add(ext.Force.Mul(1 / mass.Mass))
				vel.Linear = vel.Linear.Add(acc.Mul(dt))
			}
			if mass.Inertia > 0 {
				vel.Angular += ext.Torque / mass.Inertia * dt
			}
			fallthrough
		case obstacle.Kinematic:
			pose.Position = pose.Position.Add(vel.Linear.Mul(dt))
			pose.Angle += vel.Angular * dt
		}
		*ext = ExternalForce{}
	}
}
